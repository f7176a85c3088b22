package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/hearthstash/hearthstash/gateway/pkg/models"
)

// categorizeEnv stands up the full pipeline against two httptest servers:
// one serving the photo, one playing the chat-completions provider.
type categorizeEnv struct {
	*fixture
	providerHits *atomic.Int64
	imageHits    *atomic.Int64
	imageURL     string
}

func newCategorizeEnv(t *testing.T, enabled bool) *categorizeEnv {
	t.Helper()

	var providerHits, imageHits atomic.Int64

	imageSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		imageHits.Add(1)
		w.Header().Set("Content-Type", "image/png")
		w.Write([]byte("fake-png-bytes"))
	}))
	t.Cleanup(imageSrv.Close)

	providerSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		providerHits.Add(1)
		json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]any{
					"content": `{"suggestedName":"Lamp","tags":["Decor"],"confidence":0.91}`,
				}},
			},
		})
	}))
	t.Cleanup(providerSrv.Close)

	f := newFixture(t)
	ctx := context.Background()

	cfg := validConfig(providerSrv.URL)
	cfg.Enabled = enabled
	if _, err := f.lifecycle.SaveConfig(ctx, "h1", "alice", cfg); err != nil {
		t.Fatalf("SaveConfig() error = %v", err)
	}
	if err := f.lifecycle.SetSecret(ctx, "h1", "alice", "sk-test"); err != nil {
		t.Fatalf("SetSecret() error = %v", err)
	}

	return &categorizeEnv{
		fixture:      f,
		providerHits: &providerHits,
		imageHits:    &imageHits,
		imageURL:     imageSrv.URL + "/photos/item.png",
	}
}

func TestCategorize(t *testing.T) {
	env := newCategorizeEnv(t, true)
	ctx := context.Background()

	result, err := env.pipeline.Categorize(ctx, "h1", "bob", &models.VisionImageRef{URL: env.imageURL}, "garage shelf")
	if err != nil {
		t.Fatalf("Categorize() error = %v", err)
	}

	if result.Suggestion.SuggestedName != "Lamp" {
		t.Errorf("SuggestedName = %q, want Lamp", result.Suggestion.SuggestedName)
	}
	if result.Provider.ProviderType != models.ProviderGenericHTTP || result.Provider.Model != "gpt-4o-mini" {
		t.Errorf("Provider = %+v", result.Provider)
	}

	// Exactly one audit record, carrying metadata but no image or output.
	jobs, err := env.store.ListVisionJobs(ctx, "h1", 0)
	if err != nil {
		t.Fatalf("ListVisionJobs() error = %v", err)
	}
	if len(jobs) != 1 {
		t.Fatalf("len(jobs) = %d, want 1", len(jobs))
	}
	job := jobs[0]
	if job.ID == "" || job.HouseholdID != "h1" || job.CreatedBy != "bob" {
		t.Errorf("job = %+v, want id set, household h1, actor bob", job)
	}
	if job.ProviderType != models.ProviderGenericHTTP || job.Model != "gpt-4o-mini" {
		t.Errorf("job provider = (%q, %q)", job.ProviderType, job.Model)
	}
	if job.Confidence != 0.91 || job.Context != "garage shelf" {
		t.Errorf("job = (confidence %v, context %q)", job.Confidence, job.Context)
	}
}

func TestCategorizeDisabledSkipsAllCalls(t *testing.T) {
	env := newCategorizeEnv(t, false)

	_, err := env.pipeline.Categorize(context.Background(), "h1", "bob", &models.VisionImageRef{URL: env.imageURL}, "")
	var disabled *DisabledError
	if !errors.As(err, &disabled) {
		t.Fatalf("Categorize() error = %v, want *DisabledError", err)
	}

	if n := env.providerHits.Load(); n != 0 {
		t.Errorf("provider hits = %d, want 0 when disabled", n)
	}
	if n := env.imageHits.Load(); n != 0 {
		t.Errorf("image fetches = %d, want 0 when disabled", n)
	}
	if jobs, _ := env.store.ListVisionJobs(context.Background(), "h1", 0); len(jobs) != 0 {
		t.Errorf("len(jobs) = %d, want 0 when disabled", len(jobs))
	}
}

func TestCategorizeAccessControl(t *testing.T) {
	env := newCategorizeEnv(t, true)
	ctx := context.Background()
	ref := &models.VisionImageRef{URL: env.imageURL}

	_, err := env.pipeline.Categorize(ctx, "h1", "mallory", ref, "")
	var denied *PermissionDeniedError
	if !errors.As(err, &denied) {
		t.Errorf("Categorize() as non-member error = %v, want *PermissionDeniedError", err)
	}

	_, err = env.pipeline.Categorize(ctx, "h1", "", ref, "")
	var unauth *UnauthenticatedError
	if !errors.As(err, &unauth) {
		t.Errorf("Categorize() without actor error = %v, want *UnauthenticatedError", err)
	}
}

func TestCategorizeProviderFailureWritesNoJob(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "overloaded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	env := newCategorizeEnv(t, true)
	ctx := context.Background()

	// Point the household at the failing provider.
	if _, err := env.lifecycle.SaveConfig(ctx, "h1", "alice", validConfig(srv.URL)); err != nil {
		t.Fatalf("SaveConfig() error = %v", err)
	}

	if _, err := env.pipeline.Categorize(ctx, "h1", "bob", &models.VisionImageRef{URL: env.imageURL}, ""); err == nil {
		t.Fatal("Categorize() against a failing provider should error")
	}

	if jobs, _ := env.store.ListVisionJobs(ctx, "h1", 0); len(jobs) != 0 {
		t.Errorf("len(jobs) = %d, want 0 after a failed classification", len(jobs))
	}
}

func TestListJobsMemberGated(t *testing.T) {
	env := newCategorizeEnv(t, true)
	ctx := context.Background()

	if _, err := env.pipeline.Categorize(ctx, "h1", "bob", &models.VisionImageRef{URL: env.imageURL}, ""); err != nil {
		t.Fatalf("Categorize() error = %v", err)
	}

	jobs, err := env.pipeline.ListJobs(ctx, "h1", "bob", 0)
	if err != nil {
		t.Fatalf("ListJobs() error = %v", err)
	}
	if len(jobs) != 1 {
		t.Errorf("len(jobs) = %d, want 1", len(jobs))
	}

	_, err = env.pipeline.ListJobs(ctx, "h1", "mallory", 0)
	var denied *PermissionDeniedError
	if !errors.As(err, &denied) {
		t.Errorf("ListJobs() as non-member error = %v, want *PermissionDeniedError", err)
	}
}
