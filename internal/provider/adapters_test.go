package provider

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/hearthstash/hearthstash/gateway/pkg/models"
)

const suggestionJSON = `{"suggestedName":"Lamp","tags":["Decor","Lighting"],"confidence":0.91}`

func testImage() *models.VisionImageInput {
	return &models.VisionImageInput{
		MimeType: "image/jpeg",
		Bytes:    []byte("fake-jpeg-bytes"),
	}
}

func TestRegistryResolve(t *testing.T) {
	registry := NewRegistry()

	for _, providerType := range models.KnownProviderTypes {
		if _, err := registry.Resolve(providerType); err != nil {
			t.Errorf("Resolve(%q) error = %v", providerType, err)
		}
	}

	_, err := registry.Resolve("clip-embeddings")
	var unsupported *UnsupportedTypeError
	if !errors.As(err, &unsupported) {
		t.Errorf("Resolve(unknown) error = %v, want *UnsupportedTypeError", err)
	}
}

func TestOpenAICompatClassify(t *testing.T) {
	var captured struct {
		auth string
		body chatRequest
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("path = %q, want /chat/completions", r.URL.Path)
		}
		captured.auth = r.Header.Get("Authorization")
		json.NewDecoder(r.Body).Decode(&captured.body)
		json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]any{"content": suggestionJSON}},
			},
		})
	}))
	defer srv.Close()

	adapter := newOpenAICompatAdapter(srv.Client())
	cfg := &models.HouseholdVisionConfig{
		ProviderType: models.ProviderGenericHTTP,
		Model:        "gpt-4o-mini",
		BaseURL:      srv.URL,
	}

	got, err := adapter.ClassifyImage(context.Background(), "sk-test", cfg, "classify strictly", testImage())
	if err != nil {
		t.Fatalf("ClassifyImage() error = %v", err)
	}
	if got.SuggestedName != "Lamp" {
		t.Errorf("SuggestedName = %q, want Lamp", got.SuggestedName)
	}

	if captured.auth != "Bearer sk-test" {
		t.Errorf("Authorization = %q, want Bearer sk-test", captured.auth)
	}
	if captured.body.Model != "gpt-4o-mini" {
		t.Errorf("model = %q", captured.body.Model)
	}
	if captured.body.Temperature != DefaultTemperature || captured.body.MaxTokens != DefaultMaxTokens {
		t.Errorf("settings = (%v, %d), want defaults (%v, %d)",
			captured.body.Temperature, captured.body.MaxTokens, DefaultTemperature, DefaultMaxTokens)
	}
	if captured.body.ResponseFormat == nil || captured.body.ResponseFormat.Type != "json_object" {
		t.Error("response_format json_object not requested")
	}
	if len(captured.body.Messages) != 2 || captured.body.Messages[0].Role != "system" {
		t.Fatalf("messages = %+v, want system then user", captured.body.Messages)
	}
	raw, _ := json.Marshal(captured.body.Messages[1].Content)
	wantURL := "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString([]byte("fake-jpeg-bytes"))
	if !strings.Contains(string(raw), wantURL) {
		t.Error("user message does not carry the image as a data URL")
	}
}

func TestOpenAICompatClassifyHTTPFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"invalid_api_key"}`, http.StatusUnauthorized)
	}))
	defer srv.Close()

	adapter := newOpenAICompatAdapter(srv.Client())
	cfg := &models.HouseholdVisionConfig{Model: "gpt-4o-mini", BaseURL: srv.URL}

	_, err := adapter.ClassifyImage(context.Background(), "sk-bad", cfg, "p", testImage())
	var failed *RequestFailedError
	if !errors.As(err, &failed) {
		t.Fatalf("ClassifyImage() error = %v, want *RequestFailedError", err)
	}
	if failed.Status != http.StatusUnauthorized {
		t.Errorf("Status = %d, want 401", failed.Status)
	}
	if strings.Contains(failed.Error(), "invalid_api_key") {
		t.Error("error message echoes the provider response body")
	}
}

func TestOpenAICompatValidate(t *testing.T) {
	status := http.StatusOK
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
		w.Write([]byte(`{"choices":[{"message":{"content":"OK"}}]}`))
	}))
	defer srv.Close()

	adapter := newOpenAICompatAdapter(srv.Client())
	cfg := &models.HouseholdVisionConfig{Model: "gpt-4o-mini", BaseURL: srv.URL}
	ctx := context.Background()

	result, err := adapter.Validate(ctx, "sk-test", cfg)
	if err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	if !result.OK {
		t.Errorf("OK = false (%s), want true", result.Message)
	}

	// Auth failure is a result, not an error.
	status = http.StatusUnauthorized
	result, err = adapter.Validate(ctx, "sk-bad", cfg)
	if err != nil {
		t.Fatalf("Validate() with 401 error = %v, want nil", err)
	}
	if result.OK {
		t.Error("OK = true for a 401, want false")
	}
}

func TestGeminiClassify(t *testing.T) {
	var captured struct {
		path string
		key  string
		body geminiRequest
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured.path = r.URL.Path
		captured.key = r.URL.Query().Get("key")
		json.NewDecoder(r.Body).Decode(&captured.body)
		json.NewEncoder(w).Encode(map[string]any{
			"candidates": []map[string]any{
				{"content": map[string]any{"parts": []map[string]any{
					{"text": `{"suggestedName":"Lamp",`},
					{"text": `"tags":["Decor"],"confidence":0.8}`},
				}}},
			},
		})
	}))
	defer srv.Close()

	adapter := newGeminiAdapter(srv.Client())
	adapter.baseURL = srv.URL
	cfg := &models.HouseholdVisionConfig{Model: "gemini-1.5-flash"}

	got, err := adapter.ClassifyImage(context.Background(), "AIza-test", cfg, "classify strictly", testImage())
	if err != nil {
		t.Fatalf("ClassifyImage() error = %v", err)
	}
	if got.SuggestedName != "Lamp" {
		t.Errorf("SuggestedName = %q, want Lamp (parts concatenated)", got.SuggestedName)
	}

	if captured.path != "/models/gemini-1.5-flash:generateContent" {
		t.Errorf("path = %q", captured.path)
	}
	if captured.key != "AIza-test" {
		t.Errorf("key query param = %q", captured.key)
	}
	if captured.body.GenerationConfig.ResponseMimeType != "application/json" {
		t.Errorf("responseMimeType = %q", captured.body.GenerationConfig.ResponseMimeType)
	}
	parts := captured.body.Contents[0].Parts
	if len(parts) != 2 || parts[1].InlineData == nil {
		t.Fatalf("parts = %+v, want prompt text plus inlineData", parts)
	}
	if parts[1].InlineData.MimeType != "image/jpeg" {
		t.Errorf("inlineData mimeType = %q", parts[1].InlineData.MimeType)
	}
	if parts[1].InlineData.Data != base64.StdEncoding.EncodeToString([]byte("fake-jpeg-bytes")) {
		t.Error("inlineData is not the base64 image bytes")
	}
}

func TestGeminiValidate(t *testing.T) {
	var method, path string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		method, path = r.Method, r.URL.Path
		json.NewEncoder(w).Encode(map[string]any{"name": "models/gemini-1.5-flash"})
	}))
	defer srv.Close()

	adapter := newGeminiAdapter(srv.Client())
	adapter.baseURL = srv.URL

	result, err := adapter.Validate(context.Background(), "AIza-test", &models.HouseholdVisionConfig{Model: "gemini-1.5-flash"})
	if err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	if !result.OK {
		t.Errorf("OK = false (%s)", result.Message)
	}
	if method != http.MethodGet || path != "/models/gemini-1.5-flash" {
		t.Errorf("validation call = %s %s, want GET /models/gemini-1.5-flash", method, path)
	}
}

func TestAnthropicClassify(t *testing.T) {
	var captured struct {
		apiKey  string
		version string
		body    anthropicRequest
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/messages" {
			t.Errorf("path = %q, want /v1/messages", r.URL.Path)
		}
		captured.apiKey = r.Header.Get("x-api-key")
		captured.version = r.Header.Get("anthropic-version")
		json.NewDecoder(r.Body).Decode(&captured.body)
		json.NewEncoder(w).Encode(map[string]any{
			"content": []map[string]any{
				{"type": "text", "text": `{"suggestedName":"Lamp",`},
				{"type": "text", "text": `"tags":["Decor"],"confidence":0.8}`},
			},
		})
	}))
	defer srv.Close()

	adapter := newAnthropicAdapter(srv.Client())
	adapter.baseURL = srv.URL
	cfg := &models.HouseholdVisionConfig{Model: "claude-3-haiku"}

	got, err := adapter.ClassifyImage(context.Background(), "sk-ant-test", cfg, "classify strictly", testImage())
	if err != nil {
		t.Fatalf("ClassifyImage() error = %v", err)
	}
	if got.SuggestedName != "Lamp" {
		t.Errorf("SuggestedName = %q, want Lamp (text blocks concatenated)", got.SuggestedName)
	}

	if captured.apiKey != "sk-ant-test" {
		t.Errorf("x-api-key = %q", captured.apiKey)
	}
	if captured.version != anthropicVersion {
		t.Errorf("anthropic-version = %q, want %q", captured.version, anthropicVersion)
	}
	if captured.body.System != "classify strictly" {
		t.Errorf("system = %q", captured.body.System)
	}
	blocks := captured.body.Messages[0].Content
	if len(blocks) != 2 || blocks[0].Type != "image" || blocks[0].Source == nil {
		t.Fatalf("content blocks = %+v, want image then text", blocks)
	}
	if blocks[0].Source.Type != "base64" || blocks[0].Source.MediaType != "image/jpeg" {
		t.Errorf("image source = %+v", blocks[0].Source)
	}
}

func TestAnthropicValidate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"type":"authentication_error"}}`, http.StatusUnauthorized)
	}))
	defer srv.Close()

	adapter := newAnthropicAdapter(srv.Client())
	adapter.baseURL = srv.URL

	result, err := adapter.Validate(context.Background(), "sk-ant-bad", &models.HouseholdVisionConfig{Model: "claude-3-haiku"})
	if err != nil {
		t.Fatalf("Validate() error = %v, want nil for auth failure", err)
	}
	if result.OK {
		t.Error("OK = true for a 401, want false")
	}
	if strings.Contains(result.Message, "authentication_error") {
		t.Error("validation message echoes the provider response body")
	}
}

func TestClassifyMalformedSuggestion(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]any{"content": `{"suggestedName":"Mug","confidence":3.0}`}},
			},
		})
	}))
	defer srv.Close()

	adapter := newOpenAICompatAdapter(srv.Client())
	cfg := &models.HouseholdVisionConfig{Model: "gpt-4o-mini", BaseURL: srv.URL}

	_, err := adapter.ClassifyImage(context.Background(), "sk-test", cfg, "p", testImage())
	if err == nil {
		t.Fatal("ClassifyImage() with out-of-range confidence should fail")
	}
}
