// Package provider implements the vision provider adapters and the
// registry that maps a household's configured provider type onto one.
//
// Every adapter offers the same capability pair: classify an image into a
// categorization suggestion, and validate that a credential/config pair is
// reachable with the cheapest possible authenticated call. The request
// shapes differ per provider; the contract does not.
package provider

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/hearthstash/hearthstash/gateway/pkg/models"
)

// Defaults applied when the household config leaves them unset.
const (
	DefaultTemperature = 0.2
	DefaultMaxTokens   = 400
)

// Adapter is the provider-polymorphic capability set.
type Adapter interface {
	// ClassifyImage sends the image plus prompt to the provider and returns
	// the normalized suggestion. The credential and image bytes must not be
	// retained past the call.
	ClassifyImage(ctx context.Context, credential string, cfg *models.HouseholdVisionConfig, prompt string, image *models.VisionImageInput) (*models.VisionSuggestion, error)

	// Validate issues the cheapest authenticated call for the provider and
	// reports reachability. Ordinary auth/HTTP failures are reported as
	// OK=false, never as an error.
	Validate(ctx context.Context, credential string, cfg *models.HouseholdVisionConfig) (*models.ValidationResult, error)
}

// RequestFailedError reports a non-2xx provider response during
// classification. The response body is deliberately dropped: it may echo
// request contents.
type RequestFailedError struct {
	Provider models.ProviderType
	Status   int
}

func (e *RequestFailedError) Error() string {
	return fmt.Sprintf("provider request failed: %s returned status %d", e.Provider, e.Status)
}

// UnsupportedTypeError reports a provider type outside the known set.
type UnsupportedTypeError struct {
	ProviderType models.ProviderType
}

func (e *UnsupportedTypeError) Error() string {
	return fmt.Sprintf("unsupported provider type: %q", e.ProviderType)
}

// Registry maps provider types onto adapter instances. It is the single
// extension point for adding providers without touching callers.
type Registry struct {
	adapters map[models.ProviderType]Adapter
}

// NewRegistry builds a registry with the three built-in adapters sharing
// one HTTP client.
func NewRegistry() *Registry {
	client := &http.Client{Timeout: 120 * time.Second}
	return &Registry{
		adapters: map[models.ProviderType]Adapter{
			models.ProviderGenericHTTP:          newOpenAICompatAdapter(client),
			models.ProviderFirstPartyMultimodal: newGeminiAdapter(client),
			models.ProviderAnthropicStyle:       newAnthropicAdapter(client),
		},
	}
}

// Resolve returns the adapter for a provider type.
func (r *Registry) Resolve(providerType models.ProviderType) (Adapter, error) {
	adapter, ok := r.adapters[providerType]
	if !ok {
		return nil, &UnsupportedTypeError{ProviderType: providerType}
	}
	return adapter, nil
}

// ── Shared helpers ──────────────────────────────────────────

// settings resolves temperature and max tokens with defaults applied.
func settings(cfg *models.HouseholdVisionConfig) (temperature float64, maxTokens int) {
	temperature = DefaultTemperature
	if cfg.Temperature != nil {
		temperature = *cfg.Temperature
	}
	maxTokens = DefaultMaxTokens
	if cfg.MaxTokens != nil {
		maxTokens = *cfg.MaxTokens
	}
	return temperature, maxTokens
}

// dataURL encodes image bytes as a base64 data URL.
func dataURL(image *models.VisionImageInput) string {
	return fmt.Sprintf("data:%s;base64,%s", image.MimeType, base64.StdEncoding.EncodeToString(image.Bytes))
}

// drain discards a response body so the connection can be reused.
func drain(resp *http.Response) {
	io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
	resp.Body.Close()
}

// unreachable formats a validation failure message without echoing the
// provider's response body.
func unreachable(start time.Time, format string, args ...any) *models.ValidationResult {
	return &models.ValidationResult{
		OK:        false,
		Message:   fmt.Sprintf(format, args...),
		LatencyMs: time.Since(start).Milliseconds(),
	}
}

// reachable reports a successful validation call.
func reachable(start time.Time, message string) *models.ValidationResult {
	return &models.ValidationResult{
		OK:        true,
		Message:   message,
		LatencyMs: time.Since(start).Milliseconds(),
	}
}
