// Package models defines the shared domain records for the Hearthstash
// vision-categorization gateway: per-household provider configuration,
// categorization suggestions, and the VisionJob audit trail.
package models

import "time"

// ── Provider Types ──────────────────────────────────────────

// ProviderType identifies a vision provider wire protocol.
type ProviderType string

const (
	// ProviderGenericHTTP is an OpenAI-compatible chat-completions endpoint
	// (OpenAI itself, or any self-hosted gateway speaking the same protocol).
	ProviderGenericHTTP ProviderType = "generic-http"

	// ProviderFirstPartyMultimodal is a Gemini-style generateContent endpoint
	// with inline image bytes.
	ProviderFirstPartyMultimodal ProviderType = "first-party-multimodal"

	// ProviderAnthropicStyle is a messages endpoint with base64 image
	// content blocks.
	ProviderAnthropicStyle ProviderType = "anthropic-style"
)

// KnownProviderTypes lists the closed set of supported provider types.
var KnownProviderTypes = []ProviderType{
	ProviderGenericHTTP,
	ProviderFirstPartyMultimodal,
	ProviderAnthropicStyle,
}

// PromptProfileDefault is the only prompt profile the gateway ships.
const PromptProfileDefault = "default_inventory"

// ── Household Vision Config ─────────────────────────────────

// HouseholdVisionConfig is the per-household provider configuration.
// It is written only by household admins through the lifecycle manager
// and read fresh on every categorization call — config or key rotation
// takes effect on the next request.
type HouseholdVisionConfig struct {
	ProviderType  ProviderType `json:"providerType"`
	Model         string       `json:"model"`
	BaseURL       string       `json:"baseUrl,omitempty"` // generic-http only
	Enabled       bool         `json:"enabled"`
	PromptProfile string       `json:"promptProfile"`
	MaxTokens     *int         `json:"maxTokens,omitempty"`   // 1–4096
	Temperature   *float64     `json:"temperature,omitempty"` // 0.0–2.0

	// Audit fields written only by the gateway.
	UpdatedAt       time.Time  `json:"updatedAt,omitempty"`
	UpdatedBy       string     `json:"updatedBy,omitempty"`
	LastValidatedAt *time.Time `json:"lastValidatedAt,omitempty"`
	LastValidatedBy string     `json:"lastValidatedBy,omitempty"`
}

// ── Secrets ─────────────────────────────────────────────────

// SecretRecord holds a household's encrypted provider credential.
// The envelope is opaque to everything except the secret codec.
type SecretRecord struct {
	Envelope  string    `json:"envelope"`
	UpdatedAt time.Time `json:"updatedAt"`
	UpdatedBy string    `json:"updatedBy"`
}

// ── Vision Suggestion ───────────────────────────────────────

// VisionSuggestion is a validated categorization suggestion. Provider
// output never reaches a caller or the store without passing through
// the normalizer first.
type VisionSuggestion struct {
	SuggestedName string   `json:"suggestedName"`
	Tags          []string `json:"tags"`
	Notes         string   `json:"notes,omitempty"`
	Confidence    float64  `json:"confidence"`
	Rationale     string   `json:"rationale,omitempty"`
}

// ── Image Input ─────────────────────────────────────────────

// VisionImageInput carries resolved image bytes for a single request.
// It is constructed per request and never persisted.
type VisionImageInput struct {
	MimeType  string
	Bytes     []byte
	SourceURL string
}

// VisionImageRef points at an image to categorize: either an object-storage
// path (optionally with an already-issued pre-signed download URL) or a
// direct image URL.
type VisionImageRef struct {
	StoragePath string `json:"storagePath,omitempty"`
	DownloadURL string `json:"downloadUrl,omitempty"`
	URL         string `json:"url,omitempty"`
}

// ── Vision Job (audit) ──────────────────────────────────────

// VisionJob records the metadata of one successful categorization call.
// Exactly one is written per success; the image bytes and the credential
// are never part of the record. Jobs are append-only.
type VisionJob struct {
	ID           string       `json:"id"`
	HouseholdID  string       `json:"householdId"`
	CreatedAt    time.Time    `json:"createdAt"`
	CreatedBy    string       `json:"createdBy"`
	ProviderType ProviderType `json:"providerType"`
	Model        string       `json:"model"`
	LatencyMs    int64        `json:"latencyMs"`
	Confidence   float64      `json:"confidence"`
	Context      string       `json:"context,omitempty"` // space/area hint
}

// ── Validation ──────────────────────────────────────────────

// ValidationResult reports whether a provider credential/config pair is
// reachable. An unreachable or unauthorized provider is an expected,
// actionable outcome, so it is a result rather than an error.
type ValidationResult struct {
	OK        bool   `json:"ok"`
	Message   string `json:"message"`
	LatencyMs int64  `json:"latencyMs"`
}

// ProviderInfo names the provider/model that produced a suggestion.
type ProviderInfo struct {
	ProviderType ProviderType `json:"providerType"`
	Model        string       `json:"model"`
}

// CategorizeResult is the success payload of a categorization call.
type CategorizeResult struct {
	Suggestion *VisionSuggestion `json:"suggestion"`
	Provider   ProviderInfo      `json:"provider"`
}

// ── Membership ──────────────────────────────────────────────

// Role is a household membership role.
type Role string

const (
	RoleMember Role = "member"
	RoleAdmin  Role = "admin"
)
