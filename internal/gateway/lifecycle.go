// Package gateway orchestrates the vision gateway's four operations:
// saveConfig, setSecret, validateConfig, and categorize. It owns the
// household-level state machine (Unconfigured → ConfigSaved / SecretSet →
// Validated) and the caller-visible error taxonomy.
package gateway

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/hearthstash/hearthstash/gateway/internal/provider"
	"github.com/hearthstash/hearthstash/gateway/internal/secrets"
	"github.com/hearthstash/hearthstash/gateway/internal/store"
	"github.com/hearthstash/hearthstash/gateway/pkg/models"
)

// Lifecycle manages per-household provider configuration and secrets.
type Lifecycle struct {
	store    store.Store
	codec    *secrets.Codec
	registry *provider.Registry
}

// NewLifecycle creates a lifecycle manager.
func NewLifecycle(s store.Store, codec *secrets.Codec, registry *provider.Registry) *Lifecycle {
	return &Lifecycle{store: s, codec: codec, registry: registry}
}

// SaveConfig validates and merge-upserts a household's vision config.
// Reachability is deliberately not checked here; that is validateConfig's
// job. Re-saving overwrites.
func (l *Lifecycle) SaveConfig(ctx context.Context, householdID, actorID string, cfg *models.HouseholdVisionConfig) (*models.HouseholdVisionConfig, error) {
	if err := l.requireAdmin(ctx, householdID, actorID); err != nil {
		return nil, err
	}
	if err := validateConfigFields(cfg); err != nil {
		return nil, err
	}

	saved := *cfg
	saved.PromptProfile = models.PromptProfileDefault
	if saved.ProviderType != models.ProviderGenericHTTP {
		saved.BaseURL = "" // only meaningful for generic-http
	}

	if err := l.store.UpsertVisionConfig(ctx, householdID, &saved, actorID); err != nil {
		return nil, fmt.Errorf("upsert vision config: %w", err)
	}

	log.Info().
		Str("household", householdID).
		Str("provider_type", string(saved.ProviderType)).
		Str("model", saved.Model).
		Bool("enabled", saved.Enabled).
		Msg("Vision config saved")

	return l.store.GetVisionConfig(ctx, householdID)
}

// SetSecret encrypts the API key and replaces the household's envelope.
// The plaintext key is never persisted or logged.
func (l *Lifecycle) SetSecret(ctx context.Context, householdID, actorID, apiKey string) error {
	if err := l.requireAdmin(ctx, householdID, actorID); err != nil {
		return err
	}
	if apiKey == "" {
		return &InvalidArgumentError{Field: "apiKey", Reason: "must not be empty"}
	}

	envelope, err := l.codec.Encrypt(ctx, apiKey)
	if err != nil {
		return err
	}

	if err := l.store.PutSecretEnvelope(ctx, householdID, envelope, actorID); err != nil {
		return fmt.Errorf("put secret envelope: %w", err)
	}

	log.Info().Str("household", householdID).Msg("Vision secret rotated")
	return nil
}

// ValidateConfig decrypts the stored secret and asks the configured
// provider whether the credential works. A not-OK result is an expected
// outcome and comes back as a result, not an error; only on OK does the
// config get its last-validated stamp.
func (l *Lifecycle) ValidateConfig(ctx context.Context, householdID, actorID string) (*models.ValidationResult, error) {
	if err := l.requireAdmin(ctx, householdID, actorID); err != nil {
		return nil, err
	}

	cfg, credential, err := l.loadConfigAndSecret(ctx, householdID)
	if err != nil {
		return nil, err
	}

	adapter, err := l.registry.Resolve(cfg.ProviderType)
	if err != nil {
		return nil, err
	}

	result, err := adapter.Validate(ctx, credential, cfg)
	if err != nil {
		return nil, err
	}

	if result.OK {
		if err := l.store.StampValidated(ctx, householdID, actorID); err != nil {
			return nil, fmt.Errorf("stamp validated: %w", err)
		}
	}

	log.Info().
		Str("household", householdID).
		Bool("ok", result.OK).
		Int64("latency_ms", result.LatencyMs).
		Msg("Vision config validated")

	return result, nil
}

// loadConfigAndSecret loads and decrypts a household's provider setup.
// The config is checked before the secret so a missing config never
// masquerades as a missing secret.
func (l *Lifecycle) loadConfigAndSecret(ctx context.Context, householdID string) (*models.HouseholdVisionConfig, string, error) {
	cfg, err := l.store.GetVisionConfig(ctx, householdID)
	if err != nil {
		var notFound *store.ErrNotFound
		if errors.As(err, &notFound) {
			return nil, "", &ConfigMissingError{HouseholdID: householdID}
		}
		return nil, "", fmt.Errorf("get vision config: %w", err)
	}

	envelope, err := l.store.GetSecretEnvelope(ctx, householdID)
	if err != nil {
		var notFound *store.ErrNotFound
		if errors.As(err, &notFound) {
			return nil, "", &SecretMissingError{HouseholdID: householdID}
		}
		return nil, "", fmt.Errorf("get secret envelope: %w", err)
	}

	credential, err := l.codec.Decrypt(ctx, envelope)
	if err != nil {
		return nil, "", err
	}

	return cfg, credential, nil
}

func (l *Lifecycle) requireAdmin(ctx context.Context, householdID, actorID string) error {
	if actorID == "" {
		return &UnauthenticatedError{}
	}
	admin, err := l.store.IsAdmin(ctx, householdID, actorID)
	if err != nil {
		return fmt.Errorf("check admin role: %w", err)
	}
	if !admin {
		return &PermissionDeniedError{Required: "admin"}
	}
	return nil
}

func validateConfigFields(cfg *models.HouseholdVisionConfig) error {
	known := false
	for _, pt := range models.KnownProviderTypes {
		if cfg.ProviderType == pt {
			known = true
			break
		}
	}
	if !known {
		return &InvalidArgumentError{Field: "providerType", Reason: fmt.Sprintf("unknown provider type %q", cfg.ProviderType)}
	}
	if cfg.Model == "" {
		return &InvalidArgumentError{Field: "model", Reason: "must not be empty"}
	}
	if cfg.MaxTokens != nil && (*cfg.MaxTokens < 1 || *cfg.MaxTokens > 4096) {
		return &InvalidArgumentError{Field: "maxTokens", Reason: "must be between 1 and 4096"}
	}
	if cfg.Temperature != nil && (*cfg.Temperature < 0.0 || *cfg.Temperature > 2.0) {
		return &InvalidArgumentError{Field: "temperature", Reason: "must be between 0.0 and 2.0"}
	}
	return nil
}
