package gateway

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/hearthstash/hearthstash/gateway/internal/imagesource"
	"github.com/hearthstash/hearthstash/gateway/internal/provider"
	"github.com/hearthstash/hearthstash/gateway/internal/store"
	"github.com/hearthstash/hearthstash/gateway/pkg/models"
)

// Pipeline runs one categorization request end to end: membership check,
// config+secret load, image resolution, provider dispatch, normalization,
// and the VisionJob audit write.
type Pipeline struct {
	store     store.Store
	lifecycle *Lifecycle
	registry  *provider.Registry
	images    *imagesource.Resolver
	tracer    trace.Tracer
}

// NewPipeline creates a categorization pipeline.
func NewPipeline(s store.Store, lifecycle *Lifecycle, registry *provider.Registry, images *imagesource.Resolver) *Pipeline {
	return &Pipeline{
		store:     s,
		lifecycle: lifecycle,
		registry:  registry,
		images:    images,
		tracer:    otel.Tracer("hearthstash-vision-gateway"),
	}
}

// Categorize classifies the referenced photo for a household. Any member
// may call it (weaker than the admin gate on config writes). Exactly one
// VisionJob is written per success; the decrypted credential and image
// bytes never outlive the call and are never logged.
func (p *Pipeline) Categorize(ctx context.Context, householdID, actorID string, ref *models.VisionImageRef, areaHint string) (*models.CategorizeResult, error) {
	ctx, span := p.tracer.Start(ctx, "vision.categorize",
		trace.WithAttributes(attribute.String("household.id", householdID)))
	defer span.End()

	if err := p.requireMember(ctx, householdID, actorID); err != nil {
		return nil, err
	}

	// Config and secret are read fresh on every call so rotation takes
	// effect on the next request.
	cfg, credential, err := p.lifecycle.loadConfigAndSecret(ctx, householdID)
	if err != nil {
		return nil, err
	}
	if !cfg.Enabled {
		return nil, &DisabledError{}
	}

	adapter, err := p.registry.Resolve(cfg.ProviderType)
	if err != nil {
		return nil, err
	}

	image, err := p.images.Resolve(ctx, ref)
	if err != nil {
		return nil, err
	}

	span.SetAttributes(
		attribute.String("provider.type", string(cfg.ProviderType)),
		attribute.String("provider.model", cfg.Model),
	)

	prompt := buildPrompt(areaHint)

	start := time.Now()
	suggestion, err := adapter.ClassifyImage(ctx, credential, cfg, prompt, image)
	latencyMs := time.Since(start).Milliseconds()
	if err != nil {
		log.Warn().
			Str("household", householdID).
			Str("provider_type", string(cfg.ProviderType)).
			Int64("latency_ms", latencyMs).
			Err(err).
			Msg("Categorization failed")
		return nil, err
	}

	job := &models.VisionJob{
		ID:           uuid.New().String(),
		HouseholdID:  householdID,
		CreatedAt:    time.Now().UTC(),
		CreatedBy:    actorID,
		ProviderType: cfg.ProviderType,
		Model:        cfg.Model,
		LatencyMs:    latencyMs,
		Confidence:   suggestion.Confidence,
		Context:      areaHint,
	}
	if err := p.store.CreateVisionJob(ctx, job); err != nil {
		return nil, fmt.Errorf("record vision job: %w", err)
	}

	log.Info().
		Str("household", householdID).
		Str("provider_type", string(cfg.ProviderType)).
		Str("model", cfg.Model).
		Int64("latency_ms", latencyMs).
		Float64("confidence", suggestion.Confidence).
		Msg("Categorization completed")

	return &models.CategorizeResult{
		Suggestion: suggestion,
		Provider: models.ProviderInfo{
			ProviderType: cfg.ProviderType,
			Model:        cfg.Model,
		},
	}, nil
}

// ListJobs returns a household's recent audit records, newest first.
// Member-gated like Categorize.
func (p *Pipeline) ListJobs(ctx context.Context, householdID, actorID string, limit int) ([]models.VisionJob, error) {
	if err := p.requireMember(ctx, householdID, actorID); err != nil {
		return nil, err
	}
	return p.store.ListVisionJobs(ctx, householdID, limit)
}

func (p *Pipeline) requireMember(ctx context.Context, householdID, actorID string) error {
	if actorID == "" {
		return &UnauthenticatedError{}
	}
	member, err := p.store.IsMember(ctx, householdID, actorID)
	if err != nil {
		return fmt.Errorf("check membership: %w", err)
	}
	if !member {
		return &PermissionDeniedError{Required: "member"}
	}
	return nil
}
