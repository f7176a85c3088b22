// Package store defines the document-store collaborator boundary for the
// vision gateway: household membership lookups, per-household config and
// secret-envelope documents, and the append-only VisionJob collection.
//
// Writes are merge-style partial updates with server-assigned timestamps.
// Callers must not assume read-after-write consistency stronger than
// "eventually visible"; concurrent writes race under last-write-wins.
package store

import (
	"context"

	"github.com/hearthstash/hearthstash/gateway/pkg/models"
)

// Store is the full collaborator surface the gateway depends on.
type Store interface {
	MembershipStore
	VisionConfigStore
	SecretStore
	VisionJobStore

	// Close releases all resources held by the store.
	Close() error
}

// ── Membership ──────────────────────────────────────────────

// MembershipStore answers household role questions. Membership records
// themselves are owned by the surrounding application.
type MembershipStore interface {
	IsMember(ctx context.Context, householdID, actorID string) (bool, error)
	IsAdmin(ctx context.Context, householdID, actorID string) (bool, error)
}

// ── Vision Config ───────────────────────────────────────────

// VisionConfigStore holds one config document per household.
type VisionConfigStore interface {
	GetVisionConfig(ctx context.Context, householdID string) (*models.HouseholdVisionConfig, error)

	// UpsertVisionConfig merge-writes the caller-settable fields and stamps
	// UpdatedAt/UpdatedBy server-side. Sibling audit fields written by
	// StampValidated survive the upsert.
	UpsertVisionConfig(ctx context.Context, householdID string, cfg *models.HouseholdVisionConfig, actorID string) error

	// StampValidated merge-writes LastValidatedAt/LastValidatedBy only.
	StampValidated(ctx context.Context, householdID, actorID string) error
}

// ── Secret Envelope ─────────────────────────────────────────

// SecretStore holds one opaque secret-envelope document per household.
// Each put replaces the whole envelope; envelopes are never merged.
type SecretStore interface {
	GetSecretEnvelope(ctx context.Context, householdID string) (string, error)
	PutSecretEnvelope(ctx context.Context, householdID, envelope, actorID string) error
}

// ── Vision Jobs ─────────────────────────────────────────────

// VisionJobStore is the append-only audit collection. Jobs are never
// mutated or deleted by the gateway.
type VisionJobStore interface {
	CreateVisionJob(ctx context.Context, job *models.VisionJob) error
	ListVisionJobs(ctx context.Context, householdID string, limit int) ([]models.VisionJob, error)
}

// ── Errors ──────────────────────────────────────────────────

// ErrNotFound is returned when a requested document does not exist.
type ErrNotFound struct {
	Entity string
	Key    string
}

func (e *ErrNotFound) Error() string {
	return e.Entity + " not found: " + e.Key
}
