// Package store — in-memory Store implementation.
// Used for local development and tests; production deployments back the
// same interfaces with the managed document store.
package store

import (
	"context"
	"sync"
	"time"

	"github.com/hearthstash/hearthstash/gateway/pkg/models"
)

// MemoryStore implements Store with in-memory maps. All methods take the
// lock, so concurrent writers race under last-write-wins without ever
// exposing a torn document.
type MemoryStore struct {
	mu          sync.RWMutex
	configs     map[string]*models.HouseholdVisionConfig // key: household id
	secrets     map[string]*models.SecretRecord          // key: household id
	jobs        []*models.VisionJob                      // append-only
	memberships map[string]map[string]models.Role        // household id → actor id → role

	now func() time.Time
}

// Option configures a MemoryStore.
type Option func(*MemoryStore)

// WithClock injects the server-assigned-timestamp source. Tests use a
// fixed clock; the default is time.Now.
func WithClock(now func() time.Time) Option {
	return func(m *MemoryStore) { m.now = now }
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore(opts ...Option) *MemoryStore {
	m := &MemoryStore{
		configs:     make(map[string]*models.HouseholdVisionConfig),
		secrets:     make(map[string]*models.SecretRecord),
		memberships: make(map[string]map[string]models.Role),
		now:         func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Close implements Store.
func (m *MemoryStore) Close() error { return nil }

// ── Membership ──────────────────────────────────────────────

// SetMembership seeds a household role. Not part of the Store interface:
// membership writes belong to the surrounding application.
func (m *MemoryStore) SetMembership(householdID, actorID string, role models.Role) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.memberships[householdID] == nil {
		m.memberships[householdID] = make(map[string]models.Role)
	}
	m.memberships[householdID][actorID] = role
}

func (m *MemoryStore) IsMember(ctx context.Context, householdID, actorID string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.memberships[householdID][actorID]
	return ok, nil
}

func (m *MemoryStore) IsAdmin(ctx context.Context, householdID, actorID string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.memberships[householdID][actorID] == models.RoleAdmin, nil
}

// ── Vision Config ───────────────────────────────────────────

func (m *MemoryStore) GetVisionConfig(ctx context.Context, householdID string) (*models.HouseholdVisionConfig, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	cfg, ok := m.configs[householdID]
	if !ok {
		return nil, &ErrNotFound{Entity: "vision config", Key: householdID}
	}
	copied := *cfg
	return &copied, nil
}

func (m *MemoryStore) UpsertVisionConfig(ctx context.Context, householdID string, cfg *models.HouseholdVisionConfig, actorID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	next := *cfg
	next.UpdatedAt = m.now()
	next.UpdatedBy = actorID

	// Merge semantics: validation audit fields are sibling fields owned by
	// StampValidated and survive a config upsert.
	if prev, ok := m.configs[householdID]; ok {
		next.LastValidatedAt = prev.LastValidatedAt
		next.LastValidatedBy = prev.LastValidatedBy
	}

	m.configs[householdID] = &next
	return nil
}

func (m *MemoryStore) StampValidated(ctx context.Context, householdID, actorID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	cfg, ok := m.configs[householdID]
	if !ok {
		return &ErrNotFound{Entity: "vision config", Key: householdID}
	}
	at := m.now()
	cfg.LastValidatedAt = &at
	cfg.LastValidatedBy = actorID
	return nil
}

// ── Secret Envelope ─────────────────────────────────────────

func (m *MemoryStore) GetSecretEnvelope(ctx context.Context, householdID string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.secrets[householdID]
	if !ok {
		return "", &ErrNotFound{Entity: "vision secret", Key: householdID}
	}
	return rec.Envelope, nil
}

func (m *MemoryStore) PutSecretEnvelope(ctx context.Context, householdID, envelope, actorID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	// Whole-record replacement: envelopes are write-once per set, never
	// merged with a previous envelope.
	m.secrets[householdID] = &models.SecretRecord{
		Envelope:  envelope,
		UpdatedAt: m.now(),
		UpdatedBy: actorID,
	}
	return nil
}

// ── Vision Jobs ─────────────────────────────────────────────

func (m *MemoryStore) CreateVisionJob(ctx context.Context, job *models.VisionJob) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	copied := *job
	m.jobs = append(m.jobs, &copied)
	return nil
}

func (m *MemoryStore) ListVisionJobs(ctx context.Context, householdID string, limit int) ([]models.VisionJob, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if limit <= 0 {
		limit = 100
	}

	// Newest first.
	out := make([]models.VisionJob, 0, limit)
	for i := len(m.jobs) - 1; i >= 0 && len(out) < limit; i-- {
		if m.jobs[i].HouseholdID == householdID {
			out = append(out, *m.jobs[i])
		}
	}
	return out, nil
}
