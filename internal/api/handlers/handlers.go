// Package handlers implements the HTTP handlers for the vision gateway's
// four operations — save config, set secret, validate config, categorize —
// plus the VisionJob audit listing.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/hearthstash/hearthstash/gateway/internal/api/middleware"
	"github.com/hearthstash/hearthstash/gateway/internal/gateway"
	"github.com/hearthstash/hearthstash/gateway/internal/imagesource"
	"github.com/hearthstash/hearthstash/gateway/internal/provider"
	"github.com/hearthstash/hearthstash/gateway/internal/secrets"
	"github.com/hearthstash/hearthstash/gateway/internal/suggest"
	"github.com/hearthstash/hearthstash/gateway/pkg/models"
)

// Handlers holds the gateway entry points.
type Handlers struct {
	Lifecycle *gateway.Lifecycle
	Pipeline  *gateway.Pipeline
}

// New creates a Handlers instance.
func New(lifecycle *gateway.Lifecycle, pipeline *gateway.Pipeline) *Handlers {
	return &Handlers{Lifecycle: lifecycle, Pipeline: pipeline}
}

// SaveConfig handles PUT /households/{householdID}/vision/config.
func (h *Handlers) SaveConfig(w http.ResponseWriter, r *http.Request) {
	householdID := chi.URLParam(r, "householdID")
	actor := middleware.GetActor(r.Context())

	var cfg models.HouseholdVisionConfig
	if err := json.NewDecoder(r.Body).Decode(&cfg); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	saved, err := h.Lifecycle.SaveConfig(r.Context(), householdID, actor, &cfg)
	if err != nil {
		respondFailure(w, err)
		return
	}
	respondJSON(w, http.StatusOK, saved)
}

// SetSecret handles PUT /households/{householdID}/vision/secret.
func (h *Handlers) SetSecret(w http.ResponseWriter, r *http.Request) {
	householdID := chi.URLParam(r, "householdID")
	actor := middleware.GetActor(r.Context())

	var req struct {
		APIKey string `json:"apiKey"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if err := h.Lifecycle.SetSecret(r.Context(), householdID, actor, req.APIKey); err != nil {
		respondFailure(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "secret stored"})
}

// ValidateConfig handles POST /households/{householdID}/vision/config/validate.
func (h *Handlers) ValidateConfig(w http.ResponseWriter, r *http.Request) {
	householdID := chi.URLParam(r, "householdID")
	actor := middleware.GetActor(r.Context())

	result, err := h.Lifecycle.ValidateConfig(r.Context(), householdID, actor)
	if err != nil {
		respondFailure(w, err)
		return
	}
	respondJSON(w, http.StatusOK, result)
}

// Categorize handles POST /households/{householdID}/vision/categorize.
func (h *Handlers) Categorize(w http.ResponseWriter, r *http.Request) {
	householdID := chi.URLParam(r, "householdID")
	actor := middleware.GetActor(r.Context())

	var req struct {
		Image    models.VisionImageRef `json:"image"`
		AreaHint string                `json:"areaHint,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	result, err := h.Pipeline.Categorize(r.Context(), householdID, actor, &req.Image, req.AreaHint)
	if err != nil {
		respondFailure(w, err)
		return
	}
	respondJSON(w, http.StatusOK, result)
}

// ListJobs handles GET /households/{householdID}/vision/jobs.
func (h *Handlers) ListJobs(w http.ResponseWriter, r *http.Request) {
	householdID := chi.URLParam(r, "householdID")
	actor := middleware.GetActor(r.Context())

	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			limit = n
		}
	}

	jobs, err := h.Pipeline.ListJobs(r.Context(), householdID, actor, limit)
	if err != nil {
		respondFailure(w, err)
		return
	}
	if jobs == nil {
		jobs = []models.VisionJob{}
	}
	respondJSON(w, http.StatusOK, jobs)
}

// ── Responses ───────────────────────────────────────────────

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

// respondFailure maps the gateway error taxonomy onto HTTP statuses. The
// error messages are already scrubbed: no credentials, no raw provider
// bodies.
func respondFailure(w http.ResponseWriter, err error) {
	var (
		unauthenticated *gateway.UnauthenticatedError
		denied          *gateway.PermissionDeniedError
		configMissing   *gateway.ConfigMissingError
		secretMissing   *gateway.SecretMissingError
		disabled        *gateway.DisabledError
		invalidArg      *gateway.InvalidArgumentError
		unsupported     *provider.UnsupportedTypeError
		requestFailed   *provider.RequestFailedError
		outputInvalid   *suggest.OutputInvalidError
		notFound        *imagesource.NotFoundError
		fetchFailed     *imagesource.FetchError
		encUnavailable  *secrets.UnavailableError
		decUnconfigured *secrets.UnconfiguredError
		badEnvelope     *secrets.FormatError
	)

	switch {
	case errors.As(err, &unauthenticated):
		respondError(w, http.StatusUnauthorized, err.Error())
	case errors.As(err, &denied):
		respondError(w, http.StatusForbidden, err.Error())
	case errors.As(err, &configMissing), errors.As(err, &secretMissing), errors.As(err, &notFound):
		respondError(w, http.StatusNotFound, err.Error())
	case errors.As(err, &invalidArg), errors.As(err, &unsupported), errors.As(err, &badEnvelope):
		respondError(w, http.StatusBadRequest, err.Error())
	case errors.As(err, &disabled):
		respondError(w, http.StatusConflict, err.Error())
	case errors.As(err, &requestFailed), errors.As(err, &outputInvalid), errors.As(err, &fetchFailed):
		respondError(w, http.StatusBadGateway, err.Error())
	case errors.As(err, &encUnavailable), errors.As(err, &decUnconfigured):
		respondError(w, http.StatusInternalServerError, err.Error())
	default:
		// Unclassified errors may wrap store or transport detail; callers
		// get a generic message.
		respondError(w, http.StatusInternalServerError, "Internal error")
	}
}
