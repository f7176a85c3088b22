// Package server provides the public entry point for initializing the
// vision gateway server. It lives in pkg/ so the full Hearthstash
// deployment can import it and compose the gateway behind its own
// authentication and routing.
package server

import (
	"context"
	"fmt"
	"net/http"

	"github.com/aws/aws-sdk-go-v2/service/kms"
	"github.com/rs/zerolog/log"

	"github.com/hearthstash/hearthstash/gateway/internal/api"
	"github.com/hearthstash/hearthstash/gateway/internal/api/handlers"
	"github.com/hearthstash/hearthstash/gateway/internal/config"
	"github.com/hearthstash/hearthstash/gateway/internal/gateway"
	"github.com/hearthstash/hearthstash/gateway/internal/imagesource"
	"github.com/hearthstash/hearthstash/gateway/internal/provider"
	"github.com/hearthstash/hearthstash/gateway/internal/secrets"
	"github.com/hearthstash/hearthstash/gateway/internal/store"
	"github.com/hearthstash/hearthstash/gateway/internal/telemetry"
	"github.com/hearthstash/hearthstash/gateway/pkg/models"
)

// Server holds the initialized vision gateway.
type Server struct {
	// Handler is the HTTP handler with all routes and middleware.
	Handler http.Handler

	// Store is the data store (in-memory in the standalone build).
	Store store.Store

	// Port is the port the server should listen on.
	Port int

	// ShutdownFunc should be called on graceful shutdown to flush telemetry.
	ShutdownFunc func(context.Context) error
}

// New initializes all gateway components and returns a ready Server.
func New(ctx context.Context) (*Server, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	shutdown, err := telemetry.Init(cfg.Telemetry, cfg.Version)
	if err != nil {
		return nil, fmt.Errorf("init telemetry: %w", err)
	}

	// Standalone build runs against the in-memory store; the full
	// deployment swaps in the managed document store behind the same
	// interfaces.
	memStore := store.NewMemoryStore()
	seedDefaultHousehold(memStore)
	log.Info().Msg("In-memory store initialized")

	var kmsClient secrets.KMSClient
	if cfg.Secrets.KMSKeyARN != "" {
		kmsClient = kms.New(kms.Options{Region: cfg.Secrets.KMSRegion})
		log.Info().Str("key", cfg.Secrets.KMSKeyARN).Msg("KMS envelope encryption enabled")
	}
	codec := secrets.NewCodec(kmsClient, cfg.Secrets.KMSKeyARN, cfg.Secrets.LocalSeed)

	var storage imagesource.ObjectStorage
	if cfg.Storage.Bucket != "" {
		s3Storage, err := imagesource.NewS3Storage(imagesource.S3Options{
			Endpoint: cfg.Storage.Endpoint,
			Region:   cfg.Storage.Region,
			Key:      cfg.Storage.Key,
			Secret:   cfg.Storage.Secret,
			Bucket:   cfg.Storage.Bucket,
			Prefix:   cfg.Storage.Prefix,
		})
		if err != nil {
			return nil, fmt.Errorf("init object storage: %w", err)
		}
		storage = s3Storage
		log.Info().Str("bucket", cfg.Storage.Bucket).Msg("Object storage initialized")
	}

	registry := provider.NewRegistry()
	lifecycle := gateway.NewLifecycle(memStore, codec, registry)
	pipeline := gateway.NewPipeline(memStore, lifecycle, registry, imagesource.NewResolver(storage))

	h := handlers.New(lifecycle, pipeline)
	router := api.NewRouter(cfg, h)

	return &Server{
		Handler:      router,
		Store:        memStore,
		Port:         cfg.Port,
		ShutdownFunc: shutdown,
	}, nil
}

// seedDefaultHousehold gives the standalone build one usable household
// so the API works without the surrounding application. The managed
// deployment owns membership records.
func seedDefaultHousehold(s *store.MemoryStore) {
	s.SetMembership("default", "admin", models.RoleAdmin)
	s.SetMembership("default", "member", models.RoleMember)
}
