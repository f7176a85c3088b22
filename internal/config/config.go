// Package config loads process configuration from environment variables.
package config

import (
	"fmt"

	"github.com/caarlos0/env/v6"
	"github.com/rs/zerolog/log"
)

// DefaultLocalSeed is the local-encryption seed used when none is
// configured. It is public by definition and acceptable only outside
// production; deployment tooling is expected to set VISION_LOCAL_SEED
// (or a KMS key) there. Load warns when the default is active.
const DefaultLocalSeed = "hearthstash-dev-seed"

// Config holds all configuration for the vision gateway.
type Config struct {
	Port    int    `env:"HEARTHSTASH_PORT" envDefault:"8080"`
	Version string `env:"HEARTHSTASH_VERSION" envDefault:"0.1.0"`

	Secrets   SecretsConfig
	Storage   StorageConfig
	Telemetry TelemetryConfig
}

// SecretsConfig selects the envelope-encryption write mode. A key ARN
// switches new writes to KMS; the local seed stays configured either way
// so historical local: envelopes remain readable.
type SecretsConfig struct {
	KMSKeyARN string `env:"VISION_KMS_KEY_ARN"`
	KMSRegion string `env:"VISION_KMS_REGION" envDefault:"us-east-1"`
	LocalSeed string `env:"VISION_LOCAL_SEED"`
}

// StorageConfig points at the object store holding inventory photos.
type StorageConfig struct {
	Endpoint string `env:"VISION_S3_ENDPOINT"`
	Region   string `env:"VISION_S3_REGION" envDefault:"auto"`
	Key      string `env:"VISION_S3_KEY"`
	Secret   string `env:"VISION_S3_SECRET"`
	Bucket   string `env:"VISION_S3_BUCKET"`
	Prefix   string `env:"VISION_S3_PREFIX"`
}

type TelemetryConfig struct {
	Enabled      bool   `env:"OTEL_ENABLED" envDefault:"true"`
	OTLPEndpoint string `env:"OTEL_EXPORTER_OTLP_ENDPOINT" envDefault:"localhost:4317"`
	ServiceName  string `env:"OTEL_SERVICE_NAME" envDefault:"hearthstash-vision-gateway"`
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}

	if cfg.Secrets.LocalSeed == "" {
		cfg.Secrets.LocalSeed = DefaultLocalSeed
	}
	if cfg.Secrets.LocalSeed == DefaultLocalSeed && cfg.Secrets.KMSKeyARN == "" {
		log.Warn().Msg("Secrets use the default local seed; set VISION_LOCAL_SEED or VISION_KMS_KEY_ARN in production")
	}

	return cfg, nil
}
