// Package config loads server configuration from the environment.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"go.uber.org/fx"
)

// Module provides the config via fx
var Module = fx.Module("config",
	fx.Provide(NewConfig),
)

// Embedding provider identifiers
const (
	EmbedProviderGenAI  = "genai"
	EmbedProviderVertex = "vertex"
)

// MigratedVectorDim is the embedding dimension the bundled migrations
// create for rag.chunks.embedding. A deployment running another
// dimension has to manage the schema itself.
const MigratedVectorDim = 768

// Config is the root configuration
type Config struct {
	Environment string `env:"GO_ENV" envDefault:"development"`
	Debug       bool   `env:"DEBUG" envDefault:"false"`

	ServerAddress string `env:"SERVER_ADDRESS" envDefault:"0.0.0.0"`
	ServerPort    int    `env:"SERVER_PORT" envDefault:"8080"`

	// BodyLimitBytes caps inbound request bodies; oversize requests get 413.
	BodyLimitBytes int64 `env:"BODY_LIMIT_BYTES" envDefault:"33554432"`

	ReadTimeout     time.Duration `env:"SERVER_READ_TIMEOUT" envDefault:"60s"`
	WriteTimeout    time.Duration `env:"SERVER_WRITE_TIMEOUT" envDefault:"120s"`
	IdleTimeout     time.Duration `env:"SERVER_IDLE_TIMEOUT" envDefault:"120s"`
	ShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT" envDefault:"15s"`

	Database   DatabaseConfig
	Auth       AuthConfig
	Embeddings EmbeddingsConfig
	Enrichment EnrichmentConfig
	Blob       BlobConfig
	Fetch      FetchConfig
}

// DatabaseConfig holds Postgres connection settings
type DatabaseConfig struct {
	// URL is the connection string; required.
	URL           string `env:"DATABASE_URL"`
	MaxConns      int32  `env:"DATABASE_MAX_CONNS" envDefault:"10"`
	RunMigrations bool   `env:"DATABASE_RUN_MIGRATIONS" envDefault:"true"`
}

// AuthConfig holds the API bearer token. An empty token disables auth.
type AuthConfig struct {
	APIToken string `env:"RAGED_API_TOKEN"`
}

// Enabled reports whether bearer auth is enforced
func (c *AuthConfig) Enabled() bool {
	return c.APIToken != ""
}

// EmbeddingsConfig selects and configures the embedding provider
type EmbeddingsConfig struct {
	Provider  string `env:"EMBED_PROVIDER"`
	Model     string `env:"EMBED_MODEL" envDefault:"text-embedding-004"`
	Dimension int    `env:"VECTOR_DIM" envDefault:"768"`

	// Concurrency bounds in-flight embedding requests per batch.
	Concurrency int `env:"EMBED_CONCURRENCY" envDefault:"10"`

	// genai provider
	GoogleAPIKey string `env:"GOOGLE_API_KEY"`

	// vertex provider
	GCPProjectID   string `env:"GCP_PROJECT_ID"`
	VertexLocation string `env:"VERTEX_LOCATION" envDefault:"us-central1"`
}

// IsEnabled reports whether an embedding provider is configured
func (c *EmbeddingsConfig) IsEnabled() bool {
	switch c.Provider {
	case EmbedProviderGenAI:
		return c.GoogleAPIKey != ""
	case EmbedProviderVertex:
		return c.GCPProjectID != ""
	}
	return false
}

// EnrichmentConfig tunes the enrichment task queue
type EnrichmentConfig struct {
	// Enabled gates enqueue on ingest.
	Enabled bool `env:"ENRICHMENT_ENABLED" envDefault:"false"`

	// LeaseSeconds is the claim lease duration.
	LeaseSeconds int `env:"ENRICHMENT_LEASE_SECONDS" envDefault:"300"`

	// MaxAttempts before a task is moved to the dead letter state.
	MaxAttempts int `env:"ENRICHMENT_MAX_ATTEMPTS" envDefault:"3"`

	// BaseRetryDelaySec seeds the retry backoff (base * attempt^2, capped).
	BaseRetryDelaySec int `env:"ENRICHMENT_BASE_RETRY_DELAY_SEC" envDefault:"60"`
	MaxRetryDelaySec  int `env:"ENRICHMENT_MAX_RETRY_DELAY_SEC" envDefault:"3600"`

	// StaleSweepCron is the cadence for releasing expired leases.
	StaleSweepCron string `env:"ENRICHMENT_STALE_SWEEP_CRON" envDefault:"*/2 * * * *"`
}

// Lease returns the lease duration
func (c *EnrichmentConfig) Lease() time.Duration {
	return time.Duration(c.LeaseSeconds) * time.Second
}

// BlobConfig holds optional S3-compatible blob store settings for raw
// payloads exceeding ThresholdBytes. Absent endpoint/keys disable the
// fallback.
type BlobConfig struct {
	Endpoint       string `env:"BLOB_STORE_ENDPOINT"`
	AccessKey      string `env:"BLOB_STORE_ACCESS_KEY"`
	SecretKey      string `env:"BLOB_STORE_SECRET_KEY"`
	Region         string `env:"BLOB_STORE_REGION" envDefault:"us-east-1"`
	Bucket         string `env:"BLOB_STORE_BUCKET" envDefault:"raged-raw"`
	ThresholdBytes int64  `env:"BLOB_STORE_THRESHOLD_BYTES" envDefault:"262144"`
}

// Enabled reports whether the blob store is configured
func (c *BlobConfig) Enabled() bool {
	return c.Endpoint != "" && c.AccessKey != "" && c.SecretKey != ""
}

// FetchConfig tunes the URL fetcher
type FetchConfig struct {
	TimeoutSeconds int   `env:"FETCH_TIMEOUT_SECONDS" envDefault:"30"`
	MaxBodyBytes   int64 `env:"FETCH_MAX_BODY_BYTES" envDefault:"10485760"`
	MaxRedirects   int   `env:"FETCH_MAX_REDIRECTS" envDefault:"5"`
	Concurrency    int   `env:"FETCH_CONCURRENCY" envDefault:"5"`
}

// Timeout returns the per-URL fetch timeout
func (c *FetchConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// NewConfig parses configuration from the environment
func NewConfig() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if cfg.Database.URL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	if cfg.Database.RunMigrations && cfg.Embeddings.Dimension != MigratedVectorDim {
		return nil, fmt.Errorf(
			"VECTOR_DIM=%d does not match the bundled schema, which declares vector(%d); set VECTOR_DIM=%d or disable DATABASE_RUN_MIGRATIONS and manage the schema externally",
			cfg.Embeddings.Dimension, MigratedVectorDim, MigratedVectorDim)
	}
	return cfg, nil
}
