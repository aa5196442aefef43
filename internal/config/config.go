package config

import (
	"fmt"
	"strings"
	"time"

	sharedauth "github.com/littlwoop/saiko-app-sub000/internal/shared/auth"
	"github.com/littlwoop/saiko-app-sub000/internal/shared/envconfig"
)

// Config encapsulates the runtime configuration for the challenge service.
type Config struct {
	Port            string `validate:"required,numeric"`
	GCPProjectID    string
	LogLevel        string `validate:"omitempty,oneof=debug info warn warning error"`
	Timezone        string `validate:"required"`
	ShutdownTimeout time.Duration
	LoadConcurrency int `validate:"gte=1,lte=64"`
	DataStore       DataStore
	Auth            AuthConfig
	Firestore       FirestoreConfig
	Postgres        PostgresConfig
	Export          ExportConfig
}

// DataStore enumerates supported persistence backends.
type DataStore string

const (
	// DataStoreMemory keeps challenges in-memory (local development and tests).
	DataStoreMemory DataStore = "memory"
	// DataStoreFirestore stores challenges in Google Cloud Firestore.
	DataStoreFirestore DataStore = "firestore"
	// DataStorePostgres stores challenges in PostgreSQL.
	DataStorePostgres DataStore = "postgres"
)

// AuthConfig stores authentication middleware setup.
type AuthConfig struct {
	Mode     sharedauth.Mode
	JWKSURL  string `validate:"omitempty,url"`
	Audience string
	Issuer   string
}

// FirestoreConfig tailors Firestore client behavior.
type FirestoreConfig struct {
	EmulatorHost string
	Database     string
}

// PostgresConfig holds the connection settings for DATASTORE=postgres.
type PostgresConfig struct {
	URL         string
	AutoMigrate bool
}

// ExportConfig controls leaderboard snapshot uploads. An empty bucket disables export.
type ExportConfig struct {
	Bucket string
	URLTTL time.Duration
}

// Load reads .env (when present) and environment variables into Config with validation.
func Load() (Config, error) {
	if err := envconfig.LoadDotEnv(); err != nil {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}

	cfg := Config{
		Port:            envconfig.Get("PORT", "8080"),
		GCPProjectID:    envconfig.Get("GCP_PROJECT_ID", ""),
		LogLevel:        strings.ToLower(envconfig.Get("LOG_LEVEL", "info")),
		Timezone:        envconfig.Get("CHALLENGE_TIMEZONE", "Asia/Jakarta"),
		ShutdownTimeout: envconfig.GetDuration("SHUTDOWN_TIMEOUT", 10*time.Second),
		LoadConcurrency: envconfig.GetInt("LEADERBOARD_LOAD_CONCURRENCY", 8),
		DataStore:       DataStore(strings.ToLower(envconfig.Get("DATASTORE", string(DataStoreMemory)))),
		Auth: AuthConfig{
			Mode:     sharedauth.Mode(strings.ToLower(envconfig.Get("AUTH_MODE", string(sharedauth.ModeNoop)))),
			JWKSURL:  envconfig.Get("CLERK_JWKS_URL", ""),
			Audience: envconfig.Get("CLERK_AUDIENCE", ""),
			Issuer:   envconfig.Get("CLERK_ISSUER", ""),
		},
		Firestore: FirestoreConfig{
			EmulatorHost: envconfig.Get("FIRESTORE_EMULATOR_HOST", ""),
			Database:     envconfig.Get("FIRESTORE_DATABASE", ""),
		},
		Postgres: PostgresConfig{
			URL:         envconfig.Get("DATABASE_URL", ""),
			AutoMigrate: envconfig.GetBool("POSTGRES_AUTO_MIGRATE", true),
		},
		Export: ExportConfig{
			Bucket: envconfig.Get("EXPORT_BUCKET", ""),
			URLTTL: envconfig.GetDuration("EXPORT_URL_TTL", 24*time.Hour),
		},
	}

	if err := validate(cfg); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func validate(cfg Config) error {
	if err := envconfig.Validate(cfg); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	switch cfg.DataStore {
	case DataStoreMemory:
		// no-op
	case DataStoreFirestore:
		if cfg.GCPProjectID == "" {
			return fmt.Errorf("gcp project id required when datastore=firestore")
		}
	case DataStorePostgres:
		if strings.TrimSpace(cfg.Postgres.URL) == "" {
			return fmt.Errorf("DATABASE_URL is required when datastore=postgres")
		}
	default:
		return fmt.Errorf("unsupported datastore: %s", cfg.DataStore)
	}

	switch cfg.Auth.Mode {
	case sharedauth.ModeClerk:
		if cfg.Auth.JWKSURL == "" {
			return fmt.Errorf("CLERK_JWKS_URL is required when AUTH_MODE=clerk")
		}
	case sharedauth.ModeNoop:
		// no-op
	default:
		return fmt.Errorf("unsupported auth mode: %s", cfg.Auth.Mode)
	}

	return nil
}
