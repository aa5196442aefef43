package config

import (
	"strings"
	"testing"
	"time"

	sharedauth "github.com/littlwoop/saiko-app-sub000/internal/shared/auth"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"PORT", "GCP_PROJECT_ID", "LOG_LEVEL", "CHALLENGE_TIMEZONE", "DATASTORE", "AUTH_MODE",
		"CLERK_JWKS_URL", "CLERK_AUDIENCE", "CLERK_ISSUER", "FIRESTORE_EMULATOR_HOST",
		"FIRESTORE_DATABASE", "DATABASE_URL", "EXPORT_BUCKET", "EXPORT_URL_TTL", "SHUTDOWN_TIMEOUT",
		"LEADERBOARD_LOAD_CONCURRENCY", "POSTGRES_AUTO_MIGRATE",
	} {
		t.Setenv(key, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)
	t.Chdir(t.TempDir())

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Port != "8080" || cfg.DataStore != DataStoreMemory || cfg.Auth.Mode != sharedauth.ModeNoop {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	if cfg.Timezone != "Asia/Jakarta" || cfg.ShutdownTimeout != 10*time.Second {
		t.Fatalf("timezone = %q, shutdown = %s", cfg.Timezone, cfg.ShutdownTimeout)
	}
	if cfg.Export.Bucket != "" || cfg.Export.URLTTL != 24*time.Hour {
		t.Fatalf("export = %+v", cfg.Export)
	}
	if cfg.LoadConcurrency != 8 || !cfg.Postgres.AutoMigrate {
		t.Fatalf("load concurrency = %d, auto migrate = %v", cfg.LoadConcurrency, cfg.Postgres.AutoMigrate)
	}
}

func TestLoadReadsEnvironment(t *testing.T) {
	clearEnv(t)
	t.Chdir(t.TempDir())
	t.Setenv("DATASTORE", "Postgres")
	t.Setenv("DATABASE_URL", "postgres://localhost/challenges")
	t.Setenv("EXPORT_BUCKET", "leaderboards")
	t.Setenv("EXPORT_URL_TTL", "2h")
	t.Setenv("LEADERBOARD_LOAD_CONCURRENCY", "3")
	t.Setenv("POSTGRES_AUTO_MIGRATE", "off")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.DataStore != DataStorePostgres || cfg.Postgres.URL != "postgres://localhost/challenges" {
		t.Fatalf("postgres config = %+v", cfg)
	}
	if cfg.Export.Bucket != "leaderboards" || cfg.Export.URLTTL != 2*time.Hour {
		t.Fatalf("export = %+v", cfg.Export)
	}
	if cfg.LoadConcurrency != 3 || cfg.Postgres.AutoMigrate {
		t.Fatalf("load concurrency = %d, auto migrate = %v", cfg.LoadConcurrency, cfg.Postgres.AutoMigrate)
	}
}

func TestLoadRejectsNonPositiveConcurrency(t *testing.T) {
	clearEnv(t)
	t.Chdir(t.TempDir())
	t.Setenv("LEADERBOARD_LOAD_CONCURRENCY", "0")

	if _, err := Load(); err == nil || !strings.Contains(err.Error(), "invalid config") {
		t.Fatalf("error = %v, want invalid config", err)
	}
}

func TestValidate(t *testing.T) {
	base := Config{Port: "8080", Timezone: "UTC", LoadConcurrency: 8, DataStore: DataStoreMemory, Auth: AuthConfig{Mode: sharedauth.ModeNoop}}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "valid", mutate: func(*Config) {}},
		{name: "non numeric port", mutate: func(c *Config) { c.Port = "http" }, wantErr: "invalid config"},
		{name: "unknown datastore", mutate: func(c *Config) { c.DataStore = "redis" }, wantErr: "unsupported datastore"},
		{name: "firestore without project", mutate: func(c *Config) { c.DataStore = DataStoreFirestore }, wantErr: "gcp project id"},
		{name: "postgres without url", mutate: func(c *Config) { c.DataStore = DataStorePostgres }, wantErr: "DATABASE_URL"},
		{name: "clerk without jwks", mutate: func(c *Config) { c.Auth.Mode = sharedauth.ModeClerk }, wantErr: "CLERK_JWKS_URL"},
		{name: "bad log level", mutate: func(c *Config) { c.LogLevel = "verbose" }, wantErr: "invalid config"},
		{name: "zero load concurrency", mutate: func(c *Config) { c.LoadConcurrency = 0 }, wantErr: "invalid config"},
		{name: "unknown auth mode", mutate: func(c *Config) { c.Auth.Mode = "basic" }, wantErr: "unsupported auth mode"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := base
			tc.mutate(&cfg)
			err := validate(cfg)
			if tc.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tc.wantErr) {
				t.Fatalf("error = %v, want containing %q", err, tc.wantErr)
			}
		})
	}
}
