package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/littlwoop/saiko-app-sub000/internal/calendar"
	"github.com/littlwoop/saiko-app-sub000/internal/challenge"
	"github.com/littlwoop/saiko-app-sub000/internal/config"
	"github.com/littlwoop/saiko-app-sub000/internal/export"
	"github.com/littlwoop/saiko-app-sub000/internal/httpapi"
	sharedauth "github.com/littlwoop/saiko-app-sub000/internal/shared/auth"
	"github.com/littlwoop/saiko-app-sub000/internal/shared/events"
	"github.com/littlwoop/saiko-app-sub000/internal/shared/logging"
	sharedserver "github.com/littlwoop/saiko-app-sub000/internal/shared/server"
)

const serviceName = "challenge-service"

func main() {
	ctx := context.Background()
	cfg, err := config.Load()
	if err != nil {
		panic(fmt.Errorf("config error: %w", err))
	}

	logger := logging.NewLoggerWithLevel(serviceName, cfg.LogLevel)

	store, err := newDatastore(ctx, cfg)
	if err != nil {
		panic(fmt.Errorf("repository init error: %w", err))
	}
	defer store.close()

	challengeService, err := challenge.NewService(store.repo, challenge.NewSystemClock(), challenge.NewUUIDGenerator(),
		challenge.WithNormalizer(calendar.LoadNormalizer(cfg.Timezone)),
		challenge.WithPublisher(events.NewLogPublisher(logger)),
		challenge.WithLogger(logger),
		challenge.WithLoadConcurrency(cfg.LoadConcurrency),
	)
	if err != nil {
		panic(fmt.Errorf("challenge service init error: %w", err))
	}

	var exporter export.Exporter
	if cfg.Export.Bucket != "" {
		exportService, err := export.NewService(ctx, cfg.Export.Bucket, cfg.Export.URLTTL)
		if err != nil {
			panic(fmt.Errorf("export service init error: %w", err))
		}
		defer exportService.Close()
		exporter = exportService
	} else {
		logger.Info("leaderboard export disabled", "reason", "EXPORT_BUCKET not set")
	}

	verifier, err := sharedauth.NewVerifier(sharedauth.Config{
		Mode:     cfg.Auth.Mode,
		JWKSURL:  cfg.Auth.JWKSURL,
		Audience: cfg.Auth.Audience,
		Issuer:   cfg.Auth.Issuer,
		Logger:   logger,
	})
	if err != nil {
		panic(fmt.Errorf("auth verifier error: %w", err))
	}

	router := sharedserver.NewRouter(serviceName, func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(sharedauth.Middleware(verifier))
			httpapi.RegisterRoutes(r, challengeService, exporter, logger)
		})
	}, sharedserver.Check{Name: string(cfg.DataStore), Probe: store.ping})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	if err := sharedserver.Run(ctx, srv, logger, cfg.ShutdownTimeout); err != nil && !errors.Is(err, http.ErrServerClosed) {
		panic(err)
	}
}

// datastore bundles the repository with its readiness check and cleanup.
type datastore struct {
	repo  challenge.Repository
	ping  func(ctx context.Context) error
	close func()
}

func newDatastore(ctx context.Context, cfg config.Config) (datastore, error) {
	switch cfg.DataStore {
	case config.DataStoreFirestore:
		if cfg.Firestore.EmulatorHost != "" {
			if err := os.Setenv("FIRESTORE_EMULATOR_HOST", cfg.Firestore.EmulatorHost); err != nil {
				return datastore{}, fmt.Errorf("set FIRESTORE_EMULATOR_HOST: %w", err)
			}
		}

		var (
			client *firestore.Client
			err    error
		)
		if cfg.Firestore.Database != "" {
			client, err = firestore.NewClientWithDatabase(ctx, cfg.GCPProjectID, cfg.Firestore.Database)
		} else {
			client, err = firestore.NewClient(ctx, cfg.GCPProjectID)
		}
		if err != nil {
			return datastore{}, fmt.Errorf("firestore client: %w", err)
		}

		return datastore{
			repo: challenge.NewFirestoreRepository(client),
			ping: func(ctx context.Context) error {
				_, err := client.Collection("challenges").Limit(1).Documents(ctx).GetAll()
				return err
			},
			close: func() { _ = client.Close() },
		}, nil
	case config.DataStorePostgres:
		pool, err := pgxpool.New(ctx, cfg.Postgres.URL)
		if err != nil {
			return datastore{}, fmt.Errorf("postgres pool: %w", err)
		}
		initCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
		if err := pool.Ping(initCtx); err != nil {
			pool.Close()
			return datastore{}, fmt.Errorf("postgres ping: %w", err)
		}
		if cfg.Postgres.AutoMigrate {
			if err := challenge.Migrate(initCtx, pool); err != nil {
				pool.Close()
				return datastore{}, fmt.Errorf("postgres migrate: %w", err)
			}
		}
		return datastore{repo: challenge.NewPostgresRepository(pool), ping: pool.Ping, close: pool.Close}, nil
	default:
		return datastore{
			repo:  challenge.NewMemoryRepository(),
			ping:  func(context.Context) error { return nil },
			close: func() {},
		}, nil
	}
}
