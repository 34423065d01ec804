package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"google.golang.org/api/option"

	"github.com/akbarsho/storefront-backend/api/controllers"
	"github.com/akbarsho/storefront-backend/api/routes"
	"github.com/akbarsho/storefront-backend/internal/catalog"
	"github.com/akbarsho/storefront-backend/internal/identity"
	"github.com/akbarsho/storefront-backend/internal/orders"
	"github.com/akbarsho/storefront-backend/internal/registry"
	"github.com/akbarsho/storefront-backend/pkg/config"
	"github.com/akbarsho/storefront-backend/pkg/db"
	"github.com/akbarsho/storefront-backend/pkg/docstore"
	"github.com/akbarsho/storefront-backend/pkg/logger"
	"github.com/akbarsho/storefront-backend/pkg/metrics"
	"github.com/akbarsho/storefront-backend/pkg/migrate"
	"github.com/akbarsho/storefront-backend/pkg/pubsub"
	"github.com/akbarsho/storefront-backend/pkg/redis"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	ctx := context.Background()
	pingers := map[string]controllers.Pinger{}

	var redisClient *redis.Client
	if cfg.Redis.URL != "" || cfg.Redis.Address != "" {
		redisClient, err = redis.New(ctx, cfg.Redis, logg)
		if err != nil {
			logg.Error(ctx, "failed to bootstrap redis", err)
			os.Exit(1)
		}
		defer func() {
			if err := redisClient.Close(); err != nil {
				logg.Error(ctx, "error closing redis", err)
			}
		}()
		pingers["redis"] = redisClient
	}

	store, cleanup, err := buildDocstore(ctx, cfg, logg, redisClient, pingers)
	if err != nil {
		logg.Error(ctx, "failed to bootstrap document store", err)
		os.Exit(1)
	}
	defer cleanup()

	var publisher orders.Publisher
	if cfg.GCP.ProjectID != "" {
		pubsubClient, err := pubsub.NewClient(ctx, cfg.GCP, cfg.PubSub, logg)
		if err != nil {
			logg.Error(ctx, "failed to bootstrap pubsub", err)
			os.Exit(1)
		}
		defer func() {
			if err := pubsubClient.Close(); err != nil {
				logg.Error(ctx, "error closing pubsub", err)
			}
		}()
		pingers["pubsub"] = pubsubClient
		publisher = pubsubClient
	}

	verifier, err := identity.NewVerifier(ctx, identity.VerifierParams{
		Auth:     cfg.Auth,
		GCP:      cfg.GCP,
		Profiles: store,
	})
	if err != nil {
		logg.Error(ctx, "failed to create identity verifier", err)
		os.Exit(1)
	}

	promReg := prometheus.NewRegistry()
	opMetrics := metrics.NewOpMetrics(promReg)

	var cache catalog.Cache
	if redisClient != nil {
		cache = redisClient
	}
	catalogService, err := catalog.NewService(catalog.ServiceParams{
		Config: cfg.Catalog,
		Cache:  cache,
		Logger: logg,
	})
	if err != nil {
		logg.Error(ctx, "failed to create catalog service", err)
		os.Exit(1)
	}

	registryService, err := registry.NewService(registry.ServiceParams{
		Store:   store,
		Logger:  logg,
		Metrics: opMetrics,
	})
	if err != nil {
		logg.Error(ctx, "failed to create line registry", err)
		os.Exit(1)
	}

	ordersService, err := orders.NewService(orders.ServiceParams{
		Store:     store,
		Registry:  registryService,
		Publisher: publisher,
		Logger:    logg,
		Metrics:   opMetrics,
	})
	if err != nil {
		logg.Error(ctx, "failed to create orders service", err)
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port

	ctx = logg.WithFields(ctx, map[string]any{
		"env":     cfg.App.Env,
		"addr":    addr,
		"backend": cfg.Docstore.Backend,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(routes.Deps{
			Config:   cfg,
			Logger:   logg,
			Verifier: verifier,
			Registry: registryService,
			Catalog:  catalogService,
			Orders:   ordersService,
			Pingers:  pingers,
			Gatherer: promReg,
		}),
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			logg.Error(ctx, "api server stopped unexpectedly", err)
			os.Exit(1)
		}
	case <-stop:
		logg.Info(ctx, "shutting down api server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logg.Error(ctx, "graceful shutdown failed", err)
			os.Exit(1)
		}
	}
}

// buildDocstore resolves the configured backend. The returned cleanup is
// always safe to defer.
func buildDocstore(
	ctx context.Context,
	cfg *config.Config,
	logg *logger.Logger,
	redisClient *redis.Client,
	pingers map[string]controllers.Pinger,
) (docstore.Store, func(), error) {
	switch cfg.Docstore.Backend {
	case config.DocstoreBackendPostgres:
		dbClient, err := db.New(ctx, cfg.DB, logg)
		if err != nil {
			return nil, func() {}, err
		}
		if err := migrate.MaybeRunDev(ctx, cfg, logg, dbClient); err != nil {
			_ = dbClient.Close()
			return nil, func() {}, err
		}

		var bridge docstore.Bridge
		if redisClient != nil {
			bridge = redisClient
		}
		store, err := docstore.NewPostgresStore(dbClient.DB(), bridge, logg)
		if err != nil {
			_ = dbClient.Close()
			return nil, func() {}, err
		}
		pingers["postgres"] = dbClient
		cleanup := func() {
			store.Close()
			if err := dbClient.Close(); err != nil {
				logg.Error(ctx, "error closing database", err)
			}
		}
		return store, cleanup, nil

	case config.DocstoreBackendFirestore:
		opts := []option.ClientOption{}
		if cfg.GCP.CredentialsJSON != "" {
			opts = append(opts, option.WithCredentialsJSON([]byte(cfg.GCP.CredentialsJSON)))
		}
		client, err := firestore.NewClient(ctx, cfg.GCP.ProjectID, opts...)
		if err != nil {
			return nil, func() {}, err
		}
		store, err := docstore.NewFirestoreStore(client, logg)
		if err != nil {
			_ = client.Close()
			return nil, func() {}, err
		}
		cleanup := func() {
			if err := client.Close(); err != nil {
				logg.Error(ctx, "error closing firestore", err)
			}
		}
		return store, cleanup, nil

	default:
		return docstore.NewMemoryStore(), func() {}, nil
	}
}
