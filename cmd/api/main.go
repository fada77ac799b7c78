package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/angelmondragon/allergyscan/api/controllers"
	"github.com/angelmondragon/allergyscan/api/routes"
	"github.com/angelmondragon/allergyscan/internal/insights"
	"github.com/angelmondragon/allergyscan/internal/localcache"
	"github.com/angelmondragon/allergyscan/internal/ocr"
	"github.com/angelmondragon/allergyscan/internal/profiles"
	"github.com/angelmondragon/allergyscan/internal/scans"
	"github.com/angelmondragon/allergyscan/internal/session"
	"github.com/angelmondragon/allergyscan/pkg/config"
	"github.com/angelmondragon/allergyscan/pkg/db"
	"github.com/angelmondragon/allergyscan/pkg/instance"
	"github.com/angelmondragon/allergyscan/pkg/logger"
	"github.com/angelmondragon/allergyscan/pkg/metrics"
	"github.com/angelmondragon/allergyscan/pkg/migrate"
	"github.com/angelmondragon/allergyscan/pkg/redis"
)

const shutdownTimeout = 15 * time.Second

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

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	checks := map[string]controllers.Pinger{"db": nil, "redis": nil}
	deps := session.Deps{
		Logger: logg,
		Limits: session.Limits{
			HistoryCap:         cfg.Scan.HistoryCap,
			FeedCap:            cfg.Scan.FeedCap,
			DailyGoal:          cfg.Scan.DailyGoal,
			DisplayNameMax:     cfg.Scan.DisplayNameMax,
			OCRTimeout:         cfg.OCR.Timeout,
			EnrichmentTimeout:  cfg.Enrichment.Timeout,
			RemoteWriteTimeout: cfg.Scan.RemoteWriteTimeout,
		},
	}

	if cfg.DB.Enabled() {
		dbClient, err := db.New(ctx, cfg.DB, logg)
		if err != nil {
			logg.Error(ctx, "failed to bootstrap database", err)
			os.Exit(1)
		}
		defer func() {
			if err := dbClient.Close(); err != nil {
				logg.Error(context.Background(), "error closing database", err)
			}
		}()
		if err := migrate.MaybeRunDev(ctx, cfg, logg, dbClient); err != nil {
			logg.Error(ctx, "failed to run dev migrations", err)
			os.Exit(1)
		}
		deps.Remote = scans.NewRepository(dbClient.DB())
		deps.ProfileRepo = profiles.NewRepository(dbClient.DB())
		checks["db"] = dbClient
	} else {
		logg.Warn(ctx, "remote store disabled, scans are kept on-device only")
	}

	var redisClient *redis.Client
	if cfg.Redis.URL != "" || cfg.Redis.Address != "" {
		redisClient, err = redis.New(ctx, cfg.Redis, logg)
		if err != nil {
			logg.Error(ctx, "failed to bootstrap redis", err)
			os.Exit(1)
		}
		defer func() {
			if err := redisClient.Close(); err != nil {
				logg.Error(context.Background(), "error closing redis", err)
			}
		}()
		checks["redis"] = redisClient
	}

	stores, closeStores, err := localStores(ctx, cfg, logg, redisClient)
	if err != nil {
		logg.Error(ctx, "failed to open local cache", err)
		os.Exit(1)
	}
	defer closeStores()
	deps.Stores = stores

	deps.OCR, err = recognizer(ctx, cfg)
	if err != nil {
		logg.Error(ctx, "failed to configure ocr", err)
		os.Exit(1)
	}

	if cfg.Enrichment.Enabled() {
		gemini, err := insights.NewGeminiClient(
			cfg.Enrichment.APIKey,
			insights.WithBaseURL(cfg.Enrichment.BaseURL),
			insights.WithModel(cfg.Enrichment.Model),
		)
		if err != nil {
			logg.Error(ctx, "failed to configure enrichment", err)
			os.Exit(1)
		}
		deps.Enricher = gemini
	} else {
		logg.Warn(ctx, "enrichment disabled, relying on rule-based allergen matching")
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	deps.Metrics = metrics.NewPipelineMetrics(registry)

	sessions, err := session.NewRegistry(deps)
	if err != nil {
		logg.Error(ctx, "failed to build session registry", err)
		os.Exit(1)
	}

	routerDeps := routes.Deps{
		Sessions: sessions,
		Gatherer: registry,
		Checks:   checks,
	}
	if redisClient != nil {
		routerDeps.Redis = redisClient
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx = logg.WithFields(ctx, map[string]any{
		"env":        cfg.App.Env,
		"addr":       addr,
		"instance":   instance.GetID(),
		"local":      cfg.LocalCache.DriverName(),
		"ocr":        cfg.OCR.ProviderName(),
		"remote":     cfg.DB.Enabled(),
		"enrichment": cfg.Enrichment.Enabled(),
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr:              addr,
		Handler:           routes.NewRouter(cfg, logg, routerDeps),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logg.Error(ctx, "api server stopped unexpectedly", err)
			os.Exit(1)
		}
	case <-ctx.Done():
		logg.Info(ctx, "shutting down api server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logg.Error(shutdownCtx, "api server shutdown failed", err)
		}
	}
}

func localStores(ctx context.Context, cfg *config.Config, logg *logger.Logger, redisClient *redis.Client) (session.StoreFactory, func(), error) {
	noop := func() {}
	switch cfg.LocalCache.DriverName() {
	case config.LocalCacheRedis:
		if redisClient == nil {
			return nil, noop, errors.New("redis local cache selected without a redis connection")
		}
		return func(deviceID string) localcache.Store {
			return localcache.NewRedisStore(redisClient, deviceID)
		}, noop, nil
	case config.LocalCacheSQLite:
		client, err := db.OpenSQLite(ctx, cfg.LocalCache.SQLitePath, logg)
		if err != nil {
			return nil, noop, err
		}
		closeFn := func() {
			if err := client.Close(); err != nil {
				logg.Error(context.Background(), "error closing local sqlite cache", err)
			}
		}
		store := localcache.NewSQLStore(client.DB())
		if err := store.Migrate(ctx); err != nil {
			closeFn()
			return nil, noop, err
		}
		return session.NamespacedStores(store), closeFn, nil
	default:
		logg.Warn(ctx, "in-memory local cache selected, history is lost on restart")
		return session.NamespacedStores(localcache.NewMemoryStore()), noop, nil
	}
}

func recognizer(ctx context.Context, cfg *config.Config) (ocr.Recognizer, error) {
	if cfg.OCR.ProviderName() == config.OCRProviderRekognition {
		return ocr.NewRekognitionClient(ctx, cfg.AWS.Region)
	}
	var opts []ocr.Option
	if cfg.OCR.APIKey != "" {
		opts = append(opts, ocr.WithAPIKey(cfg.OCR.APIKey))
	}
	return ocr.NewHTTPClient(cfg.OCR.Endpoint, opts...)
}
