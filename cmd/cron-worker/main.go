package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/angelmondragon/courtside-storefront/internal/catalog"
	"github.com/angelmondragon/courtside-storefront/internal/commerce"
	"github.com/angelmondragon/courtside-storefront/internal/cron"
	"github.com/angelmondragon/courtside-storefront/internal/sessions"
	"github.com/angelmondragon/courtside-storefront/pkg/config"
	"github.com/angelmondragon/courtside-storefront/pkg/db"
	"github.com/angelmondragon/courtside-storefront/pkg/instance"
	"github.com/angelmondragon/courtside-storefront/pkg/logger"
	"github.com/angelmondragon/courtside-storefront/pkg/metrics"
	"github.com/angelmondragon/courtside-storefront/pkg/migrate"
	"github.com/angelmondragon/courtside-storefront/pkg/redis"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "cron-worker"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	cfg.Service.Kind = "cron-worker"

	logg = logger.New(logger.Options{
		ServiceName: "cron-worker",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	syncMetrics := metrics.NewSyncMetrics(prometheus.DefaultRegisterer)
	remote, err := commerce.NewFromConfig(cfg.Commerce, logg, syncMetrics)
	if err != nil {
		logg.Error(context.Background(), "failed to create storefront client", err)
		os.Exit(1)
	}
	resolver := catalog.NewResolver(
		catalog.NewClient(remote, cfg.Catalog.PageSize),
		catalog.WithTTL(cfg.Catalog.TTL),
		catalog.WithSnapshotCache(catalog.NewRedisSnapshotCache(redisClient, cfg.Catalog.SnapshotTTL)),
		catalog.WithResolverLogger(logg),
		catalog.WithResolverMetrics(syncMetrics),
	)

	registry := cron.NewRegistry()
	catalogJob, err := cron.NewCatalogRefreshJob(cron.CatalogRefreshJobParams{Logger: logg, Resolver: resolver})
	if err != nil {
		logg.Error(context.Background(), "failed to create catalog refresh job", err)
		os.Exit(1)
	}
	if err := registry.Register(catalogJob); err != nil {
		logg.Error(context.Background(), "failed to register catalog refresh job", err)
		os.Exit(1)
	}

	if cfg.Session.UsesDB() {
		dbClient, err := db.New(context.Background(), cfg.DB, logg)
		if err != nil {
			logg.Error(context.Background(), "failed to bootstrap database", err)
			os.Exit(1)
		}
		defer func() {
			if err := dbClient.Close(); err != nil {
				logg.Error(context.Background(), "error closing database", err)
			}
		}()
		if err := migrate.MaybeAutoRun(context.Background(), cfg, logg, dbClient); err != nil {
			logg.Error(context.Background(), "failed to run migrations", err)
			os.Exit(1)
		}
		sweepJob, err := cron.NewSessionSweepJob(cron.SessionSweepJobParams{
			Logger:    logg,
			Store:     sessions.NewSQLStore(dbClient.DB(), cfg.Session.Namespace),
			Retention: cfg.Session.TTL,
		})
		if err != nil {
			logg.Error(context.Background(), "failed to create session sweep job", err)
			os.Exit(1)
		}
		if err := registry.Register(sweepJob); err != nil {
			logg.Error(context.Background(), "failed to register session sweep job", err)
			os.Exit(1)
		}
	}

	lock, err := cron.NewRedisLock(redisClient, redisClient.LockKey("cron-worker", lockEnv(cfg.App.Env)), cfg.Cron.LockTTL)
	if err != nil {
		logg.Error(context.Background(), "failed to create cron lock", err)
		os.Exit(1)
	}

	service, err := cron.NewService(cron.ServiceParams{
		Logger:   logg,
		Registry: registry,
		Lock:     lock,
		Metrics:  metrics.NewJobMetrics(prometheus.DefaultRegisterer),
		Interval: cfg.Cron.Interval,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create cron service", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": cfg.Service.Kind,
		"instance":    instance.ID(),
	})
	logg.Info(ctx, "starting cron worker")

	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "cron worker stopped unexpectedly", err)
		os.Exit(1)
	}

	logg.Info(ctx, "cron worker shutting down gracefully")
}

func lockEnv(env string) string {
	if env == "" {
		return "local"
	}
	return env
}
