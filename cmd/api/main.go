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

	"github.com/angelmondragon/courtside-storefront/api/controllers"
	cartcontrollers "github.com/angelmondragon/courtside-storefront/api/controllers/cart"
	"github.com/angelmondragon/courtside-storefront/api/routes"
	"github.com/angelmondragon/courtside-storefront/internal/cart"
	"github.com/angelmondragon/courtside-storefront/internal/catalog"
	"github.com/angelmondragon/courtside-storefront/internal/commerce"
	"github.com/angelmondragon/courtside-storefront/internal/sessions"
	"github.com/angelmondragon/courtside-storefront/pkg/config"
	"github.com/angelmondragon/courtside-storefront/pkg/db"
	"github.com/angelmondragon/courtside-storefront/pkg/instance"
	"github.com/angelmondragon/courtside-storefront/pkg/logger"
	"github.com/angelmondragon/courtside-storefront/pkg/metrics"
	"github.com/angelmondragon/courtside-storefront/pkg/migrate"
	"github.com/angelmondragon/courtside-storefront/pkg/redis"
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

	pingers := map[string]controllers.Pinger{}

	var redisClient *redis.Client
	if cfg.Redis.Enabled() || !cfg.Session.UsesDB() {
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
		pingers["redis"] = redisClient
	}

	var handles cart.HandleStore
	if cfg.Session.UsesDB() {
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
		if err := migrate.MaybeAutoRun(ctx, cfg, logg, dbClient); err != nil {
			logg.Error(ctx, "failed to run migrations", err)
			os.Exit(1)
		}
		pingers["db"] = dbClient
		handles = sessions.NewSQLStore(dbClient.DB(), cfg.Session.Namespace)
	} else {
		handles = sessions.NewRedisStore(redisClient, cfg.Session.Namespace, cfg.Session.TTL)
	}

	syncMetrics := metrics.NewSyncMetrics(prometheus.DefaultRegisterer)

	remote, err := commerce.NewFromConfig(cfg.Commerce, logg, syncMetrics)
	if err != nil {
		logg.Error(ctx, "failed to create storefront client", err)
		os.Exit(1)
	}

	resolverOpts := []catalog.ResolverOption{
		catalog.WithTTL(cfg.Catalog.TTL),
		catalog.WithResolverLogger(logg),
		catalog.WithResolverMetrics(syncMetrics),
	}
	if redisClient != nil {
		resolverOpts = append(resolverOpts, catalog.WithSnapshotCache(catalog.NewRedisSnapshotCache(redisClient, cfg.Catalog.SnapshotTTL)))
	}
	resolver := catalog.NewResolver(catalog.NewClient(remote, cfg.Catalog.PageSize), resolverOpts...)

	manager := cart.NewManager(cart.Deps{
		Remote:      remote,
		Resolver:    resolver,
		Handles:     handles,
		Logger:      logg,
		Metrics:     syncMetrics,
		MaxQuantity: cfg.Cart.MaxQuantity,
	}, cfg.Cart.IdleTTL)
	go manager.Run(ctx)

	addr := ":" + cfg.App.Port
	ctx = logg.WithFields(ctx, map[string]any{
		"env":      cfg.App.Env,
		"addr":     addr,
		"instance": instance.ID(),
	})
	logg.Info(ctx, "starting api server")

	routeParams := routes.Params{
		Config:   cfg,
		Logger:   logg,
		Carts:    cartcontrollers.FromManager(manager),
		Resolver: resolver,
		Pingers:  pingers,
		Gatherer: prometheus.DefaultGatherer,
	}
	if redisClient != nil {
		routeParams.Idempotency = redisClient
	}

	server := &http.Server{
		Addr:              addr,
		Handler:           routes.NewRouter(routeParams),
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
			manager.Close()
			os.Exit(1)
		}
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logg.Error(shutdownCtx, "api server shutdown failed", err)
		}
		manager.Close()
		logg.Info(shutdownCtx, "api server stopped")
	}
}
