package main

import (
	"context"
	"errors"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	"github.com/cityatlas/cityatlas/pkg/api"
	"github.com/cityatlas/cityatlas/pkg/audit"
	"github.com/cityatlas/cityatlas/pkg/authz"
	"github.com/cityatlas/cityatlas/pkg/config"
	"github.com/cityatlas/cityatlas/pkg/database"
	"github.com/cityatlas/cityatlas/pkg/identity"
	"github.com/cityatlas/cityatlas/pkg/jobs"
	"github.com/cityatlas/cityatlas/pkg/observability"
	"github.com/cityatlas/cityatlas/pkg/styling"
	"github.com/cityatlas/cityatlas/pkg/taxonomy"
	"github.com/cityatlas/cityatlas/pkg/tenant"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger := observability.NewLogger(cfg.Observability.LogLevel, os.Stdout)

	db, err := database.Connect(cfg.Database)
	if err != nil {
		logger.WithError(err).Error("failed to connect to postgres")
		os.Exit(1)
	}
	defer db.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := database.RunMigrations(ctx, db); err != nil {
		logger.WithError(err).Error("failed to run migrations")
		os.Exit(1)
	}

	var registry *prometheus.Registry
	var metrics *observability.Metrics
	if cfg.Observability.MetricsEnabled {
		registry = prometheus.NewRegistry()
		metrics = observability.NewMetrics(registry)
		database.OnRetry = metrics.DBRetriesTotal.Inc
	}

	// The descriptor cache is optional; without redis every style and
	// filter request regenerates from the schema store.
	var redisClient *redis.Client
	var descriptorCache *styling.Cache
	if cfg.Redis.Enabled {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer redisClient.Close()
		descriptorCache = styling.NewCache(redisClient)
	}

	auditTrail, err := audit.NewDBLogger(db, logger)
	if err != nil {
		logger.WithError(err).Error("failed to initialize audit trail")
		os.Exit(1)
	}

	principals := identity.NewStore(db)
	tenants := tenant.NewStore(db)

	var invalidator taxonomy.Invalidator
	if descriptorCache != nil {
		invalidator = descriptorCache
	}
	taxonomies := taxonomy.NewStore(db, invalidator, metrics)
	generator := styling.NewGenerator(taxonomies, descriptorCache, metrics)

	authzService := authz.NewService(db, principals, authz.NewGrantStore(db), auditTrail, metrics)

	server := api.NewServer(authzService, principals, tenants, taxonomies, generator, logger, metrics)

	scheduler, err := jobs.NewScheduler(jobs.Config{
		InvitationCleanupSchedule: cfg.Jobs.InvitationCleanupSchedule,
		AuditSweepSchedule:        cfg.Jobs.AuditSweepSchedule,
		AuditRetention:            cfg.Jobs.AuditRetention,
	}, tenants, auditTrail, logger)
	if err != nil {
		logger.WithError(err).Error("failed to initialize job scheduler")
		os.Exit(1)
	}

	var handler http.Handler = server.Router()
	if metrics != nil {
		handler = metrics.InstrumentHandler("/api/v1", handler)
	}

	apiServer := &http.Server{
		Addr:         net.JoinHostPort(cfg.Server.Host, cfg.Server.Port),
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	healthChecker := observability.NewHealthChecker(db, redisClient)
	healthMux := http.NewServeMux()
	healthMux.HandleFunc("/healthz", healthChecker.Liveness)
	healthMux.HandleFunc("/readyz", healthChecker.Readiness)
	if registry != nil {
		healthMux.Handle("/metrics", observability.Handler(registry))
	}
	healthServer := &http.Server{
		Addr:    net.JoinHostPort(cfg.Server.Host, cfg.Server.HealthPort),
		Handler: healthMux,
	}

	scheduler.Start()
	defer scheduler.Stop()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.WithField("addr", apiServer.Addr).Info("api server listening")
		if err := apiServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		logger.WithField("addr", healthServer.Addr).Info("health server listening")
		if err := healthServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	if metrics != nil {
		g.Go(func() error {
			ticker := time.NewTicker(15 * time.Second)
			defer ticker.Stop()
			for {
				select {
				case <-gctx.Done():
					return nil
				case <-ticker.C:
					stats := database.Stats(db)
					metrics.DBConnectionsActive.Set(float64(stats.Active))
					metrics.DBConnectionsIdle.Set(float64(stats.Idle))
				}
			}
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		err := apiServer.Shutdown(shutdownCtx)
		if herr := healthServer.Shutdown(shutdownCtx); err == nil {
			err = herr
		}
		return err
	})

	if err := g.Wait(); err != nil {
		logger.WithError(err).Error("server exited with error")
		os.Exit(1)
	}
	logger.Info("shutdown complete")
}
