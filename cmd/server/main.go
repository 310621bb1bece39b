package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/estatehub/crm-ingest/internal/api"
	"github.com/estatehub/crm-ingest/internal/backoff"
	"github.com/estatehub/crm-ingest/internal/config"
	"github.com/estatehub/crm-ingest/internal/crm"
	"github.com/estatehub/crm-ingest/internal/db"
	"github.com/estatehub/crm-ingest/internal/dispatcher"
	"github.com/estatehub/crm-ingest/internal/domain"
	"github.com/estatehub/crm-ingest/internal/fingerprint"
	"github.com/estatehub/crm-ingest/internal/metrics"
	"github.com/estatehub/crm-ingest/internal/ratelimiter"
	"github.com/estatehub/crm-ingest/internal/repository"
	"github.com/estatehub/crm-ingest/internal/service"
	"github.com/estatehub/crm-ingest/internal/worker"
)

func main() {
	logger, _ := zap.NewProduction()
	defer logger.Sync() //nolint:errcheck

	// ---- configuration ----
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("failed to load config", zap.Error(err))
	}

	// ---- database ----
	ctx := context.Background()
	pool, err := db.Connect(ctx, cfg)
	if err != nil {
		logger.Fatal("failed to connect to database", zap.Error(err))
	}
	defer pool.Close()

	if err := db.Migrate(cfg.DatabaseURL); err != nil {
		logger.Fatal("failed to run migrations", zap.Error(err))
	}
	logger.Info("database migrations applied")

	// ---- core dependencies ----
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	repo := repository.NewPgJobRepository(pool)
	crmStore := crm.NewPgStore(pool)
	fp := fingerprint.New(cfg.DedupIncludeOccurredAt)
	limiter := ratelimiter.New(cfg.TenantRateLimit)

	onAccepted, onDuplicate := m.IngestHooks()
	ingest := service.NewIngestService(repo, fp, logger, onAccepted, onDuplicate)
	admin := service.NewAdminService(repo, crmStore, logger)

	// ---- handler registry ----
	registry := dispatcher.NewRegistry()
	registry.Register(domain.EventLeadSubmitted, crm.NewLeadSubmittedHandler(crmStore))
	registry.Register(domain.EventValuationRequested, crm.NewValuationRequestedHandler(crmStore))

	policy := backoff.Policy{
		Base:       cfg.BackoffBase,
		Multiplier: cfg.BackoffMultiplier,
		Max:        cfg.BackoffMax,
		JitterFrac: cfg.BackoffJitterFrac,
	}
	onProcessed, onRequeued, onDeadLettered := m.DispatcherHooks()
	disp := dispatcher.New(repo, registry, policy, cfg.MaxAttempts, cfg.HandlerTimeout, logger, dispatcher.MetricHooks{
		OnProcessed:    onProcessed,
		OnRequeued:     onRequeued,
		OnDeadLettered: onDeadLettered,
	})

	// ---- background workers ----
	// Context for all background goroutines; cancelled on shutdown signal.
	workerCtx, cancelWorkers := context.WithCancel(ctx)
	defer cancelWorkers()

	dispatchW := worker.NewDispatchWorker(disp, admin.Readiness, cfg.BatchLimit, cfg.DispatchInterval, logger)
	go dispatchW.Run(workerCtx)

	recoveryW := worker.NewRecoveryWorker(repo, cfg.ProcessingGrace, cfg.MaxAttempts, cfg.RecoveryInterval, logger,
		func(count int) { m.JobsRecovered.Add(float64(count)) })
	go recoveryW.Run(workerCtx)

	// ---- HTTP server ----
	router := api.NewRouter(ingest, admin, disp, limiter, cfg.BatchLimit, reg, logger)
	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	// Start server in a goroutine so it does not block the shutdown listener.
	go func() {
		logger.Info("server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server error", zap.Error(err))
		}
	}()

	// ---- graceful shutdown ----
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutdown signal received")

	// 1. Stop accepting new HTTP requests.
	shutdownCtx, shutdownCancel := context.WithTimeout(ctx, cfg.ShutdownTimeout)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown error", zap.Error(err))
	}

	// 2. Signal background workers to stop. Jobs abandoned mid-attempt stay
	// in processing and are reclaimed by the recovery sweep on next startup.
	cancelWorkers()

	logger.Info("server stopped cleanly")
}
