package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"tracker/internal/backend"
	"tracker/internal/cli"
	"tracker/internal/config"
	apphttp "tracker/internal/http"
	"tracker/internal/ledger"
	applog "tracker/internal/log"
	"tracker/internal/services"
)

func main() {
	cli.LoadEnvFile()
	cfg := cli.LoadConfig((*config.Config).Validate)
	logger := cli.SetupLogger(cfg, applog.ComponentApp)

	bc, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid backend configuration", applog.FieldError, err)
		os.Exit(1)
	}
	res := cli.InitBackend(context.Background(), logger, bc)

	dispatcher := services.NewSyncDispatcher(res.Store, services.SyncDispatcherConfig{
		Workers:    cfg.SyncWorkers,
		QueueSize:  cfg.SyncQueueSize,
		MaxRetries: cfg.SyncMaxRetries,
		RetryBase:  cfg.SyncRetryBase,
		OpTimeout:  cfg.SyncOpTimeout,
	})
	if err := dispatcher.Start(context.Background()); err != nil {
		logger.Error("Failed to start sync dispatcher", applog.FieldError, err)
		os.Exit(1)
	}

	l := ledger.New(ledger.Options{
		Sink:             dispatcher,
		Fetcher:          res.Store,
		Currency:         cfg.Currency,
		LegacyEditTotals: cfg.LegacyEditTotals,
		Logger:           logger,
	})
	if cfg.LegacyEditTotals {
		logger.Warn("Legacy edit mode enabled: edits will not adjust totals")
	}

	// A failed initial load is not fatal: /readyz stays 503 until
	// POST /api/reload succeeds.
	loadCtx, loadCancel := context.WithTimeout(context.Background(), 30*time.Second)
	if report, err := l.Reload(loadCtx); err != nil {
		logger.Error("Initial load failed", applog.FieldError, err, applog.FieldBackend, bc.Type)
	} else {
		logger.Info("Ledger loaded",
			"categories", report.Categories,
			"transactions", report.Transactions,
			"skipped", report.SkippedCategories+report.SkippedTransactions)
	}
	loadCancel()

	srv := apphttp.NewServer(":"+cfg.Port, l, apphttp.Options{
		Sync:               dispatcher,
		AllowedOrigins:     cfg.AllowedOrigins,
		RateLimitPerMinute: cfg.RateLimitPerMinute,
		Logger:             logger,
	})

	// Configure server timeouts and limits
	srv.ReadTimeout = 10 * time.Second
	srv.WriteTimeout = 10 * time.Second
	srv.IdleTimeout = 60 * time.Second
	srv.MaxHeaderBytes = 1 << 16 // 64KB

	ctx, done := cli.GracefulShutdown(logger, cfg.ShutdownTimeout, func(ctx context.Context) {
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Server shutdown error", applog.FieldError, err)
		}
		// Drain pending durability requests before closing the store.
		if err := dispatcher.Stop(ctx); err != nil {
			logger.Error("Sync dispatcher stop error", applog.FieldError, err)
		}
		if err := res.Cleanup(); err != nil {
			logger.Error("Backend cleanup error", applog.FieldError, err)
		}
	})

	logger.Info("Starting tracker server", "port", cfg.Port, applog.FieldBackend, bc.Type, "publishing", res.Publishing)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", applog.FieldError, err, "port", cfg.Port)
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Server stopped gracefully")
}
