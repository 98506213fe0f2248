package main

import (
	"context"
	"errors"
	"os"
	"time"

	"tracker/internal/amqp"
	"tracker/internal/backend"
	"tracker/internal/cli"
	"tracker/internal/config"
	"tracker/internal/gateway"
	applog "tracker/internal/log"
	"tracker/internal/worker"
)

func main() {
	cli.LoadEnvFile()
	cfg := cli.LoadConfig((*config.Config).ValidateWorker)
	logger := cli.SetupLogger(cfg, applog.ComponentWorker)

	logger.Info("Starting tracker-worker", applog.FieldBackend, cfg.MirrorBackend)

	mc, err := backend.MirrorFromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid mirror configuration", applog.FieldError, err)
		os.Exit(1)
	}
	mirror := cli.InitBackend(context.Background(), logger, mc)

	// The primary store is only read, to reconcile messages missed while the
	// worker was down. A memory primary lives in another process, and the same
	// backend type would diff a store against itself, so both are skipped.
	var (
		source        gateway.RecordFetcher
		sourceCleanup backend.CleanupFunc = func() error { return nil }
	)
	if cfg.DataBackend != "memory" && cfg.DataBackend != cfg.MirrorBackend {
		sc, err := backend.FromAppConfig(cfg)
		if err != nil {
			logger.Error("Invalid source configuration", applog.FieldError, err)
			os.Exit(1)
		}
		sc.AMQPURL = "" // read only, never publish
		res := cli.InitBackend(context.Background(), logger, sc)
		source, sourceCleanup = res.Store, res.Cleanup
	} else {
		logger.Info("Reconciliation disabled", "data_backend", cfg.DataBackend)
	}

	amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", applog.FieldError, err)
		os.Exit(1)
	}

	syncWorker := worker.NewSyncWorker(mirror.Store, source)

	ctx, done := cli.GracefulShutdown(logger, cfg.ShutdownTimeout, func(context.Context) {
		if err := amqpClient.Close(); err != nil {
			logger.Error("AMQP close error", applog.FieldError, err)
		}
		if err := errors.Join(sourceCleanup(), mirror.Cleanup()); err != nil {
			logger.Error("Backend cleanup error", applog.FieldError, err)
		}
		stats := syncWorker.Stats()
		logger.Info("Worker totals", "applied", stats.Applied, "failed", stats.Failed)
	})

	if source != nil {
		reconcile := func() {
			report, err := syncWorker.Reconcile(ctx)
			if err != nil {
				logger.Error("Reconcile failed", applog.FieldError, err)
				return
			}
			logger.Info("Reconcile complete",
				"saved", report.Saved, "deleted", report.Deleted, "equal", report.Equal)
		}

		// On startup, catch up on changes published while the worker was down.
		reconcile()

		if cfg.ReconcileInterval > 0 {
			go func() {
				ticker := time.NewTicker(cfg.ReconcileInterval)
				defer ticker.Stop()
				for {
					select {
					case <-ctx.Done():
						return
					case <-ticker.C:
						reconcile()
					}
				}
			}()
		}
	}

	go func() {
		if err := amqpClient.Consume(ctx, syncWorker.HandleRecordChange); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("Message consumption failed", applog.FieldError, err)
		}
	}()

	cli.WaitForShutdown(ctx, done)
	logger.Info("Worker stopped")
}
