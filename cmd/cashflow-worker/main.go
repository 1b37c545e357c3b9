package main

import (
	"context"
	"errors"
	"os"
	"time"
	_ "time/tzdata"

	"golang.org/x/sync/errgroup"

	"cashflow/internal/amqp"
	"cashflow/internal/cli"
	"cashflow/internal/config"
	applog "cashflow/internal/log"
	"cashflow/internal/sheets"
	gsheet "cashflow/internal/sheets/google"
	mem "cashflow/internal/sheets/memory"
	"cashflow/internal/worker"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(os.Getenv("LOG_LEVEL"), applog.ComponentWorker)
	logger.Info("Starting cashflow-worker", applog.FieldOperation, applog.OpStartup)

	cfg := cli.LoadAndValidateConfig(logger)
	if cfg.AMQPURL == "" {
		logger.Error("AMQP_URL is required for the worker")
		os.Exit(1)
	}
	appCfg := cli.LoadAppConfig(logger, cfg.AppConfigPath)

	ctx, stop := cli.SignalContext(logger)
	defer stop()

	store, closeStore, err := cli.OpenStateStore(ctx, cfg)
	if err != nil {
		logger.Error("Failed to open state store", "error", err, "backend", cfg.StateBackend)
		os.Exit(1)
	}
	defer closeStore()

	var mirror sheets.SpendLogMirror
	switch cfg.MirrorBackend {
	case config.MirrorSheets:
		loc, err := appCfg.Cycle.Location()
		if err != nil {
			logger.Error("Invalid timezone", "error", err)
			os.Exit(1)
		}
		client, err := gsheet.New(ctx, gsheet.Options{
			SpreadsheetID:     cfg.GoogleSpreadsheetID,
			SheetName:         cfg.GoogleSheetName,
			RequestsPerMinute: cfg.SheetsRequestsPerMinute,
			CacheTTL:          cfg.SheetsCacheTTL,
			Location:          loc,
		})
		if err != nil {
			logger.Error("Failed to initialize Google Sheets client", "error", err)
			os.Exit(1)
		}
		mirror = client
		logger.Info("Google Sheets client initialized", "sheet", cfg.GoogleSheetName)
	case config.MirrorMemory:
		mirror = mem.New()
		logger.Warn("Mirroring into memory; nothing leaves this process")
	default:
		logger.Error("MIRROR_BACKEND must be sheets or memory for the worker", "mirror", cfg.MirrorBackend)
		os.Exit(1)
	}

	amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", "error", err)
		os.Exit(1)
	}
	defer amqpClient.Close()

	syncWorker := worker.NewSyncWorker(store, mirror, cfg.SyncBatchSize)

	// Catch up on anything published while the worker was down.
	logger.Info("Performing startup sync check...")
	if err := syncWorker.StartupSyncCheck(ctx); err != nil {
		logger.Error("Failed startup sync check", "error", err)
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		err := amqpClient.ConsumeSpendLogs(gctx, syncWorker.HandleSyncMessage)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})

	g.Go(func() error {
		ticker := time.NewTicker(cfg.SyncInterval)
		defer ticker.Stop()
		for {
			select {
			case <-gctx.Done():
				return nil
			case <-ticker.C:
				synced, err := syncWorker.ProcessPendingLogs(gctx)
				if err != nil {
					logger.Error("Periodic sync failed", "error", err)
					continue
				}
				if synced > 0 {
					logger.Info("Periodic sync pushed spend logs", "count", synced)
				}
			}
		}
	})

	if err := g.Wait(); err != nil {
		logger.Error("Worker stopped with error", "error", err)
		os.Exit(1)
	}
	logger.Info("Worker shutdown complete", applog.FieldOperation, applog.OpShutdown)
}
