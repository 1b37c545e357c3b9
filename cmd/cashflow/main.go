package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"
	_ "time/tzdata"

	"golang.org/x/sync/errgroup"

	"cashflow/internal/amqp"
	"cashflow/internal/cli"
	"cashflow/internal/config"
	"cashflow/internal/core"
	apphttp "cashflow/internal/http"
	applog "cashflow/internal/log"
	"cashflow/internal/scheduler"
	"cashflow/internal/services"
	gsheet "cashflow/internal/sheets/google"
	mem "cashflow/internal/sheets/memory"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(os.Getenv("LOG_LEVEL"), applog.ComponentApp)
	cfg := cli.LoadAndValidateConfig(logger)
	appCfg := cli.LoadAppConfig(logger, cfg.AppConfigPath)

	ctx, stop := cli.SignalContext(logger)
	defer stop()

	store, closeStore, err := cli.OpenStateStore(ctx, cfg)
	if err != nil {
		logger.Error("Failed to open state store", "error", err, "backend", cfg.StateBackend)
		os.Exit(1)
	}
	defer closeStore()

	mirrorOpts, closeMirror, err := mirrorOptions(ctx, cfg, appCfg, logger)
	if err != nil {
		logger.Error("Failed to initialize spend log mirror", "error", err, "mirror", cfg.MirrorBackend)
		os.Exit(1)
	}
	defer closeMirror()

	cycles, err := services.NewCycleManager(store, appCfg, mirrorOpts...)
	if err != nil {
		logger.Error("Failed to initialize cycle manager", "error", err)
		os.Exit(1)
	}

	sched := scheduler.New(cycles.Location())
	notifier := services.LogNotifier{Logger: logger.WithComponent(applog.ComponentCheckin).Logger}
	checkin, err := services.NewCheckinService(cycles, sched, notifier)
	if err != nil {
		logger.Error("Failed to initialize check-in service", "error", err)
		os.Exit(1)
	}

	serverOpts := []apphttp.ServerOption{
		apphttp.WithRateLimit(cfg.APIRequestsPerMinute),
		apphttp.WithLogger(logger.WithComponent(applog.ComponentHTTP)),
	}
	if cfg.TrustProxyHeaders {
		serverOpts = append(serverOpts, apphttp.WithForwardedFor())
	}
	srv := apphttp.NewServer(":"+cfg.Port, cycles, checkin, serverOpts...)
	srv.ReadTimeout = 10 * time.Second
	srv.WriteTimeout = 10 * time.Second
	srv.IdleTimeout = 60 * time.Second
	srv.MaxHeaderBytes = 1 << 16

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := checkin.Start(gctx); err != nil {
			return err
		}
		sched.Start()
		<-gctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		return sched.Stop(shutdownCtx)
	})

	g.Go(func() error {
		logger.Info("Starting cashflow server",
			applog.FieldOperation, applog.OpStartup,
			"port", cfg.Port,
			"state_backend", cfg.StateBackend,
			"mirror", cfg.MirrorBackend,
			"timezone", appCfg.Cycle.Timezone)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutting down server", applog.FieldOperation, applog.OpShutdown, "timeout", cfg.ShutdownTimeout)
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error("Server stopped with error", "error", err)
		os.Exit(1)
	}
	logger.Info("Server stopped gracefully")
}

// mirrorOptions wires the spend-log mirror. With AMQP configured, writes are
// published for cashflow-worker and the API only reads the sheet directly.
func mirrorOptions(ctx context.Context, cfg *config.Config, appCfg core.AppConfig, logger *applog.Logger) ([]services.Option, func(), error) {
	var opts []services.Option
	closeFn := func() {}

	switch cfg.MirrorBackend {
	case config.MirrorSheets:
		loc, err := appCfg.Cycle.Location()
		if err != nil {
			return nil, closeFn, err
		}
		client, err := gsheet.New(ctx, gsheet.Options{
			SpreadsheetID:     cfg.GoogleSpreadsheetID,
			SheetName:         cfg.GoogleSheetName,
			RequestsPerMinute: cfg.SheetsRequestsPerMinute,
			CacheTTL:          cfg.SheetsCacheTTL,
			Location:          loc,
		})
		if err != nil {
			return nil, closeFn, err
		}
		opts = append(opts, services.WithSpendLogReader(client))
		if cfg.AMQPURL == "" {
			opts = append(opts, services.WithSpendLogWriter(client))
		}
		logger.Info("Google Sheets mirror initialized", "sheet", cfg.GoogleSheetName)
	case config.MirrorMemory:
		store := mem.New()
		opts = append(opts, services.WithSpendLogReader(store))
		if cfg.AMQPURL == "" {
			opts = append(opts, services.WithSpendLogWriter(store))
		}
		logger.Info("In-memory mirror initialized")
	}

	if cfg.AMQPURL != "" {
		client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			return nil, closeFn, err
		}
		closeFn = func() {
			if err := client.Close(); err != nil {
				logger.Warn("AMQP close failed", "error", err)
			}
		}
		opts = append(opts, services.WithSpendLogWriter(client))
		logger.Info("Publishing spend logs over AMQP", "exchange", cfg.AMQPExchange, "queue", cfg.AMQPQueue)
	}
	return opts, closeFn, nil
}
