// Package cli holds the bootstrap steps shared by cmd/cashflow and
// cmd/cashflow-worker.
package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"cashflow/internal/config"
	"cashflow/internal/core"
	applog "cashflow/internal/log"
	"cashflow/internal/storage"
)

// SetupLogger builds the process logger from LOG_LEVEL and installs it as
// the slog default.
func SetupLogger(level, component string) *applog.Logger {
	lvl, err := applog.ParseLevel(level)
	logger := applog.New(applog.Config{Level: lvl, Component: component, Output: os.Stdout})
	applog.SetDefault(logger)
	if err != nil {
		logger.Warn("Falling back to info level", "error", err)
	}
	return logger
}

// LoadEnvFile loads the .env file for local development.
// Errors are ignored silently as this is optional in production.
func LoadEnvFile() {
	_ = godotenv.Load()
}

// LoadAndValidateConfig loads configuration and validates it.
// Returns the config or exits the process on validation failure.
func LoadAndValidateConfig(logger *applog.Logger) *config.Config {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", "error", err)
		os.Exit(1)
	}
	return cfg
}

// LoadAppConfig reads the YAML domain configuration or exits.
func LoadAppConfig(logger *applog.Logger, path string) core.AppConfig {
	appCfg, err := config.LoadAppConfig(path)
	if err != nil {
		logger.Error("App configuration invalid", "error", err, "path", path)
		os.Exit(1)
	}
	return appCfg
}

// OpenStateStore opens the configured state backend. The returned close
// function is never nil.
func OpenStateStore(ctx context.Context, cfg *config.Config) (storage.StateStore, func() error, error) {
	noop := func() error { return nil }
	logger := applog.Default(applog.ComponentStorage)
	switch cfg.StateBackend {
	case config.BackendFile:
		store, err := storage.NewFileStore(cfg.StatePath)
		if err != nil {
			return nil, noop, err
		}
		logger.InfoContext(ctx, "Using file state store", "path", cfg.StatePath)
		return store, noop, nil
	case config.BackendSQLite:
		store, err := storage.NewSQLiteStore(cfg.SQLiteDBPath)
		if err != nil {
			return nil, noop, err
		}
		logger.InfoContext(ctx, "Using SQLite state store", "path", cfg.SQLiteDBPath)
		return store, store.Close, nil
	case config.BackendMemory:
		logger.WarnContext(ctx, "Using in-memory state store; state is lost on exit")
		return storage.NewMemoryStore(), noop, nil
	default:
		return nil, noop, fmt.Errorf("unknown state backend %q", cfg.StateBackend)
	}
}

// SignalContext returns a context cancelled on SIGINT or SIGTERM.
func SignalContext(logger *applog.Logger) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(sigChan)
		select {
		case sig := <-sigChan:
			logger.Info("Shutdown signal received", "signal", sig.String())
			cancel()
		case <-ctx.Done():
		}
	}()
	return ctx, cancel
}
