// Package cli holds the startup and shutdown steps shared by
// cmd/expense-server and cmd/audit-worker.
package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"expenseflow/internal/backend"
	"expenseflow/internal/config"
	"expenseflow/internal/log"
	"expenseflow/internal/storage"

	"github.com/joho/godotenv"
)

// SetupLogger builds the process logger at level and makes it the default.
func SetupLogger(component, level string) *log.Logger {
	lvl, err := log.ParseLevel(level)
	cfg := log.DefaultConfig()
	cfg.Level = lvl
	cfg.Component = component
	logger := log.New(cfg)
	log.SetDefault(logger)
	if err != nil {
		logger.Warn("Unknown log level, using info", log.FieldError, err)
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
func LoadAndValidateConfig(logger *log.Logger) *config.Config {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", log.FieldError, err)
		os.Exit(1)
	}
	return cfg
}

// InitBackend opens storage and the optional integrations, exiting on failure.
func InitBackend(ctx context.Context, logger *log.Logger, cfg *config.Config) *backend.Result {
	bcfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid backend configuration", log.FieldError, err)
		os.Exit(1)
	}
	return createBackend(ctx, logger, bcfg)
}

// InitStorage opens only the configured storage through the backend factory,
// exiting on failure. Processes that consume events use it so they neither
// publish nor export.
func InitStorage(ctx context.Context, logger *log.Logger, cfg *config.Config) *backend.Result {
	bcfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid backend configuration", log.FieldError, err)
		os.Exit(1)
	}
	bcfg.Sheets = backend.NoSheets
	bcfg.AMQPURL = ""
	return createBackend(ctx, logger, bcfg)
}

func createBackend(ctx context.Context, logger *log.Logger, bcfg backend.Config) *backend.Result {
	res, err := backend.NewFactory(logger.WithComponent(log.ComponentBackend)).CreateBackend(ctx, bcfg)
	if err != nil {
		logger.Error("Failed to initialize backend", log.FieldError, err, "storage", bcfg.Storage)
		os.Exit(1)
	}
	return res
}

// SeedCategories loads the TOML seed file, if configured, into an empty
// category table. A broken seed is logged and startup continues.
func SeedCategories(ctx context.Context, logger *log.Logger, repo *storage.Repository, path string) {
	if path == "" {
		return
	}
	seed, err := storage.LoadCategorySeed(path)
	if err != nil {
		logger.Warn("Failed to load category seed", log.FieldError, err, "path", path)
		return
	}
	if _, err := repo.SeedCategories(ctx, seed); err != nil {
		logger.Warn("Failed to seed categories", log.FieldError, err, "path", path)
	}
}

// GracefulShutdown sets up signal handling for graceful shutdown.
// Returns a context that will be cancelled on shutdown signals,
// and a channel that signals when shutdown is complete.
func GracefulShutdown(logger *log.Logger, timeout time.Duration, cleanup func(ctx context.Context)) (context.Context, <-chan struct{}) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigChan
		logger.Info("Shutdown signal received", "signal", sig.String())

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), timeout)
		defer shutdownCancel()

		cancel()
		if cleanup != nil {
			cleanup(shutdownCtx)
		}
		if shutdownCtx.Err() != nil {
			logger.Warn("Shutdown timeout reached")
		} else {
			logger.Info("Shutdown complete")
		}
		close(done)
	}()

	return ctx, done
}

// WaitForShutdown blocks until the context is cancelled.
func WaitForShutdown(ctx context.Context, done <-chan struct{}) {
	<-ctx.Done()
	<-done
}
