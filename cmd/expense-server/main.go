package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"expenseflow/internal/cache"
	"expenseflow/internal/cli"
	apphttp "expenseflow/internal/http"
	"expenseflow/internal/log"
	"expenseflow/internal/services"
)

func main() {
	cli.LoadEnvFile()

	logger := cli.SetupLogger(log.ComponentApp, os.Getenv("LOG_LEVEL"))
	cfg := cli.LoadAndValidateConfig(logger)
	logger = cli.SetupLogger(log.ComponentApp, cfg.LogLevel)

	res := cli.InitBackend(context.Background(), logger, cfg)
	cli.SeedCategories(context.Background(), logger, res.Repo, cfg.SeedCategoriesFile)

	categories := services.NewCategoryService(res.Repo, cfg.CategoryCacheTTL)
	deps := apphttp.Deps{
		Users:      services.NewUserService(res.Repo, cfg.BootstrapAdminEmails),
		Categories: categories,
		Expenses:   services.NewExpenseService(res.Repo, res.Repo, res.Publisher, cfg.Ceiling()),
		Reports:    services.NewReportService(res.Repo),
		Transfer:   services.NewTransferService(res.Repo, res.Repo, categories, res.Sheet),
		Ready:      res.Repo.Ping,
	}

	caches := cache.NewManager()
	caches.Register(categories.Cache())
	caches.StartCleanup(time.Minute)

	srv := apphttp.NewServer(":"+cfg.Port, deps, apphttp.Options{
		RateLimitPerMinute: cfg.RateLimitPerMinute,
	})

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(ctx context.Context) {
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Server shutdown error", log.FieldError, err)
		}
		caches.Stop()
		if err := res.Cleanup(); err != nil {
			logger.Error("Backend cleanup error", log.FieldError, err)
		}
	})

	logger.Info("Starting expense server",
		"port", cfg.Port,
		"db_driver", cfg.DBDriver,
		"sheets", deps.Transfer.SheetsEnabled(),
		"events", res.Publisher != nil)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", log.FieldError, err, "port", cfg.Port)
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
}
