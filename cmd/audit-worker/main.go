package main

import (
	"context"
	"os"
	"time"

	"expenseflow/internal/amqp"
	"expenseflow/internal/cli"
	"expenseflow/internal/log"
	"expenseflow/internal/worker"
)

func main() {
	cli.LoadEnvFile()

	logger := cli.SetupLogger(log.ComponentWorker, os.Getenv("LOG_LEVEL"))
	cfg := cli.LoadAndValidateConfig(logger)
	logger = cli.SetupLogger(log.ComponentWorker, cfg.LogLevel)

	if cfg.AMQPURL == "" {
		logger.Error("AMQP_URL is required for the audit worker")
		os.Exit(1)
	}

	res := cli.InitStorage(context.Background(), logger, cfg)

	client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", log.FieldError, err)
		_ = res.Cleanup()
		os.Exit(1)
	}

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(context.Context) {
		if err := client.Close(); err != nil {
			logger.Warn("AMQP close error", log.FieldError, err)
		}
		if err := res.Cleanup(); err != nil {
			logger.Warn("Backend cleanup error", log.FieldError, err)
		}
	})

	logger.Info("Starting audit worker",
		"db_driver", cfg.DBDriver,
		"exchange", cfg.AMQPExchange,
		"queue", cfg.AMQPQueue)
	if err := worker.NewAuditWorker(res.Repo).Run(ctx, client); err != nil {
		logger.Error("Audit worker failed", log.FieldError, err)
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
}
