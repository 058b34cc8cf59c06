package main

import (
	"context"
	"errors"
	"os"
	"time"

	"bilancio/internal/amqp"
	"bilancio/internal/cache"
	"bilancio/internal/cli"
	"bilancio/internal/log"
	"bilancio/internal/worker"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(log.ComponentWorker)
	cfg := cli.LoadAndValidateConfig(logger)

	if cfg.AMQPURL == "" {
		logger.Error("AMQP_URL is required for sync-worker")
		os.Exit(1)
	}

	logger.Info("Starting sync-worker",
		"amqp_exchange", cfg.AMQPExchange,
		"amqp_queue", cfg.AMQPQueue)

	client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		logger.Error("Failed to connect to AMQP", log.FieldError, err)
		os.Exit(1)
	}

	res := cli.InitBackend(context.Background(), logger, cfg)
	ledger := cli.InitLedger(context.Background(), logger.WithComponent(log.ComponentSheets), cfg)
	w := worker.NewSyncWorker(res.Backend, ledger, cfg.SeenMessagesSize)

	sweeper := cache.NewManager(logger.WithComponent(log.ComponentCache).Slog())
	sweeper.Register(w.Cleaner())

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(context.Context) {
		if err := client.Close(); err != nil {
			logger.Error("Failed to close AMQP client", log.FieldError, err)
		}
		if res.Cleanup != nil {
			if err := res.Cleanup(); err != nil {
				logger.Error("Backend cleanup failed", log.FieldError, err)
			}
		}
	})
	go sweeper.Run(ctx, time.Minute)

	if err := client.ConsumeRecurringFired(ctx, w.HandleRecurringFired); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Consumer stopped", log.FieldError, err)
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
}
