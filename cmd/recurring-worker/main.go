package main

import (
	"context"
	"os"
	"time"

	"bilancio/internal/amqp"
	"bilancio/internal/cache"
	"bilancio/internal/cli"
	"bilancio/internal/config"
	"bilancio/internal/log"
	"bilancio/internal/services"
	"bilancio/internal/worker"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(log.ComponentScheduler)
	cfg := cli.LoadAndValidateConfig(logger)

	logger.Info("Starting recurring-worker")

	repo := cli.InitSQLite(logger, cfg.SQLiteDBPath)
	sweeper := cache.NewManager(logger.WithComponent(log.ComponentCache).Slog())
	publisher, closePublisher := newPublisher(logger, cfg, sweeper)

	processor := services.NewRecurringProcessor(repo, publisher)
	scheduler, err := worker.NewScheduler(processor, worker.SchedulerConfig{
		Spec:   cfg.RecurringCron,
		Logger: logger.Slog(),
	})
	if err != nil {
		logger.Error("Failed to create scheduler", log.FieldError, err)
		os.Exit(1)
	}

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(shutdownCtx context.Context) {
		select {
		case <-scheduler.Stop().Done():
		case <-shutdownCtx.Done():
			logger.Warn("Recurring pass still running at shutdown")
		}
		if err := closePublisher(); err != nil {
			logger.Error("Failed to close publisher", log.FieldError, err)
		}
		if err := repo.Close(); err != nil {
			logger.Error("Failed to close scheduler store", log.FieldError, err)
		}
	})

	go sweeper.Run(ctx, time.Minute)
	logger.Info("Recurring processor configured",
		"cron", cfg.RecurringCron,
		"sqlite_db", cfg.SQLiteDBPath)
	scheduler.Start(ctx)

	cli.WaitForShutdown(ctx, done)
}

// newPublisher hands fired runs to the message queue when AMQP is
// configured; otherwise it books them in-process through a SyncWorker.
func newPublisher(logger *log.Logger, cfg *config.Config, sweeper *cache.Manager) (services.Publisher, func() error) {
	if cfg.AMQPURL != "" {
		client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err == nil {
			logger.Info("AMQP client initialized, runs will be booked by sync-worker")
			return client, client.Close
		}
		logger.Warn("Failed to initialize AMQP client, booking runs in-process", log.FieldError, err)
	} else {
		logger.Info("AMQP disabled, booking runs in-process")
	}

	ctx := context.Background()
	res := cli.InitBackend(ctx, logger, cfg)
	ledger := cli.InitLedger(ctx, logger.WithComponent(log.ComponentSheets), cfg)
	w := worker.NewSyncWorker(res.Backend, ledger, cfg.SeenMessagesSize)
	sweeper.Register(w.Cleaner())

	closeFn := func() error {
		if res.Cleanup != nil {
			return res.Cleanup()
		}
		return nil
	}
	return services.PublisherFunc(w.HandleRecurringFired), closeFn
}
