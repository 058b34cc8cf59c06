package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"bilancio/internal/backend"
	"bilancio/internal/cache"
	"bilancio/internal/cli"
	apphttp "bilancio/internal/http"
	"bilancio/internal/log"
	"bilancio/internal/services"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(log.ComponentApp)
	cfg := cli.LoadAndValidateConfig(logger)

	ctx := context.Background()
	res := cli.InitBackend(ctx, logger, cfg)
	repo := cli.InitSQLite(logger, cfg.SQLiteDBPath)

	handler := apphttp.NewHandler(apphttp.Deps{
		Budgets:   services.NewBudgetService(res.Backend),
		Recurring: services.NewRecurringService(res.Backend, repo),
		Lookups:   res.Lookups,
		Ready: func(ctx context.Context) error {
			if err := repo.Ping(ctx); err != nil {
				return err
			}
			if p, ok := res.Backend.(backend.Pinger); ok {
				return p.Ping(ctx)
			}
			return nil
		},
	})

	srv, err := apphttp.NewServer(handler, apphttp.Options{
		Addr:               ":" + cfg.Port,
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
		RateLimitPerMinute: cfg.RateLimitPerMinute,
		TrustedProxies:     cfg.TrustedProxies,
		Logger:             logger,
	})
	if err != nil {
		logger.Error("Failed to build HTTP server", log.FieldError, err)
		os.Exit(1)
	}

	sweeper := cache.NewManager(logger.WithComponent(log.ComponentCache).Slog())
	if c, ok := res.Lookups.(interface{ Cleaners() []cache.Cleaner }); ok {
		for _, cl := range c.Cleaners() {
			sweeper.Register(cl)
		}
	}
	sweeper.Register(srv.RateLimiter())

	runCtx, done := cli.GracefulShutdown(logger, 30*time.Second, func(ctx context.Context) {
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Server shutdown error", log.FieldError, err)
		}
		if err := repo.Close(); err != nil {
			logger.Error("Failed to close scheduler store", log.FieldError, err)
		}
		if res.Cleanup != nil {
			if err := res.Cleanup(); err != nil {
				logger.Error("Backend cleanup failed", log.FieldError, err)
			}
		}
	})
	go sweeper.Run(runCtx, time.Minute)

	logger.Info("Starting bilancio server",
		"port", cfg.Port,
		"backend", cfg.DataBackend,
		"rate_limit_per_minute", cfg.RateLimitPerMinute)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", log.FieldError, err, "port", cfg.Port)
		os.Exit(1)
	}

	cli.WaitForShutdown(runCtx, done)
	logger.Info("Server stopped gracefully")
}
