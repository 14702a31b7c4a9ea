// cmd/service/main.go
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github-activity-resolver/internal/api"
	"github-activity-resolver/internal/app"
	"github-activity-resolver/internal/config"
	"github-activity-resolver/internal/warmer"
)

const shutdownTimeout = 10 * time.Second

func main() {
	if err := run(); err != nil {
		slog.Error("Application startup error", "error", err)
		os.Exit(1)
	}
}

func run() error {
	// 1. Initialize structured logger
	logger, logLevel := app.NewLogger(os.Stdout)
	slog.SetDefault(logger)

	// 2. Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	app.SetLogLevel(cfg.LogLevel, logLevel)
	logger.Info("Configuration loaded successfully", "storage_driver", cfg.StorageDriver)

	// 3. Setup context for graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// 4. Open storage
	store, closeStore, err := app.OpenStorage(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	// 5. Initialize application components
	service, err := app.NewService(cfg, store, logger)
	if err != nil {
		return err
	}
	if cfg.GithubToken == "" {
		logger.Warn("GITHUB_TOKEN is not set; activity requests will be rejected until it is configured")
	}

	if len(cfg.WarmUsernames) > 0 {
		appWarmer, err := warmer.NewWarmer(service, logger, cfg.WarmUsernames, cfg.WarmInterval)
		if err != nil {
			return fmt.Errorf("failed to create warmer: %w", err)
		}
		go appWarmer.Start(ctx)
	}

	router := api.NewRouter(service, store, api.Options{
		StorageDriver:   cfg.StorageDriver,
		TokenConfigured: cfg.GithubToken != "",
		ActivityTimeout: cfg.ActivityTimeout,
	}, logger)
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// 6. Serve until a shutdown signal arrives
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("HTTP server listening", "addr", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutdown signal received. Draining connections.")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		return err
	}
	logger.Info("Application stopped")
	return nil
}
