package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"posts-backend/internal/config"
	"posts-backend/internal/handlers"
	"posts-backend/internal/services"
	"posts-backend/internal/utils"
	"posts-backend/internal/worker"
)

const shutdownTimeout = 10 * time.Second

type Options struct {
	// Workers starts the task consumers in this process
	Workers bool
}

// Run serves the API until SIGINT or SIGTERM, then shuts down gracefully.
func Run(cfg *config.Config, logger *slog.Logger, opts Options) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Init storage
	store, err := OpenStorage(ctx, cfg, logger, true)
	if err != nil {
		return fmt.Errorf("failed to open storage: %w", err)
	}
	defer func() { utils.LogError(logger, store.Close(), "close storage") }()

	broker, err := OpenBroker(cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to connect to broker: %w", err)
	}
	defer func() { utils.LogError(logger, broker.Close(), "close broker") }()

	imgs, err := NewImageStore(cfg, logger)
	if err != nil {
		return err
	}

	// Services
	users := services.NewUserService(store, cfg.BcryptCost)
	blacklist := services.NewBlacklistService(store, logger)
	deps := &handlers.Services{
		Users:     users,
		Tokens:    services.NewTokenService(cfg.JWTSecret, cfg.JWTExpiresIn),
		Blacklist: blacklist,
		Posts:     services.NewPostService(store, store, imgs, broker, logger),
		Tasks:     broker,
		Logger:    logger,
	}

	// Background work stops with ctx
	workCtx, cancelWork := context.WithCancel(context.Background())
	defer cancelWork()

	if opts.Workers {
		w := worker.New(NewMailer(cfg, logger), imgs, logger)
		if err := w.Start(workCtx, broker, cfg.TaskMaxRedeliveries); err != nil {
			return err
		}
	}
	go blacklist.RunPruner(workCtx, cfg.BlacklistPruneInterval)

	app := NewServer(cfg, deps)

	// Start Server
	errCh := make(chan error, 1)
	go func() {
		logger.Info("Server listening", "port", cfg.Port, "env", cfg.Env)
		errCh <- app.Listen(":" + cfg.Port)
	}()

	// Graceful Shutdown
	select {
	case err := <-errCh:
		return fmt.Errorf("server stopped: %w", err)
	case <-ctx.Done():
	}

	logger.Info("Gracefully shutting down...")
	if err := app.ShutdownWithTimeout(shutdownTimeout); err != nil {
		logger.Error("Server shutdown failed", "error", err)
	}
	cancelWork()
	logger.Info("Server shutdown complete")
	return nil
}
