// Command mockapi runs an in-memory image compression service with sample
// jobs, for developing the dashboard without the real backend.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dharsanguruparan/compressdash/internal/config"
	"github.com/dharsanguruparan/compressdash/internal/mockapi"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("load config", "error", err)
		os.Exit(1)
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.LogLevel}))
	slog.SetDefault(logger)

	reg := mockapi.NewRegistry()
	if err := mockapi.Seed(reg, time.Now()); err != nil {
		logger.Error("seed jobs", "error", err)
		os.Exit(1)
	}
	hub := mockapi.NewHub(logger.With("component", "hub"))
	processor := mockapi.NewProcessor(reg, hub, cfg.MockWorkers, cfg.MockDelay, logger.With("component", "processor"))
	srv := mockapi.New(cfg, reg, processor, hub, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	if err := srv.Serve(ctx); err != nil {
		logger.Error("server stopped", "error", err)
		os.Exit(1)
	}
	logger.Info("server stopped")
}
