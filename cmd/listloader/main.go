package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/samvad-hq/samvad-list-loader/internal/app"
	"github.com/samvad-hq/samvad-list-loader/internal/config"
	"github.com/samvad-hq/samvad-list-loader/internal/logger"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "list loader start failed: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log, err := logger.Init(cfg)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer logger.Close()

	logger.InfoObj("list loader starting", "config", cfg.Redacted())

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	runner, err := app.NewRunner(ctx, cfg, log)
	if err != nil {
		logger.ErrorObj("failed to initialize list loader", "error", err)
		return err
	}

	if err := runner.Run(ctx); err != nil {
		return fmt.Errorf("list loader run: %w", err)
	}

	return nil
}
