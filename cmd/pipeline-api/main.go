package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"go-insight-pipeline/internal/api"
	"go-insight-pipeline/internal/config"
)

func main() {
	if err := run(); err != nil {
		zap.L().Error("api server failed", zap.Error(err))
		_ = zap.L().Sync()
		os.Exit(1)
	}
	_ = zap.L().Sync()
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if err := config.InitLogger(cfg.Log); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	env, err := api.NewEnv(ctx, cfg)
	if err != nil {
		return err
	}
	defer env.Close()

	return env.Serve(ctx, 0)
}
