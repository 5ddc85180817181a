package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/Brownie44l1/smartseva-api/internal/app"
	"github.com/Brownie44l1/smartseva-api/internal/config"
	"github.com/Brownie44l1/smartseva-api/internal/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "err", err)
		os.Exit(1)
	}

	log := logger.New(cfg.LogLevel, cfg.LogFormat)
	slog.SetDefault(log)

	application, err := app.New(cfg, log)
	if err != nil {
		log.Error("failed to initialize pipeline", "err", err)
		os.Exit(1)
	}
	defer application.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Info("endpoints",
		"health", "GET /health",
		"predict", "POST /predict",
		"predict_image", "POST /predict/image",
		"complaints", "GET /complaints",
		"live", "GET /ws",
	)

	if err := application.Serve(ctx); err != nil {
		log.Error("server exited", "err", err)
		stop()
		application.Close()
		os.Exit(1)
	}
}
