package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"github.com/thotranphuc276/person-detection/internal/app"
	"github.com/thotranphuc276/person-detection/internal/config"
	"github.com/thotranphuc276/person-detection/internal/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	appLogger, err := logger.New(cfg.LogDirectory, cfg.Debug)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer appLogger.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	application, err := app.NewApp(ctx, cfg, appLogger)
	if err != nil {
		appLogger.Error("Failed to start: %v", err)
		log.Fatalf("Failed to start server: %v", err)
	}

	if err := application.Run(ctx); err != nil {
		appLogger.Error("%v", err)
		log.Fatalf("Server stopped with error: %v", err)
	}
}
