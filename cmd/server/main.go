package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/segyhp/loan-engine/internal/app"
	"github.com/segyhp/loan-engine/internal/config"
	"github.com/segyhp/loan-engine/pkg/logger"
)

func main() {
	// .env is optional; real environment variables win
	_ = godotenv.Load()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	if err := logger.Initialize(cfg.Logging.Level, cfg.Logging.Format); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Log.Sync()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	a, err := app.New(ctx, cfg)
	if err != nil {
		logger.Log.Fatal("failed to initialize application", logger.Error(err))
	}
	defer a.Close()

	logger.Log.Info("loan engine starting",
		logger.String("env", cfg.Server.Env),
		logger.String("store", cfg.Database.Driver),
		logger.Bool("redis", cfg.Redis.Enabled),
		logger.Bool("lock", cfg.Lock.Enabled),
	)

	if err := a.Serve(ctx, 30*time.Second); err != nil {
		logger.Log.Error("server error", logger.Error(err))
	}

	logger.Log.Info("server exited")
}
