/**
 * UI Locator Worker - Main Entry Point
 *
 * Consumes locate tasks from Redis and answers them with pixel bounding boxes.
 *
 * Architecture:
 * - Asynq consumer for the Redis-backed task queue
 * - Locate engine: vision model proposes, Tesseract OCR pins the text
 * - Result cache in memory or Redis
 * - Optional PostgreSQL locate history
 */

package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/adverant/nexus/ui-locator/internal/app"
	"github.com/adverant/nexus/ui-locator/internal/config"
	"github.com/adverant/nexus/ui-locator/internal/logging"
	"github.com/adverant/nexus/ui-locator/internal/queue"
	"github.com/adverant/nexus/ui-locator/internal/screen"
)

func main() {
	logger := logging.NewLogger("Worker")

	if err := godotenv.Load(".env.locator"); err != nil {
		logger.Warn(".env.locator not found, using system environment variables")
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	if err := logging.SetLevel(cfg.LogLevel); err != nil {
		logger.Warn("Keeping default log level", "error", err)
	}

	logger.Info("UI locator worker starting",
		"queue", cfg.QueueName,
		"concurrency", cfg.WorkerConcurrency,
		"vision", cfg.VisionEnabled,
		"ocr", cfg.OCREnabled,
		"cache", cfg.CacheBackend)

	ctx := context.Background()

	// Tasks without an image are answered from the worker's own display.
	components, err := app.Build(ctx, cfg, screen.NewDisplayCapturer())
	if err != nil {
		logger.Error("Failed to initialize locate engine", "error", err)
		os.Exit(1)
	}

	healthCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	if err := components.HealthCheck(healthCtx); err != nil {
		logger.Warn("Health check failed, continuing", "error", err)
	}
	cancel()

	consumer, err := queue.NewConsumer(&queue.ConsumerConfig{
		RedisURL:      cfg.RedisURL,
		QueueName:     cfg.QueueName,
		Concurrency:   cfg.WorkerConcurrency,
		Locator:       components.Engine,
		LocateTimeout: cfg.LocateTimeout,
	})
	if err != nil {
		logger.Error("Failed to initialize queue consumer", "error", err)
		components.Close()
		os.Exit(1)
	}

	if err := consumer.Start(); err != nil {
		logger.Error("Failed to start queue consumer", "error", err)
		components.Close()
		os.Exit(1)
	}

	logger.Info("Waiting for locate tasks", "stats", consumer.GetStatistics())

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	sig := <-sigChan
	logger.Info("Received signal, initiating graceful shutdown", "signal", sig.String())

	consumer.Stop()

	if err := components.Close(); err != nil {
		logger.Error("Error closing components", "error", err)
	}

	logger.Info("Shutdown complete")
}
