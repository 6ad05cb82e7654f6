// Package app assembles a locate engine and its collaborators from configuration.
package app

import (
	"context"
	"fmt"
	"strings"

	"github.com/adverant/nexus/ui-locator/internal/cache"
	"github.com/adverant/nexus/ui-locator/internal/clients"
	"github.com/adverant/nexus/ui-locator/internal/config"
	"github.com/adverant/nexus/ui-locator/internal/geometry"
	"github.com/adverant/nexus/ui-locator/internal/locator"
	"github.com/adverant/nexus/ui-locator/internal/logging"
	"github.com/adverant/nexus/ui-locator/internal/ocr"
	"github.com/adverant/nexus/ui-locator/internal/screen"
	"github.com/adverant/nexus/ui-locator/internal/storage"
)

// Components owns everything Build opened.
type Components struct {
	Engine  *locator.Engine
	Vision  *clients.VisionClient
	OCR     *ocr.TesseractReader
	Cache   cache.ResultCache
	History *storage.PostgresRecorder

	closers []namedCloser
	logger  *logging.Logger
}

type namedCloser struct {
	name  string
	close func() error
}

// Build wires the engine described by cfg. capturer may be nil when every caller
// supplies its own screenshot.
func Build(ctx context.Context, cfg *config.Config, capturer screen.Capturer) (*Components, error) {
	c := &Components{logger: logging.NewLogger("App")}
	deps := locator.Dependencies{Capturer: capturer}

	if cfg.VisionEnabled {
		c.Vision = clients.NewVisionClient(clients.VisionConfig{
			BaseURL: cfg.VisionBaseURL,
			APIKey:  cfg.VisionAPIKey,
			Model:   cfg.VisionModel,
			Timeout: cfg.VisionTimeout,
		})
		deps.Vision = c.Vision
	}

	if cfg.OCREnabled {
		reader := ocr.NewTesseractReader(ocr.TesseractConfig{
			Languages:      cfg.OCRLanguages,
			TessdataPrefix: cfg.TessdataPrefix,
			Lines:          cfg.OCRLines,
		})
		if err := reader.Probe(); err != nil {
			c.logger.Warn("Tesseract unavailable, OCR disabled", "error", err)
		} else {
			c.OCR = reader
			deps.OCR = reader
			c.closers = append(c.closers, namedCloser{"ocr", reader.Close})
		}
	}

	switch cfg.CacheBackend {
	case config.CacheBackendRedis:
		redisCache, err := cache.NewRedisCache(ctx, cfg.RedisURL, cfg.CacheKeyPrefix)
		if err != nil {
			c.Close()
			return nil, fmt.Errorf("failed to initialize redis cache: %w", err)
		}
		c.Cache = redisCache
		c.closers = append(c.closers, namedCloser{"cache", redisCache.Close})
	default:
		c.Cache = cache.NewMemoryCache()
	}
	deps.Cache = c.Cache

	if cfg.DatabaseURL != "" {
		history, err := storage.NewPostgresRecorder(cfg.DatabaseURL)
		if err != nil {
			c.Close()
			return nil, fmt.Errorf("failed to initialize locate history: %w", err)
		}
		if err := history.EnsureSchema(ctx); err != nil {
			history.Close()
			c.Close()
			return nil, err
		}
		c.History = history
		deps.Recorder = history
		c.closers = append(c.closers, namedCloser{"history", history.Close})
	}

	c.Engine = locator.NewEngine(locator.Options{
		VisionEnabled:    cfg.VisionEnabled,
		OCRMinConfidence: cfg.OCRMinConfidence,
		MonitorIndex:     cfg.MonitorIndex,
		Calibrator: geometry.Calibrator{
			OffsetX: cfg.CoordinateOffsetX,
			OffsetY: cfg.CoordinateOffsetY,
		},
	}, deps)

	c.logger.Info("Components initialized",
		"vision", c.Vision != nil,
		"ocr", c.OCR != nil,
		"cache", cfg.CacheBackend,
		"history", c.History != nil)

	return c, nil
}

// HealthCheck reports the first unreachable remote collaborator.
func (c *Components) HealthCheck(ctx context.Context) error {
	if c.Vision != nil {
		if err := c.Vision.HealthCheck(ctx); err != nil {
			return fmt.Errorf("vision health check failed: %w", err)
		}
	}
	if c.History != nil {
		if err := c.History.Ping(ctx); err != nil {
			return fmt.Errorf("database health check failed: %w", err)
		}
	}
	return nil
}

// Close releases everything in reverse order of creation.
func (c *Components) Close() error {
	var errs []string
	for i := len(c.closers) - 1; i >= 0; i-- {
		if err := c.closers[i].close(); err != nil {
			errs = append(errs, fmt.Sprintf("%s: %v", c.closers[i].name, err))
		}
	}
	c.closers = nil

	if len(errs) > 0 {
		return fmt.Errorf("errors closing components: %s", strings.Join(errs, "; "))
	}
	return nil
}
