/**
 * Configuration for the UI locator
 *
 * Loads configuration from environment variables matching .env.locator
 */

package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Cache backends
const (
	CacheBackendMemory = "memory"
	CacheBackendRedis  = "redis"
)

// Config holds locator configuration
type Config struct {
	// Vision model (OpenAI-compatible chat completions endpoint)
	VisionEnabled bool
	VisionAPIKey  string
	VisionBaseURL string
	VisionModel   string
	VisionTimeout time.Duration

	// OCR configuration
	OCREnabled       bool
	OCRLanguages     []string
	TessdataPrefix   string
	OCRMinConfidence float64
	// OCRLines reads whole text lines so multi-word targets can match
	OCRLines bool

	// Result cache
	CacheBackend   string
	RedisURL       string
	CacheKeyPrefix string

	// Locate history (optional)
	DatabaseURL string

	// Worker configuration
	QueueName         string
	WorkerConcurrency int
	LocateTimeout     time.Duration

	// Screen configuration
	MonitorIndex      int
	CoordinateOffsetX int
	CoordinateOffsetY int

	LogLevel string
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	cfg := &Config{
		VisionEnabled:     getEnvAsBoolOrDefault("VISION_ENABLED", true),
		VisionAPIKey:      getEnvOrDefault("VISION_API_KEY", ""),
		VisionBaseURL:     getEnvOrDefault("VISION_BASE_URL", "https://open.bigmodel.cn/api/paas/v4"),
		VisionModel:       getEnvOrDefault("VISION_MODEL", "glm-4v-flash"),
		VisionTimeout:     time.Duration(getEnvAsIntOrDefault("VISION_TIMEOUT_SECONDS", 30)) * time.Second,
		OCREnabled:        getEnvAsBoolOrDefault("OCR_ENABLED", true),
		OCRLanguages:      getEnvAsListOrDefault("OCR_LANGUAGES", []string{"eng"}),
		TessdataPrefix:    getEnvOrDefault("TESSDATA_PREFIX", ""),
		OCRMinConfidence:  getEnvAsFloatOrDefault("OCR_MIN_CONFIDENCE", 0.1),
		OCRLines:          getEnvAsBoolOrDefault("OCR_LINES", false),
		CacheBackend:      getEnvOrDefault("CACHE_BACKEND", CacheBackendMemory),
		RedisURL:          getEnvOrDefault("REDIS_URL", "redis://localhost:6379"),
		CacheKeyPrefix:    getEnvOrDefault("CACHE_KEY_PREFIX", "locator:cache:"),
		DatabaseURL:       getEnvOrDefault("DATABASE_URL", ""),
		QueueName:         getEnvOrDefault("QUEUE_NAME", "locator"),
		WorkerConcurrency: getEnvAsIntOrDefault("WORKER_CONCURRENCY", 1),
		LocateTimeout:     time.Duration(getEnvAsIntOrDefault("LOCATE_TIMEOUT_SECONDS", 120)) * time.Second,
		MonitorIndex:      getEnvAsIntOrDefault("MONITOR_INDEX", 0),
		CoordinateOffsetX: getEnvAsIntOrDefault("COORDINATE_OFFSET_X", 0),
		CoordinateOffsetY: getEnvAsIntOrDefault("COORDINATE_OFFSET_Y", 0),
		LogLevel:          getEnvOrDefault("LOG_LEVEL", "info"),
	}

	// Validate required fields
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks if configuration is valid
func (c *Config) Validate() error {
	if c.VisionEnabled {
		if c.VisionAPIKey == "" {
			return fmt.Errorf("VISION_API_KEY is required when VISION_ENABLED is true")
		}
		if c.VisionBaseURL == "" {
			return fmt.Errorf("VISION_BASE_URL is required when VISION_ENABLED is true")
		}
	}

	if c.VisionTimeout <= 0 {
		return fmt.Errorf("VISION_TIMEOUT_SECONDS must be positive, got %v", c.VisionTimeout)
	}

	if c.OCREnabled && len(c.OCRLanguages) == 0 {
		return fmt.Errorf("OCR_LANGUAGES must name at least one language")
	}

	if c.OCRMinConfidence < 0 || c.OCRMinConfidence > 1 {
		return fmt.Errorf("OCR_MIN_CONFIDENCE must be between 0 and 1, got %v", c.OCRMinConfidence)
	}

	switch c.CacheBackend {
	case CacheBackendMemory:
	case CacheBackendRedis:
		if c.RedisURL == "" {
			return fmt.Errorf("REDIS_URL is required for the redis cache backend")
		}
	default:
		return fmt.Errorf("CACHE_BACKEND must be %q or %q, got %q", CacheBackendMemory, CacheBackendRedis, c.CacheBackend)
	}

	if c.WorkerConcurrency < 1 || c.WorkerConcurrency > 16 {
		return fmt.Errorf("WORKER_CONCURRENCY must be between 1 and 16, got %d", c.WorkerConcurrency)
	}

	if c.LocateTimeout <= 0 {
		return fmt.Errorf("LOCATE_TIMEOUT_SECONDS must be positive, got %v", c.LocateTimeout)
	}

	if c.MonitorIndex < 0 {
		return fmt.Errorf("MONITOR_INDEX must not be negative, got %d", c.MonitorIndex)
	}

	return nil
}

// getEnvOrDefault gets environment variable or returns default
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsIntOrDefault gets environment variable as int or returns default
func getEnvAsIntOrDefault(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}

func getEnvAsFloatOrDefault(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}

	return value
}

func getEnvAsBoolOrDefault(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}

// getEnvAsListOrDefault splits a "+" or "," separated list (tesseract style "eng+chi_sim")
func getEnvAsListOrDefault(key string, defaultValue []string) []string {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	parts := strings.FieldsFunc(valueStr, func(r rune) bool {
		return r == '+' || r == ','
	})
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
