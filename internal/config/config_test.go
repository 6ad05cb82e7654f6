package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("VISION_API_KEY", "test-key")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.True(t, cfg.VisionEnabled)
	assert.Equal(t, "glm-4v-flash", cfg.VisionModel)
	assert.Equal(t, 30*time.Second, cfg.VisionTimeout)
	assert.Equal(t, []string{"eng"}, cfg.OCRLanguages)
	assert.Equal(t, CacheBackendMemory, cfg.CacheBackend)
	assert.Equal(t, 1, cfg.WorkerConcurrency)
	assert.InDelta(t, 0.1, cfg.OCRMinConfidence, 1e-9)
	assert.False(t, cfg.OCRLines)
	assert.Equal(t, 2*time.Minute, cfg.LocateTimeout)
}

func TestLoadConfigOverrides(t *testing.T) {
	t.Setenv("VISION_ENABLED", "false")
	t.Setenv("OCR_LANGUAGES", "eng+chi_sim")
	t.Setenv("CACHE_BACKEND", "redis")
	t.Setenv("REDIS_URL", "redis://cache:6379/2")
	t.Setenv("COORDINATE_OFFSET_X", "-8")
	t.Setenv("COORDINATE_OFFSET_Y", "31")
	t.Setenv("MONITOR_INDEX", "2")
	t.Setenv("OCR_LINES", "true")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.False(t, cfg.VisionEnabled)
	assert.Equal(t, []string{"eng", "chi_sim"}, cfg.OCRLanguages)
	assert.Equal(t, CacheBackendRedis, cfg.CacheBackend)
	assert.Equal(t, -8, cfg.CoordinateOffsetX)
	assert.Equal(t, 31, cfg.CoordinateOffsetY)
	assert.Equal(t, 2, cfg.MonitorIndex)
	assert.True(t, cfg.OCRLines)
}

func TestLoadConfigMalformedNumbersFallBack(t *testing.T) {
	t.Setenv("VISION_API_KEY", "k")
	t.Setenv("VISION_TIMEOUT_SECONDS", "soon")
	t.Setenv("VISION_ENABLED", "maybe")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, 30*time.Second, cfg.VisionTimeout)
	assert.True(t, cfg.VisionEnabled)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			VisionEnabled:     true,
			VisionAPIKey:      "k",
			VisionBaseURL:     "http://vision",
			VisionTimeout:     time.Second,
			OCREnabled:        true,
			OCRLanguages:      []string{"eng"},
			OCRMinConfidence:  0.1,
			CacheBackend:      CacheBackendMemory,
			WorkerConcurrency: 1,
			LocateTimeout:     time.Minute,
		}
	}

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{"valid", func(c *Config) {}, ""},
		{"missing api key", func(c *Config) { c.VisionAPIKey = "" }, "VISION_API_KEY"},
		{"api key optional without vision", func(c *Config) { c.VisionEnabled = false; c.VisionAPIKey = "" }, ""},
		{"zero timeout", func(c *Config) { c.VisionTimeout = 0 }, "VISION_TIMEOUT_SECONDS"},
		{"no languages", func(c *Config) { c.OCRLanguages = nil }, "OCR_LANGUAGES"},
		{"confidence out of range", func(c *Config) { c.OCRMinConfidence = 1.5 }, "OCR_MIN_CONFIDENCE"},
		{"unknown backend", func(c *Config) { c.CacheBackend = "memcached" }, "CACHE_BACKEND"},
		{"redis without url", func(c *Config) { c.CacheBackend = CacheBackendRedis }, "REDIS_URL"},
		{"too many workers", func(c *Config) { c.WorkerConcurrency = 64 }, "WORKER_CONCURRENCY"},
		{"zero locate timeout", func(c *Config) { c.LocateTimeout = 0 }, "LOCATE_TIMEOUT_SECONDS"},
		{"negative monitor", func(c *Config) { c.MonitorIndex = -1 }, "MONITOR_INDEX"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			c := valid()
			tc.mutate(c)
			err := c.Validate()
			if tc.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.wantErr)
		})
	}
}
