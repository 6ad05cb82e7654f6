package app

import (
	"context"
	"encoding/json"
	"image"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adverant/nexus/ui-locator/internal/cache"
	"github.com/adverant/nexus/ui-locator/internal/config"
	"github.com/adverant/nexus/ui-locator/internal/element"
	"github.com/adverant/nexus/ui-locator/internal/locator"
	"github.com/adverant/nexus/ui-locator/internal/screen"
)

func baseConfig() *config.Config {
	return &config.Config{
		VisionTimeout:     5 * time.Second,
		OCRLanguages:      []string{"eng"},
		OCRMinConfidence:  0.1,
		CacheBackend:      config.CacheBackendMemory,
		CacheKeyPrefix:    "locator:cache:",
		WorkerConcurrency: 1,
		LocateTimeout:     time.Minute,
	}
}

func visionServer(t *testing.T, content string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/models":
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte(`{"data":[]}`))
		case "/chat/completions":
			resp := map[string]interface{}{
				"choices": []map[string]interface{}{
					{"message": map[string]interface{}{"role": "assistant", "content": content}},
				},
			}
			_ = json.NewEncoder(w).Encode(resp)
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestBuildWithoutRemoteCollaborators(t *testing.T) {
	comps, err := Build(context.Background(), baseConfig(), nil)
	require.NoError(t, err)
	defer comps.Close()

	assert.NotNil(t, comps.Engine)
	assert.Nil(t, comps.Vision)
	assert.Nil(t, comps.OCR)
	assert.Nil(t, comps.History)
	assert.IsType(t, &cache.MemoryCache{}, comps.Cache)
	assert.NoError(t, comps.HealthCheck(context.Background()))

	results, err := comps.Engine.Locate(context.Background(), "Save button",
		screen.New(image.NewRGBA(image.Rect(0, 0, 320, 200))), "Save", locator.LocateOptions{})
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestBuildWiresVisionAndCalibration(t *testing.T) {
	srv := visionServer(t, "```json\n"+
		`[{"element_type":"button","description":"Save","bbox":[333,333,666,666],"confidence":0.9}]`+
		"\n```")

	cfg := baseConfig()
	cfg.VisionEnabled = true
	cfg.VisionBaseURL = srv.URL
	cfg.VisionAPIKey = "k"
	cfg.CoordinateOffsetX = 10
	cfg.CoordinateOffsetY = -20

	comps, err := Build(context.Background(), cfg, nil)
	require.NoError(t, err)
	defer comps.Close()

	require.NoError(t, comps.HealthCheck(context.Background()))

	shot := screen.New(image.NewRGBA(image.Rect(0, 0, 1920, 1080)))
	results, err := comps.Engine.Locate(context.Background(), "Save button", shot, "", locator.LocateOptions{})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, element.BBox{X1: 649, Y1: 340, X2: 1289, Y2: 699}, results[0].BBox)
	assert.Equal(t, "button", results[0].ElementType)
}

func TestBuildWithRedisCache(t *testing.T) {
	mr := miniredis.RunT(t)

	cfg := baseConfig()
	cfg.CacheBackend = config.CacheBackendRedis
	cfg.RedisURL = "redis://" + mr.Addr()

	comps, err := Build(context.Background(), cfg, nil)
	require.NoError(t, err)
	assert.IsType(t, &cache.RedisCache{}, comps.Cache)
	assert.NoError(t, comps.Close())
	// a second Close has nothing left to release
	assert.NoError(t, comps.Close())
}

func TestBuildFailsOnUnreachableRedis(t *testing.T) {
	cfg := baseConfig()
	cfg.CacheBackend = config.CacheBackendRedis
	cfg.RedisURL = "not-a-redis-url"

	_, err := Build(context.Background(), cfg, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "redis cache")
}

func TestHealthCheckReportsVisionFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	cfg := baseConfig()
	cfg.VisionEnabled = true
	cfg.VisionBaseURL = srv.URL

	comps, err := Build(context.Background(), cfg, nil)
	require.NoError(t, err)
	defer comps.Close()

	err = comps.HealthCheck(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "vision")
}
