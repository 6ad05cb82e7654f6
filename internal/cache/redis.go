package cache

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/adverant/nexus/ui-locator/internal/element"
	"github.com/adverant/nexus/ui-locator/internal/logging"
)

const scanBatch = 100

// RedisCache shares results between locator processes. Values are JSON arrays stored
// without expiry under keyPrefix.
type RedisCache struct {
	client    *redis.Client
	keyPrefix string
	tracer    trace.Tracer
	logger    *logging.Logger
}

// NewRedisCache connects to redisURL and verifies the connection.
func NewRedisCache(ctx context.Context, redisURL, keyPrefix string) (*RedisCache, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	client := redis.NewClient(opt)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return NewRedisCacheFromClient(client, keyPrefix), nil
}

// NewRedisCacheFromClient wraps an existing client. The cache owns it from then on.
func NewRedisCacheFromClient(client *redis.Client, keyPrefix string) *RedisCache {
	logger := logging.NewLogger("RedisCache")
	logger.Info("Redis result cache ready", "keyPrefix", keyPrefix)

	return &RedisCache{
		client:    client,
		keyPrefix: keyPrefix,
		tracer:    otel.Tracer("locator-cache"),
		logger:    logger,
	}
}

func (c *RedisCache) redisKey(key Key) string {
	return c.keyPrefix + key.String()
}

func (c *RedisCache) Get(ctx context.Context, key Key) ([]element.UIElement, bool, error) {
	ctx, span := c.tracer.Start(ctx, "redis_cache_get")
	defer span.End()

	data, err := c.client.Get(ctx, c.redisKey(key)).Bytes()
	if err == redis.Nil {
		span.SetAttributes(attribute.Bool("cache.hit", false))
		return nil, false, nil
	}
	if err != nil {
		span.RecordError(err)
		return nil, false, fmt.Errorf("failed to read cached result: %w", err)
	}

	var elements []element.UIElement
	if err := json.Unmarshal(data, &elements); err != nil {
		span.RecordError(err)
		return nil, false, fmt.Errorf("failed to unmarshal cached result: %w", err)
	}

	span.SetAttributes(
		attribute.Bool("cache.hit", true),
		attribute.Int("cache.elements", len(elements)),
	)
	return elements, true, nil
}

func (c *RedisCache) Set(ctx context.Context, key Key, elements []element.UIElement) error {
	ctx, span := c.tracer.Start(ctx, "redis_cache_set")
	defer span.End()

	if elements == nil {
		elements = []element.UIElement{}
	}
	data, err := json.Marshal(elements)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to marshal result: %w", err)
	}

	if err := c.client.Set(ctx, c.redisKey(key), data, 0).Err(); err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to write cached result: %w", err)
	}
	return nil
}

// Clear deletes every key under the prefix, using SCAN so large keyspaces do not block Redis.
func (c *RedisCache) Clear(ctx context.Context) error {
	ctx, span := c.tracer.Start(ctx, "redis_cache_clear")
	defer span.End()

	var keys []string
	iter := c.client.Scan(ctx, 0, c.keyPrefix+"*", scanBatch).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to list cache keys: %w", err)
	}

	for start := 0; start < len(keys); start += scanBatch {
		end := min(start+scanBatch, len(keys))
		if err := c.client.Del(ctx, keys[start:end]...).Err(); err != nil {
			span.RecordError(err)
			return fmt.Errorf("failed to delete cache keys: %w", err)
		}
	}

	span.SetAttributes(attribute.Int("cache.keys_cleared", len(keys)))
	c.logger.Info("Result cache cleared", "keys", len(keys))
	return nil
}

func (c *RedisCache) Close() error {
	return c.client.Close()
}
