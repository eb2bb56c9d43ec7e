package cache

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"resumeflow-backend/internal/shared/metrics"
)

// RedisCache implements Cache over a redis client. Backend failures degrade
// to cache-miss behavior and are logged, never surfaced.
type RedisCache struct {
	client *redis.Client
	log    *zap.Logger
}

// NewRedisClient constructs the shared redis client.
func NewRedisClient(addr, password string, db int) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
}

// NewRedisCache wraps a redis client as a Cache.
func NewRedisCache(client *redis.Client, log *zap.Logger) *RedisCache {
	return &RedisCache{client: client, log: log}
}

// Get returns the cached value or nil on miss or backend failure.
func (c *RedisCache) Get(ctx context.Context, key string) []byte {
	val, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.log.Debug("cache get degraded to miss", zap.String("key", key), zap.Error(err))
		}
		metrics.IncCacheMiss()
		return nil
	}
	metrics.IncCacheHit()
	return val
}

// Set stores the value with a TTL, best effort.
func (c *RedisCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) {
	if err := c.client.Set(ctx, key, value, ttl).Err(); err != nil {
		c.log.Debug("cache set dropped", zap.String("key", key), zap.Error(err))
	}
}

// Delete removes the keys, best effort.
func (c *RedisCache) Delete(ctx context.Context, keys ...string) {
	if len(keys) == 0 {
		return
	}
	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		c.log.Debug("cache delete dropped", zap.Strings("keys", keys), zap.Error(err))
	}
}

var _ Cache = (*RedisCache)(nil)
