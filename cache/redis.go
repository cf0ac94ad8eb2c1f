package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/teranos/discograph/errors"
)

const (
	backendRedis = "redis"

	// keyPattern matches every key this package writes.
	keyPattern = "discograph:*"
)

// RedisCache stores values in redis with a per-key expiry.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
	logger *zap.SugaredLogger
}

// NewRedisCache wraps client. The caller keeps ownership of the client.
func NewRedisCache(client *redis.Client, ttl time.Duration, log *zap.SugaredLogger) *RedisCache {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &RedisCache{client: client, ttl: ttl, logger: log}
}

// Get implements Cache.
func (c *RedisCache) Get(ctx context.Context, key string, dst any) (bool, error) {
	data, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if err == redis.Nil {
			recordLookup(backendRedis, false, nil)
			return false, nil
		}
		recordLookup(backendRedis, false, err)
		return false, errors.Wrapf(err, "failed to GET %s", key)
	}
	if err := json.Unmarshal(data, dst); err != nil {
		recordLookup(backendRedis, false, err)
		return false, errors.Wrapf(err, "failed to decode cached %s", key)
	}
	recordLookup(backendRedis, true, nil)
	return true, nil
}

// Set implements Cache.
func (c *RedisCache) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return errors.Wrapf(err, "failed to encode %s", key)
	}
	if ttl <= 0 {
		ttl = c.ttl
	}
	if err := c.client.Set(ctx, key, data, ttl).Err(); err != nil {
		return errors.Wrapf(err, "failed to SET %s", key)
	}
	CacheWrites.WithLabelValues(backendRedis).Inc()
	return nil
}

// Delete implements Cache.
func (c *RedisCache) Delete(ctx context.Context, key string) error {
	if err := c.client.Del(ctx, key).Err(); err != nil {
		return errors.Wrapf(err, "failed to DEL %s", key)
	}
	return nil
}

// Clear deletes every discograph key. Other keys in the database are kept.
func (c *RedisCache) Clear(ctx context.Context) error {
	iter := c.client.Scan(ctx, 0, keyPattern, 100).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return errors.Wrap(err, "failed to SCAN cache keys")
	}
	if len(keys) == 0 {
		return nil
	}
	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		return errors.Wrap(err, "failed to DEL cache keys")
	}
	c.logger.Debugw("Cleared redis cache", "keys", len(keys))
	return nil
}
