// Package cache is a small Redis wrapper used for the public catalog and
// login throttling. Every key is namespaced so the store can share a Redis
// database with other services.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "storefront:"

var ErrNotFound = errors.New("key not found in cache")

// RedisCache wraps a redis client
type RedisCache struct {
	client *redis.Client
}

// NewRedisCache parses a redis:// URL and pings the server before returning.
func NewRedisCache(redisURL string) (*RedisCache, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}

	client := redis.NewClient(opt)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, err
	}

	return &RedisCache{client: client}, nil
}

func namespaced(keys []string) []string {
	out := make([]string, len(keys))
	for i, k := range keys {
		out[i] = keyPrefix + k
	}
	return out
}

// SetJSON stores value encoded as JSON.
func (r *RedisCache) SetJSON(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return r.client.Set(ctx, keyPrefix+key, data, ttl).Err()
}

// GetJSON decodes a cached value into dest. A miss returns ErrNotFound.
func (r *RedisCache) GetJSON(ctx context.Context, key string, dest interface{}) error {
	data, err := r.client.Get(ctx, keyPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return ErrNotFound
	}
	if err != nil {
		return err
	}
	return json.Unmarshal(data, dest)
}

// SetFlag stores a marker key that expires after ttl.
func (r *RedisCache) SetFlag(ctx context.Context, key string, ttl time.Duration) error {
	return r.client.Set(ctx, keyPrefix+key, 1, ttl).Err()
}

// FlagTTL reports whether key is set and how long it has left.
func (r *RedisCache) FlagTTL(ctx context.Context, key string) (bool, time.Duration, error) {
	ttl, err := r.client.TTL(ctx, keyPrefix+key).Result()
	if err != nil {
		return false, 0, err
	}
	// -2 means the key does not exist
	if ttl == -2 {
		return false, 0, nil
	}
	return true, ttl, nil
}

// CountInWindow increments key and starts its window on the first hit. The
// increment and expiry run in one transaction so a counter never outlives
// its window.
func (r *RedisCache) CountInWindow(ctx context.Context, key string, window time.Duration) (int64, error) {
	pipe := r.client.TxPipeline()
	incr := pipe.Incr(ctx, keyPrefix+key)
	pipe.ExpireNX(ctx, keyPrefix+key, window)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, err
	}
	return incr.Val(), nil
}

func (r *RedisCache) Delete(ctx context.Context, keys ...string) error {
	return r.client.Del(ctx, namespaced(keys)...).Err()
}

func (r *RedisCache) Close() error {
	return r.client.Close()
}
