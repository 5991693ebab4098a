// File: utils/cache.go
package utils

import (
	"context"
	"encoding/json"
	"time"

	"github.com/go-redis/redis/v8"
)

// NewRedisClient builds and verifies a Redis client for the given database.
// Clients are constructed once at startup and injected into the components
// that need them; lifecycle (Close) is owned by the caller.
func NewRedisClient(addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, err
	}
	return client, nil
}

// Cache is an explicit read-through cache component over Redis. Values are
// JSON-encoded; a compute miss is stored with the given TTL.
type Cache struct {
	client *redis.Client
}

func NewCache(client *redis.Client) *Cache {
	return &Cache{client: client}
}

// GetOrCompute returns the cached value for key, computing and storing it for
// ttl on a miss. A Redis error degrades to computing without caching.
func (c *Cache) GetOrCompute(ctx context.Context, key string, ttl time.Duration, dest interface{}, compute func() (interface{}, error)) error {
	val, err := c.client.Get(ctx, key).Result()
	if err == nil {
		if uerr := json.Unmarshal([]byte(val), dest); uerr == nil {
			return nil
		}
		// Corrupt entry: drop it and fall through to compute.
		c.client.Del(ctx, key)
	}

	computed, err := compute()
	if err != nil {
		return err
	}
	data, err := json.Marshal(computed)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, dest); err != nil {
		return err
	}
	c.client.Set(ctx, key, data, ttl)
	return nil
}

// Set stores a JSON-encoded value under key with the given TTL.
func (c *Cache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, key, data, ttl).Err()
}

// Get loads a JSON-encoded value; found reports whether the key existed.
func (c *Cache) Get(ctx context.Context, key string, dest interface{}) (bool, error) {
	val, err := c.client.Get(ctx, key).Result()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, json.Unmarshal([]byte(val), dest)
}

// Invalidate removes the given keys.
func (c *Cache) Invalidate(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	return c.client.Del(ctx, keys...).Err()
}
