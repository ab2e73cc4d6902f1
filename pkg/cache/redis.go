// ==============================================================================
// COMPLETE REDIS INTEGRATION - pkg/cache/redis.go
// ==============================================================================
package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
)

type RedisCache struct {
	client *redis.Client
}

func NewRedisCache(url, password string, db int) (*RedisCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     url,
		Password: password,
		DB:       db,
	})

	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, err
	}

	return &RedisCache{client: client}, nil
}

func (c *RedisCache) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}

	return c.client.Set(ctx, key, data, expiration).Err()
}

func (c *RedisCache) Get(ctx context.Context, key string, dest interface{}) error {
	data, err := c.client.Get(ctx, key).Result()
	if err != nil {
		return err
	}

	return json.Unmarshal([]byte(data), dest)
}

func (c *RedisCache) Delete(ctx context.Context, key string) error {
	return c.client.Del(ctx, key).Err()
}

func (c *RedisCache) Exists(ctx context.Context, key string) (bool, error) {
	result, err := c.client.Exists(ctx, key).Result()
	return result > 0, err
}

func (c *RedisCache) Increment(ctx context.Context, key string) (int64, error) {
	return c.client.Incr(ctx, key).Result()
}

func (c *RedisCache) Expire(ctx context.Context, key string, expiration time.Duration) error {
	return c.client.Expire(ctx, key, expiration).Err()
}

func (c *RedisCache) Close() error {
	return c.client.Close()
}

// RPushJSON appends a JSON-encoded value to the list at key, preserving
// insertion order. Used by the run-scoped event sink to append events
// without requiring per-event transactional durability.
func (c *RedisCache) RPushJSON(ctx context.Context, key string, value interface{}) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return c.client.RPush(ctx, key, data).Err()
}

// LRangeJSON reads the list at key in [start,stop] (inclusive, -1 meaning
// "to the end") and JSON-decodes each element into dest via decodeEach.
func (c *RedisCache) LRangeJSON(ctx context.Context, key string, start, stop int64, decodeEach func(raw []byte) error) error {
	raws, err := c.client.LRange(ctx, key, start, stop).Result()
	if err != nil {
		return err
	}
	for _, raw := range raws {
		if err := decodeEach([]byte(raw)); err != nil {
			return err
		}
	}
	return nil
}

// KeysWithPrefix lists keys under a namespace prefix, so distinct simulation
// runs sharing one Redis instance stay isolated from each other.
func (c *RedisCache) KeysWithPrefix(ctx context.Context, prefix string) ([]string, error) {
	return c.client.Keys(ctx, prefix+"*").Result()
}
