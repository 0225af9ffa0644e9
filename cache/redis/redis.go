// Package redis implements cache.RawCache on go-redis.
package redis

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/pitabwire/lingua/cache"
)

const (
	connectionTimeout = 5 * time.Second
	scanBatch         = 100
)

// Cache is a Redis-backed cache. Keys are namespaced with the cache name so
// Flush only touches this cache's entries.
type Cache struct {
	client *redis.Client
	prefix string
	maxAge time.Duration
}

var _ cache.RawCache = (*Cache)(nil)

// New connects to the redis:// or rediss:// url given with cache.WithDSN.
func New(ctx context.Context, opts ...cache.Option) (*Cache, error) {
	cacheOpts := cache.NewOptions(opts...)

	redisOpts, err := redis.ParseURL(cacheOpts.DSN)
	if err != nil {
		return nil, err
	}

	client := redis.NewClient(redisOpts)

	pingCtx, cancel := context.WithTimeout(ctx, connectionTimeout)
	defer cancel()

	if err = client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}

	return &Cache{
		client: client,
		prefix: cacheOpts.Name + ":",
		maxAge: cacheOpts.MaxAge,
	}, nil
}

func (rc *Cache) key(key string) string {
	return rc.prefix + key
}

// Get retrieves an item from the cache.
func (rc *Cache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	val, err := rc.client.Get(ctx, rc.key(key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return val, true, nil
}

// Set stores value; a ttl <= 0 uses the cache max age.
func (rc *Cache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = rc.maxAge
	}
	return rc.client.Set(ctx, rc.key(key), value, ttl).Err()
}

// Delete removes an item from the cache.
func (rc *Cache) Delete(ctx context.Context, key string) error {
	return rc.client.Del(ctx, rc.key(key)).Err()
}

// Exists checks if a key exists in the cache.
func (rc *Cache) Exists(ctx context.Context, key string) (bool, error) {
	count, err := rc.client.Exists(ctx, rc.key(key)).Result()
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// Flush removes every key of this cache's namespace.
func (rc *Cache) Flush(ctx context.Context) error {
	var cursor uint64
	for {
		keys, next, err := rc.client.Scan(ctx, cursor, rc.prefix+"*", scanBatch).Result()
		if err != nil {
			return err
		}
		if len(keys) > 0 {
			if err = rc.client.Del(ctx, keys...).Err(); err != nil {
				return err
			}
		}
		if next == 0 {
			return nil
		}
		cursor = next
	}
}

// Close closes the Redis connection.
func (rc *Cache) Close() error {
	return rc.client.Close()
}
