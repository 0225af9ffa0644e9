// Package valkey implements cache.RawCache on the official Valkey client.
package valkey

import (
	"context"
	"time"

	"github.com/valkey-io/valkey-go"

	"github.com/pitabwire/lingua/cache"
)

const (
	connectionTimeout = 5 * time.Second
	scanBatch         = 100
)

// Cache is a Valkey-backed cache. Keys are namespaced with the cache name.
type Cache struct {
	client valkey.Client
	prefix string
	maxAge time.Duration
}

var _ cache.RawCache = (*Cache)(nil)

// New connects to the url given with cache.WithDSN.
func New(ctx context.Context, opts ...cache.Option) (*Cache, error) {
	cacheOpts := cache.NewOptions(opts...)

	valkeyOpts, err := valkey.ParseURL(cacheOpts.DSN)
	if err != nil {
		return nil, err
	}

	client, err := valkey.NewClient(valkeyOpts)
	if err != nil {
		return nil, err
	}

	pingCtx, cancel := context.WithTimeout(ctx, connectionTimeout)
	defer cancel()

	if pingErr := client.Do(pingCtx, client.B().Ping().Build()).Error(); pingErr != nil {
		client.Close()
		return nil, pingErr
	}

	return &Cache{
		client: client,
		prefix: cacheOpts.Name + ":",
		maxAge: cacheOpts.MaxAge,
	}, nil
}

func (vc *Cache) key(key string) string {
	return vc.prefix + key
}

// Get retrieves an item from the cache.
func (vc *Cache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	resp := vc.client.Do(ctx, vc.client.B().Get().Key(vc.key(key)).Build())

	if err := resp.Error(); err != nil {
		if valkey.IsValkeyNil(err) {
			return nil, false, nil
		}
		return nil, false, err
	}

	val, err := resp.AsBytes()
	if err != nil {
		return nil, false, err
	}
	return val, true, nil
}

// Set stores value; a ttl <= 0 uses the cache max age.
func (vc *Cache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = vc.maxAge
	}

	var cmd valkey.Completed
	if ttl > 0 {
		// EX takes whole seconds
		seconds := int64(ttl.Seconds())
		if seconds == 0 {
			seconds = 1
		}
		cmd = vc.client.B().Set().Key(vc.key(key)).Value(valkey.BinaryString(value)).ExSeconds(seconds).Build()
	} else {
		cmd = vc.client.B().Set().Key(vc.key(key)).Value(valkey.BinaryString(value)).Build()
	}

	return vc.client.Do(ctx, cmd).Error()
}

// Delete removes an item from the cache.
func (vc *Cache) Delete(ctx context.Context, key string) error {
	return vc.client.Do(ctx, vc.client.B().Del().Key(vc.key(key)).Build()).Error()
}

// Exists checks if a key exists in the cache.
func (vc *Cache) Exists(ctx context.Context, key string) (bool, error) {
	resp := vc.client.Do(ctx, vc.client.B().Exists().Key(vc.key(key)).Build())
	if err := resp.Error(); err != nil {
		return false, err
	}

	count, err := resp.AsInt64()
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// Flush removes every key of this cache's namespace.
func (vc *Cache) Flush(ctx context.Context) error {
	var cursor uint64
	for {
		entry, err := vc.client.Do(ctx,
			vc.client.B().Scan().Cursor(cursor).Match(vc.prefix+"*").Count(scanBatch).Build(),
		).AsScanEntry()
		if err != nil {
			return err
		}
		if len(entry.Elements) > 0 {
			if err = vc.client.Do(ctx, vc.client.B().Del().Key(entry.Elements...).Build()).Error(); err != nil {
				return err
			}
		}
		if entry.Cursor == 0 {
			return nil
		}
		cursor = entry.Cursor
	}
}

// Close closes the Valkey connection.
func (vc *Cache) Close() error {
	vc.client.Close()
	return nil
}
