// Package jetstream implements cache.RawCache on a NATS JetStream key value
// bucket. Entry expiry is bucket wide, set from the cache max age.
package jetstream

import (
	"context"
	"errors"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/pitabwire/lingua/cache"
)

// Cache is a JetStream KeyValue backed cache.
type Cache struct {
	conn   *nats.Conn
	client nats.KeyValue
}

var _ cache.RawCache = (*Cache)(nil)

// New connects to the nats:// url given with cache.WithDSN and opens, or
// creates, the bucket named with cache.WithName.
func New(_ context.Context, opts ...cache.Option) (*Cache, error) {
	cacheOpts := cache.NewOptions(opts...)

	natsConn, err := nats.Connect(cacheOpts.DSN)
	if err != nil {
		return nil, err
	}

	client, err := openBucket(natsConn, cacheOpts.Name, cacheOpts.MaxAge)
	if err != nil {
		natsConn.Close()
		return nil, err
	}

	return &Cache{conn: natsConn, client: client}, nil
}

func openBucket(natsConn *nats.Conn, name string, maxAge time.Duration) (nats.KeyValue, error) {
	js, err := natsConn.JetStream()
	if err != nil {
		return nil, err
	}

	client, err := js.CreateKeyValue(&nats.KeyValueConfig{Bucket: name, TTL: maxAge})
	if err != nil {
		var apiErr *nats.APIError
		if !errors.As(err, &apiErr) || apiErr.ErrorCode != nats.JSErrCodeStreamNameInUse {
			return nil, err
		}
		// bucket already exists
		client, err = js.KeyValue(name)
		if err != nil {
			return nil, err
		}
	}

	if _, err = client.Status(); err != nil {
		return nil, err
	}
	return client, nil
}

// Get retrieves an item from the cache.
func (jc *Cache) Get(_ context.Context, key string) ([]byte, bool, error) {
	entry, err := jc.client.Get(key)
	if err != nil {
		if errors.Is(err, nats.ErrKeyNotFound) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return entry.Value(), true, nil
}

// Set stores value. The ttl is ignored in favour of the bucket max age.
func (jc *Cache) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	_, err := jc.client.Put(key, value)
	return err
}

// Delete removes an item from the cache.
func (jc *Cache) Delete(_ context.Context, key string) error {
	err := jc.client.Delete(key)
	if errors.Is(err, nats.ErrKeyNotFound) {
		return nil
	}
	return err
}

// Exists checks if a key exists in the cache.
func (jc *Cache) Exists(ctx context.Context, key string) (bool, error) {
	_, found, err := jc.Get(ctx, key)
	return found, err
}

// Flush deletes every key of the bucket.
func (jc *Cache) Flush(_ context.Context) error {
	keys, err := jc.client.Keys()
	if err != nil {
		if errors.Is(err, nats.ErrNoKeysFound) {
			return nil
		}
		return err
	}

	for _, key := range keys {
		if err = jc.client.Delete(key); err != nil {
			return err
		}
	}
	return nil
}

// Close closes the NATS connection.
func (jc *Cache) Close() error {
	jc.conn.Close()
	return nil
}
