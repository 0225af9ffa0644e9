// Package cache holds the two caching tiers of lingua: the bounded LRU of
// resolved strings with its refresh-callback registry, and the byte-level
// RawCache used to share fetched locale bundles between processes.
package cache

import (
	"context"
	"time"

	"github.com/pitabwire/lingua/internal/codec"
)

// RawCache is the low-level cache interface that works with bytes.
type RawCache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)
	Flush(ctx context.Context) error
	Close() error
}

// Namespace stores values of one type under a key prefix of a shared
// RawCache, encoded with the payload codec. Several namespaces can share one
// backend without their keys colliding.
type Namespace[V any] struct {
	raw    RawCache
	prefix string
}

func NewNamespace[V any](raw RawCache, prefix string) *Namespace[V] {
	return &Namespace[V]{raw: raw, prefix: prefix}
}

// Key is the backend key that holds id.
func (n *Namespace[V]) Key(id string) string {
	return n.prefix + id
}

// Get decodes the value stored under id. An entry that cannot be decoded is
// reported as an error and treated as absent.
func (n *Namespace[V]) Get(ctx context.Context, id string) (V, bool, error) {
	var value V
	data, found, err := n.raw.Get(ctx, n.Key(id))
	if err != nil || !found {
		return value, found, err
	}

	if err = codec.Unmarshal(data, &value); err != nil {
		var zero V
		return zero, false, err
	}
	return value, true, nil
}

func (n *Namespace[V]) Set(ctx context.Context, id string, value V, ttl time.Duration) error {
	data, err := codec.Marshal(value)
	if err != nil {
		return err
	}
	return n.raw.Set(ctx, n.Key(id), data, ttl)
}

func (n *Namespace[V]) Delete(ctx context.Context, id string) error {
	return n.raw.Delete(ctx, n.Key(id))
}
