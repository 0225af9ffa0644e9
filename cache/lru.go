package cache

import (
	"context"
	"errors"
	"strconv"
	"sync"

	"github.com/hashicorp/golang-lru/v2/simplelru"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"golang.org/x/sync/singleflight"

	"github.com/pitabwire/lingua/telemetry"
)

// DefaultMaxSize is the capacity used when none is configured.
const DefaultMaxSize = 1000

const metricsPkg = "lingua/cache"

// ErrInvalidSize is returned by NewLRU for a non positive capacity.
var ErrInvalidSize = errors.New("cache size must be positive")

// MissFunc computes the value for a missing key. When ok is false the value
// is returned to the caller but not stored.
type MissFunc func(ctx context.Context) (value string, ok bool, err error)

// LRUOption configures an LRU.
type LRUOption func(*LRU)

// WithRegistry routes change notifications to r instead of a private registry.
func WithRegistry(r *Registry) LRUOption {
	return func(c *LRU) {
		c.registry = r
	}
}

// WithLRUName tags the cache metrics.
func WithLRUName(name string) LRUOption {
	return func(c *LRU) {
		c.name = name
	}
}

// LRU is a bounded, thread safe string cache with least recently used
// eviction.
//
// Removal of an entry (capacity eviction, Remove, InvalidateAll) and a Put
// that changes a value notify the key's callbacks in the registry. Callbacks
// run after the cache lock is released.
type LRU struct {
	mu         sync.Mutex
	items      *simplelru.LRU[string, string]
	generation uint64
	evicted    []string
	changed    []string

	flights  singleflight.Group
	registry *Registry
	name     string

	hits      metric.Int64Counter
	misses    metric.Int64Counter
	evictions metric.Int64Counter
	attrs     metric.MeasurementOption
}

// NewLRU creates a cache holding at most maxSize entries.
func NewLRU(maxSize int, opts ...LRUOption) (*LRU, error) {
	if maxSize <= 0 {
		return nil, ErrInvalidSize
	}

	c := &LRU{name: "strings"}
	for _, opt := range opts {
		opt(c)
	}
	if c.registry == nil {
		c.registry = NewRegistry()
	}

	items, err := simplelru.NewLRU[string, string](maxSize, func(key string, _ string) {
		// runs under c.mu
		c.evicted = append(c.evicted, key)
	})
	if err != nil {
		return nil, err
	}
	c.items = items

	c.hits = telemetry.DimensionlessMeasure(metricsPkg, "/hits", "Lookups served from the string cache")
	c.misses = telemetry.DimensionlessMeasure(metricsPkg, "/misses", "Lookups that had to be resolved")
	c.evictions = telemetry.DimensionlessMeasure(metricsPkg, "/evictions", "Entries dropped from the string cache")
	c.attrs = metric.WithAttributes(attribute.String("cache", c.name))

	return c, nil
}

// Registry returns the registry notified by this cache.
func (c *LRU) Registry() *Registry {
	return c.registry
}

// unlock releases c.mu and notifies every key queued while it was held.
func (c *LRU) unlock(ctx context.Context) {
	evicted, changed := c.evicted, c.changed
	c.evicted, c.changed = nil, nil
	c.mu.Unlock()

	if len(evicted) > 0 {
		c.evictions.Add(ctx, int64(len(evicted)), c.attrs)
	}
	for _, key := range evicted {
		c.registry.Notify(key)
	}
	for _, key := range changed {
		c.registry.Notify(key)
	}
}

// Get returns the cached value for key, computing it with onMiss when absent.
//
// Concurrent misses for the same key share one onMiss call. It runs detached
// from the cancellation of any single caller; a caller whose ctx ends stops
// waiting and gets ctx.Err() while the others still receive the result. A
// value computed across an InvalidateAll is returned but not stored.
func (c *LRU) Get(ctx context.Context, key string, onMiss MissFunc) (string, error) {
	c.mu.Lock()
	if value, ok := c.items.Get(key); ok {
		c.mu.Unlock()
		c.hits.Add(ctx, 1, c.attrs)
		return value, nil
	}
	generation := c.generation
	c.mu.Unlock()

	c.misses.Add(ctx, 1, c.attrs)

	flightKey := strconv.FormatUint(generation, 10) + "/" + key
	flight := c.flights.DoChan(flightKey, func() (any, error) {
		shared := context.WithoutCancel(ctx)
		value, ok, missErr := onMiss(shared)
		if missErr != nil {
			return "", missErr
		}
		if ok {
			c.storeComputed(shared, key, value, generation)
		}
		return value, nil
	})

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case res := <-flight:
		if res.Err != nil {
			return "", res.Err
		}
		value, _ := res.Val.(string)
		return value, nil
	}
}

func (c *LRU) storeComputed(ctx context.Context, key, value string, generation uint64) {
	c.mu.Lock()
	defer c.unlock(ctx)

	if c.generation != generation {
		return
	}
	if _, present := c.items.Peek(key); present {
		// a Put won the race
		return
	}
	c.items.Add(key, value)
}

// Peek returns the cached value without touching recency.
func (c *LRU) Peek(key string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.items.Peek(key)
}

// Put stores value under key. Callbacks fire when the stored value changed.
func (c *LRU) Put(ctx context.Context, key, value string) {
	c.mu.Lock()
	defer c.unlock(ctx)

	previous, present := c.items.Peek(key)
	c.items.Add(key, value)
	if !present || previous != value {
		c.changed = append(c.changed, key)
	}
}

// Remove drops key from the cache.
func (c *LRU) Remove(ctx context.Context, key string) {
	c.mu.Lock()
	defer c.unlock(ctx)

	c.items.Remove(key)
}

// InvalidateAll drops every entry and starts a new generation, so in flight
// computations no longer store their results.
func (c *LRU) InvalidateAll(ctx context.Context) {
	c.mu.Lock()
	defer c.unlock(ctx)

	c.generation++
	c.items.Purge()
}

// Len returns the number of cached entries.
func (c *LRU) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.items.Len()
}

// Keys returns the cached keys from oldest to newest.
func (c *LRU) Keys() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.items.Keys()
}
