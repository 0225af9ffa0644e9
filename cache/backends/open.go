// Package backends opens a cache.RawCache from a connection url.
package backends

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/pitabwire/lingua/cache"
	"github.com/pitabwire/lingua/cache/jetstream"
	"github.com/pitabwire/lingua/cache/redis"
	"github.com/pitabwire/lingua/cache/valkey"
)

// Open picks the backend by url scheme:
//
//	mem://            process local InMemoryCache
//	redis://, rediss:// go-redis
//	valkey://, valkeys:// valkey-go (the url is handed over as redis://)
//	nats://           JetStream key value bucket
//
// An empty dsn opens an in-memory cache.
func Open(ctx context.Context, dsn string, opts ...cache.Option) (cache.RawCache, error) {
	dsn = strings.TrimSpace(dsn)
	if dsn == "" {
		return cache.NewInMemoryCache(), nil
	}

	u, err := url.Parse(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse cache url: %w", err)
	}

	switch strings.ToLower(u.Scheme) {
	case "mem", "memory":
		return cache.NewInMemoryCache(), nil
	case "redis", "rediss":
		return raw(redis.New(ctx, append(opts, cache.WithDSN(dsn))...))
	case "valkey", "valkeys":
		u.Scheme = strings.Replace(strings.ToLower(u.Scheme), "valkey", "redis", 1)
		return raw(valkey.New(ctx, append(opts, cache.WithDSN(u.String()))...))
	case "nats":
		return raw(jetstream.New(ctx, append(opts, cache.WithDSN(dsn))...))
	default:
		return nil, fmt.Errorf("unsupported cache scheme %q", u.Scheme)
	}
}

// raw keeps a failed constructor from yielding a non nil interface.
func raw[T cache.RawCache](c T, err error) (cache.RawCache, error) {
	if err != nil {
		return nil, err
	}
	return c, nil
}
