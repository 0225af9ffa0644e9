package cache

import "time"

// DefaultMaxAge bounds entries of raw caches that were given no TTL.
const DefaultMaxAge = time.Hour

// Option configures a raw cache backend.
type Option func(*Options)

// Options holds raw cache backend configuration.
type Options struct {
	DSN    string
	Name   string
	MaxAge time.Duration
}

// NewOptions applies opts over the defaults.
func NewOptions(opts ...Option) *Options {
	o := &Options{
		Name:   "lingua",
		MaxAge: DefaultMaxAge,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// WithDSN sets the backend connection url.
func WithDSN(dsn string) Option {
	return func(o *Options) {
		o.DSN = dsn
	}
}

// WithName sets the bucket or key namespace of the backend.
func WithName(name string) Option {
	return func(o *Options) {
		o.Name = name
	}
}

// WithMaxAge returns an Option to configure the max age of cache entries.
func WithMaxAge(maxAge time.Duration) Option {
	return func(o *Options) {
		o.MaxAge = maxAge
	}
}
