package localization

import (
	"time"

	"github.com/pitabwire/lingua/cache"
	"github.com/pitabwire/lingua/locale"
	"github.com/pitabwire/lingua/remote"
	"github.com/pitabwire/lingua/resource"
	"github.com/pitabwire/lingua/store"
	"github.com/pitabwire/lingua/workerpool"
)

// DefaultPopulateTimeout bounds each step of a cache population.
const DefaultPopulateTimeout = 30 * time.Second

type options struct {
	store           store.Store
	source          locale.Source
	fetcher         remote.Fetcher
	pool            *workerpool.Manager
	cacheSize       int
	fallback        resource.LocaleInfo
	populateTimeout time.Duration
	policy          resource.SelectionPolicy
	persistFetched  bool
}

func defaultOptions() *options {
	return &options{
		cacheSize:       cache.DefaultMaxSize,
		fallback:        resource.NewLocale("en"),
		populateTimeout: DefaultPopulateTimeout,
		policy:          resource.PolicyLegacy,
	}
}

// Option configures a Manager.
type Option func(*options)

// WithStore sets the resource store. It is required.
func WithStore(st store.Store) Option {
	return func(o *options) {
		o.store = st
	}
}

// WithSource sets where the current locale comes from. Without it the
// process environment is read once at construction.
func WithSource(src locale.Source) Option {
	return func(o *options) {
		o.source = src
	}
}

// WithFetcher adds a remote bundle fetch to every population.
func WithFetcher(f remote.Fetcher) Option {
	return func(o *options) {
		o.fetcher = f
	}
}

// WithWorkerPool runs population jobs on pool. The manager does not shut a
// supplied pool down.
func WithWorkerPool(pool *workerpool.Manager) Option {
	return func(o *options) {
		o.pool = pool
	}
}

// WithCacheSize sets the string cache capacity.
func WithCacheSize(size int) Option {
	return func(o *options) {
		o.cacheSize = size
	}
}

// WithFallbackLocale sets the locale consulted when the current one has no
// entry. A zero locale disables fallback.
func WithFallbackLocale(l resource.LocaleInfo) Option {
	return func(o *options) {
		o.fallback = l
	}
}

// WithPopulateTimeout bounds the store read and the remote fetch of a
// population separately.
func WithPopulateTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.populateTimeout = d
		}
	}
}

// WithPluralPolicy selects how plural counts map to forms.
func WithPluralPolicy(policy resource.SelectionPolicy) Option {
	return func(o *options) {
		o.policy = policy
	}
}

// WithPersistFetched writes remotely fetched strings into the store.
func WithPersistFetched(persist bool) Option {
	return func(o *options) {
		o.persistFetched = persist
	}
}
