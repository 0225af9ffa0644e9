// Package localization ties the string cache, the resolver and a locale
// source together. A Manager answers string lookups for the current locale
// and keeps its cache consistent across locale changes.
package localization

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/pitabwire/util"
	"go.opentelemetry.io/otel/metric"

	"github.com/pitabwire/lingua/cache"
	"github.com/pitabwire/lingua/locale"
	"github.com/pitabwire/lingua/remote"
	"github.com/pitabwire/lingua/resolver"
	"github.com/pitabwire/lingua/resource"
	"github.com/pitabwire/lingua/store"
	"github.com/pitabwire/lingua/telemetry"
	"github.com/pitabwire/lingua/workerpool"
)

const (
	tracerName = "github.com/pitabwire/lingua/localization"
	metricsPkg = "lingua/localization"
)

var (
	// ErrAlreadyInitialized is returned by Init when it was called before.
	ErrAlreadyInitialized = errors.New("localization manager is already initialized")
	// ErrShutDown is returned by Init once the manager was shut down.
	ErrShutDown = errors.New("localization manager is shut down")
	// ErrStoreRequired is returned by NewManager when no store was given.
	ErrStoreRequired = errors.New("localization manager needs a store")
)

type lifecycleState int

const (
	stateNew lifecycleState = iota
	stateRunning
	stateShutDown
)

// Manager resolves strings for the current locale through a bounded cache.
type Manager struct {
	opts     *options
	store    store.Store
	source   locale.Source
	fetcher  remote.Fetcher
	resolver *resolver.Resolver
	cache    *cache.LRU
	pool     *workerpool.Manager
	tracer   telemetry.Tracer

	ownsPool   bool
	ownsSource bool

	// mu guards current and epoch. epoch moves whenever the cache is
	// invalidated for a new locale or a refresh.
	mu      sync.RWMutex
	current resource.LocaleInfo
	epoch   uint64

	// seq serialises locale changes and refreshes.
	seq sync.Mutex

	locales   *locale.Broadcaster[resource.LocaleInfo]
	refreshes *locale.Broadcaster[uint64]

	lifecycle sync.Mutex
	state     lifecycleState
	cancel    context.CancelFunc
	done      chan struct{}

	switches    metric.Int64Counter
	populations metric.Int64Counter
}

// NewManager builds a manager. The current locale is read from the source
// once here; nothing runs in the background until Init.
func NewManager(ctx context.Context, opts ...Option) (*Manager, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}
	if o.store == nil {
		return nil, ErrStoreRequired
	}

	lru, err := cache.NewLRU(o.cacheSize, cache.WithLRUName("strings"))
	if err != nil {
		return nil, fmt.Errorf("create string cache: %w", err)
	}

	m := &Manager{
		opts:     o,
		store:    o.store,
		source:   o.source,
		fetcher:  o.fetcher,
		resolver: resolver.New(o.store, resolver.WithPluralPolicy(o.policy)),
		cache:    lru,
		pool:     o.pool,
		tracer:   telemetry.NewTracer(tracerName),
	}

	if m.source == nil {
		m.source = locale.FromEnvironment()
		m.ownsSource = true
	}
	if m.pool == nil {
		m.pool, err = workerpool.NewManager(ctx, nil)
		if err != nil {
			return nil, err
		}
		m.ownsPool = true
	}

	m.current = m.source.Current()
	if m.current.IsZero() {
		m.current = o.fallback
	}
	m.locales = locale.NewBroadcaster(m.current)
	m.refreshes = locale.NewBroadcaster[uint64](0)

	m.switches = telemetry.DimensionlessMeasure(metricsPkg, "/locale_switches", "Locale changes applied to the cache")
	m.populations = telemetry.DimensionlessMeasure(metricsPkg, "/populations", "Cache populations run")

	return m, nil
}

// Init starts following the locale source and populates the cache for the
// current locale in the background.
func (m *Manager) Init(ctx context.Context) error {
	m.lifecycle.Lock()
	defer m.lifecycle.Unlock()

	switch m.state {
	case stateRunning:
		return ErrAlreadyInitialized
	case stateShutDown:
		return ErrShutDown
	}

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	m.cancel = cancel
	m.done = make(chan struct{})
	m.state = stateRunning

	changes := locale.NewMonitor(m.source).Watch(runCtx)
	go m.loop(runCtx, changes)

	util.Log(ctx).WithField("locale", m.CurrentLocale().String()).Debug("localization manager started")
	return nil
}

func (m *Manager) loop(ctx context.Context, changes <-chan resource.LocaleInfo) {
	defer close(m.done)

	m.seq.Lock()
	initial := m.CurrentLocale()
	if err := m.populate(ctx, initial); err != nil && ctx.Err() == nil {
		util.Log(ctx).WithError(err).WithField("locale", initial.String()).Warn("initial population failed")
	}
	m.seq.Unlock()

	for next := range changes {
		m.handleLocaleChange(ctx, next)
	}
}

// handleLocaleChange moves the cache over to next. Readers never see a
// cached value of the previous locale once current has been replaced.
func (m *Manager) handleLocaleChange(ctx context.Context, next resource.LocaleInfo) {
	m.seq.Lock()
	defer m.seq.Unlock()

	if next.IsZero() || next == m.CurrentLocale() {
		return
	}

	ctx, span := m.tracer.Start(ctx, "HandleLocaleChange", telemetry.ForLocale(next.String()))

	m.mu.Lock()
	previous := m.current
	m.current = next
	m.epoch++
	m.mu.Unlock()
	m.cache.InvalidateAll(ctx)

	err := m.populate(ctx, next)
	m.cache.Registry().NotifyAll()
	m.locales.Publish(next)
	m.refreshes.Publish(m.currentEpoch())
	m.switches.Add(ctx, 1)

	util.Log(ctx).
		WithField("from", previous.String()).
		WithField("to", next.String()).
		Info("locale changed")
	m.tracer.End(ctx, span, err)
}

// Refresh drops every cached string and repopulates the current locale.
func (m *Manager) Refresh(ctx context.Context) error {
	m.seq.Lock()
	defer m.seq.Unlock()

	m.mu.Lock()
	current := m.current
	m.epoch++
	m.mu.Unlock()
	m.cache.InvalidateAll(ctx)

	err := m.populate(ctx, current)
	m.cache.Registry().NotifyAll()
	m.refreshes.Publish(m.currentEpoch())
	return err
}

// GetString returns the text for key in the current locale, the fallback
// locale, or key itself. A missing key is cached as itself; a store failure
// is not cached.
func (m *Manager) GetString(ctx context.Context, key string) string {
	text, err := m.cache.Get(ctx, key, func(ctx context.Context) (string, bool, error) {
		text, found, err := m.resolver.ResolveValue(ctx, key, m.Environment())
		if err != nil {
			return "", false, err
		}
		if !found {
			return key, true, nil
		}
		return text, true, nil
	})
	if err != nil {
		util.Log(ctx).WithError(err).WithField("key", key).Warn("could not resolve string")
		return key
	}
	return text
}

// ObserveString emits the value of key now and again after every locale
// change or refresh. The channel closes when ctx ends or the manager shuts
// down.
func (m *Manager) ObserveString(ctx context.Context, key string) <-chan string {
	out := make(chan string)
	ticks := m.refreshes.Subscribe(ctx)

	go func() {
		defer close(out)
		for range ticks {
			select {
			case out <- m.GetString(ctx, key):
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}

// GetArray returns the items stored under key. A missing array yields a
// single item holding key.
func (m *Manager) GetArray(ctx context.Context, key string) ([]string, error) {
	items, found, err := m.resolver.ResolveArray(ctx, key, m.Environment())
	if err != nil {
		util.Log(ctx).WithError(err).WithField("key", key).Warn("could not resolve array")
		return []string{key}, err
	}
	if !found {
		return []string{key}, nil
	}
	return items, nil
}

// GetPlural returns the form of the plural under key selected for count,
// or key when there is no such plural.
func (m *Manager) GetPlural(ctx context.Context, key string, count int) (string, error) {
	text, found, err := m.resolver.ResolvePlural(ctx, key, count, m.Environment())
	if err != nil {
		util.Log(ctx).WithError(err).WithField("key", key).Warn("could not resolve plural")
		return key, err
	}
	if !found {
		return key, nil
	}
	return text, nil
}

// CurrentLocale returns the locale lookups are answered in.
func (m *Manager) CurrentLocale() resource.LocaleInfo {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current
}

func (m *Manager) currentEpoch() uint64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.epoch
}

// ObserveLocale yields the current locale and then each locale once the
// cache has been moved over to it.
func (m *Manager) ObserveLocale(ctx context.Context) <-chan resource.LocaleInfo {
	return m.locales.Subscribe(ctx)
}

// Environment pairs the current locale with the fallback locale.
func (m *Manager) Environment() resource.Environment {
	return resource.NewEnvironment(m.CurrentLocale(), m.opts.fallback)
}

// OnRefresh calls fn whenever the cached value of key may have changed.
func (m *Manager) OnRefresh(key string, fn func()) cache.Subscription {
	return m.cache.Registry().Register(key, fn)
}

// ApplyUpdate stores value and, when it belongs to the current locale,
// replaces the cached text. An update for the fallback locale drops the
// cached entry so it is resolved again.
func (m *Manager) ApplyUpdate(ctx context.Context, value resource.Value) error {
	target := resource.ParseLocale(value.Locale)
	if target.IsZero() {
		return store.ErrLocaleRequired
	}
	value.Locale = target.String()

	if err := m.store.UpsertValue(ctx, value); err != nil {
		return err
	}

	m.mu.RLock()
	current, epoch := m.current, m.epoch
	m.mu.RUnlock()

	switch {
	case target == current:
		m.cache.Put(ctx, value.Key, value.Text)
		if m.currentEpoch() != epoch {
			// the cache moved on while we wrote
			m.cache.Remove(ctx, value.Key)
		}
	case target == m.opts.fallback:
		m.cache.Remove(ctx, value.Key)
	}
	return nil
}

// Shutdown stops following the locale source, waits for the running
// population to end and releases what the manager created. Calling it again
// is a no-op.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.lifecycle.Lock()
	if m.state == stateShutDown {
		m.lifecycle.Unlock()
		return nil
	}
	wasRunning := m.state == stateRunning
	m.state = stateShutDown
	cancel, done := m.cancel, m.done
	m.lifecycle.Unlock()

	var err error
	if wasRunning {
		cancel()
		select {
		case <-done:
		case <-ctx.Done():
			err = ctx.Err()
		}
	}

	m.locales.Close()
	m.refreshes.Close()

	if m.ownsPool {
		err = errors.Join(err, m.pool.Shutdown(ctx))
	}
	if m.ownsSource {
		if closer, ok := m.source.(interface{ Close() }); ok {
			closer.Close()
		}
	}
	return err
}
