package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/pitabwire/util"

	"github.com/pitabwire/lingua/cache"
	cachebackends "github.com/pitabwire/lingua/cache/backends"
	"github.com/pitabwire/lingua/config"
	"github.com/pitabwire/lingua/events"
	"github.com/pitabwire/lingua/locale"
	"github.com/pitabwire/lingua/localization"
	"github.com/pitabwire/lingua/remote"
	"github.com/pitabwire/lingua/resource"
	"github.com/pitabwire/lingua/store"
	storebackends "github.com/pitabwire/lingua/store/backends"
	"github.com/pitabwire/lingua/telemetry"
	"github.com/pitabwire/lingua/workerpool"
)

// app holds everything a command may need, built from the environment.
type app struct {
	cfg       *config.ConfigurationDefault
	telemetry telemetry.Manager
	store     store.Store
	pool      *workerpool.Manager
	fetcher   remote.Fetcher

	closers []func(context.Context) error
}

func bootstrap(ctx context.Context) (context.Context, *app, error) {
	cfg, err := config.FromEnv[config.ConfigurationDefault]()
	if err != nil {
		return ctx, nil, fmt.Errorf("read configuration: %w", err)
	}

	a := &app{cfg: &cfg}
	a.telemetry = telemetry.NewManager(ctx, a.cfg,
		telemetry.WithServiceName(cfg.Name()),
		telemetry.WithServiceVersion(cfg.Version()),
		telemetry.WithServiceEnvironment(cfg.Environment()),
	)
	if err = a.telemetry.Init(ctx); err != nil {
		return ctx, nil, fmt.Errorf("init telemetry: %w", err)
	}
	a.closers = append(a.closers, a.telemetry.Shutdown)

	ctx = util.ContextWithLogger(ctx, newLogger(ctx, a.cfg, a.telemetry))
	ctx = config.ToContext(ctx, a.cfg)

	if err = a.open(ctx); err != nil {
		_ = a.close(ctx)
		return ctx, nil, err
	}
	return ctx, a, nil
}

func newLogger(ctx context.Context, cfg config.ConfigurationLogLevel, tm telemetry.Manager) *util.LogEntry {
	var opts []util.Option

	if level, err := util.ParseLevel(cfg.LoggingLevel()); err == nil {
		opts = append(opts, util.WithLogLevel(level))
	}
	opts = append(opts,
		util.WithLogTimeFormat(cfg.LoggingTimeFormat()),
		util.WithLogNoColor(!cfg.LoggingColored()),
		util.WithLogOutput(os.Stderr),
	)
	if cfg.LoggingShowStackTrace() {
		opts = append(opts, util.WithLogStackTrace())
	}
	if handler := tm.LogHandler(); handler != nil {
		opts = append(opts, util.WithLogHandler(handler))
	}

	return util.NewLogger(ctx, opts...)
}

func (a *app) open(ctx context.Context) error {
	var err error

	a.store, err = storebackends.Open(ctx, a.cfg)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	a.closers = append(a.closers, func(context.Context) error { return a.store.Close() })

	a.pool, err = workerpool.NewManager(ctx, a.cfg)
	if err != nil {
		return err
	}
	a.closers = append(a.closers, a.pool.Shutdown)

	return a.openFetcher(ctx)
}

// openFetcher configures the remote bundle source, if any, behind the
// shared bundle cache.
func (a *app) openFetcher(ctx context.Context) error {
	switch {
	case a.cfg.UseSampleRemote():
		a.fetcher = remote.NewSampleFetcher()
	case a.cfg.GetRemoteBaseURL() != "":
		opts := []remote.Option{
			remote.WithEndpoint(a.cfg.GetRemoteEndpoint()),
			remote.WithAppVersion(a.cfg.GetRemoteAppVersion()),
			remote.WithTimeout(a.cfg.GetRemoteTimeout()),
		}
		if a.cfg.TraceReq() {
			opts = append(opts, remote.WithTraceRequests())
		}
		httpFetcher, err := remote.NewHTTPFetcher(a.cfg.GetRemoteBaseURL(), opts...)
		if err != nil {
			return err
		}
		a.closers = append(a.closers, func(context.Context) error { return httpFetcher.Close() })
		a.fetcher = httpFetcher
	default:
		return nil
	}

	if dsn := a.cfg.GetBundleCacheURL(); dsn != "" {
		raw, err := cachebackends.Open(ctx, dsn, cache.WithName(a.cfg.GetBundleCacheName()))
		if err != nil {
			return fmt.Errorf("open bundle cache: %w", err)
		}
		a.closers = append(a.closers, func(context.Context) error { return raw.Close() })
		a.fetcher = remote.NewCachingFetcher(a.fetcher, raw, a.cfg.GetBundleCacheTTL())
	}
	return nil
}

// startLocale is the -locale flag, else LINGUA_LOCALE, else the process
// locale.
func (a *app) startLocale(flagValue string) resource.LocaleInfo {
	if l := resource.ParseLocale(flagValue); !l.IsZero() {
		return l
	}
	if l := resource.ParseLocale(a.cfg.InitialLocale()); !l.IsZero() {
		return l
	}
	return locale.DetectLocale(os.LookupEnv)
}

func (a *app) newManager(
	ctx context.Context,
	src locale.Source,
	fallback string,
) (*localization.Manager, error) {
	fb := a.cfg.GetFallbackLocale()
	if fallback != "" {
		fb = fallback
	}

	opts := []localization.Option{
		localization.WithStore(a.store),
		localization.WithSource(src),
		localization.WithWorkerPool(a.pool),
		localization.WithCacheSize(a.cfg.GetCacheSize()),
		localization.WithFallbackLocale(resource.ParseLocale(fb)),
		localization.WithPopulateTimeout(a.cfg.GetPopulateTimeout()),
		localization.WithPluralPolicy(resource.ParsePolicy(a.cfg.GetPluralPolicy())),
		localization.WithPersistFetched(a.cfg.ShouldPersistFetched()),
	}
	if a.fetcher != nil {
		opts = append(opts, localization.WithFetcher(a.fetcher))
	}

	mgr, err := localization.NewManager(ctx, opts...)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, mgr.Shutdown)
	return mgr, nil
}

// newEvents opens the event queue with the localization events registered.
func (a *app) newEvents(
	ctx context.Context,
	src *locale.SettableSource,
	applier events.TranslationApplier,
) (*events.Manager, error) {
	evts := events.NewManager(a.cfg, a.pool)
	if src != nil {
		evts.Add(&events.LocaleChangedEvent{Source: src})
	}
	if applier != nil {
		evts.Add(&events.TranslationUpdatedEvent{Applier: applier})
	}

	if err := evts.Open(ctx); err != nil {
		return nil, err
	}
	a.closers = append(a.closers, evts.Close)
	return evts, nil
}

// close runs the closers in reverse order of registration.
func (a *app) close(ctx context.Context) error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i](ctx))
	}
	a.closers = nil
	return errors.Join(errs...)
}
