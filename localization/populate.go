package localization

import (
	"context"

	"github.com/pitabwire/util"

	"github.com/pitabwire/lingua/resource"
	"github.com/pitabwire/lingua/workerpool"
)

// populate fills the cache for l on the worker pool and waits for it.
func (m *Manager) populate(ctx context.Context, l resource.LocaleInfo) error {
	job := workerpool.NewJob(func(ctx context.Context, _ workerpool.ResultPipe[struct{}]) error {
		m.fill(ctx, l)
		return nil
	}, workerpool.WithJobName("populate "+l.String()))

	if err := workerpool.Submit(ctx, m.pool, job); err != nil {
		return err
	}
	m.populations.Add(ctx, 1)
	return workerpool.Await(ctx, job)
}

// fill loads every stored value of l, then overlays the remote bundle.
// Failures are logged; whatever was loaded stays cached.
func (m *Manager) fill(ctx context.Context, l resource.LocaleInfo) {
	code := l.String()
	log := util.Log(ctx).WithField("locale", code)

	storeCtx, cancel := context.WithTimeout(ctx, m.opts.populateTimeout)
	values, err := m.store.GetAllValues(storeCtx, code)
	cancel()
	if err != nil {
		log.WithError(err).Warn("could not load stored strings")
	}
	for _, v := range values {
		m.cache.Put(ctx, v.Key, v.Text)
	}

	if m.fetcher == nil {
		log.WithField("stored", len(values)).Debug("cache populated")
		return
	}

	fetchCtx, cancel := context.WithTimeout(ctx, m.opts.populateTimeout)
	fetched, err := m.fetcher.FetchStrings(fetchCtx, code)
	cancel()
	if err != nil {
		log.WithError(err).Warn("could not fetch remote strings")
		return
	}

	for key, text := range fetched {
		if key == "" {
			continue
		}
		if m.opts.persistFetched {
			perr := m.store.UpsertValue(ctx, resource.Value{Key: key, Locale: code, Text: text})
			if perr != nil {
				log.WithError(perr).WithField("key", key).Warn("could not persist fetched string")
			}
		}
		m.cache.Put(ctx, key, text)
	}

	log.WithFields(map[string]any{
		"stored":  len(values),
		"fetched": len(fetched),
	}).Debug("cache populated")
}
