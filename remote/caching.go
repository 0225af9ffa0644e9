package remote

import (
	"context"
	"time"

	"github.com/pitabwire/util"

	"github.com/pitabwire/lingua/cache"
)

// DefaultBundleTTL is how long a fetched bundle stays in the bundle cache.
const DefaultBundleTTL = 24 * time.Hour

// CachingFetcher stores every bundle the inner fetcher returns and serves the
// stored copy when the inner fetcher fails.
type CachingFetcher struct {
	inner   Fetcher
	bundles *cache.Namespace[map[string]string]
	ttl     time.Duration
}

var _ Fetcher = (*CachingFetcher)(nil)

// NewCachingFetcher decorates inner with raw as the bundle store. A ttl of
// zero or less uses DefaultBundleTTL.
func NewCachingFetcher(inner Fetcher, raw cache.RawCache, ttl time.Duration) *CachingFetcher {
	if ttl <= 0 {
		ttl = DefaultBundleTTL
	}
	return &CachingFetcher{
		inner:   inner,
		bundles: cache.NewNamespace[map[string]string](raw, bundlePrefix),
		ttl:     ttl,
	}
}

const bundlePrefix = "bundle."

// BundleKey is the cache key holding the bundle for locale.
func BundleKey(locale string) string {
	return bundlePrefix + locale
}

func (c *CachingFetcher) FetchStrings(ctx context.Context, locale string) (map[string]string, error) {
	log := util.Log(ctx).WithField("locale", locale)

	strs, err := c.inner.FetchStrings(ctx, locale)
	if err == nil {
		if setErr := c.bundles.Set(ctx, locale, strs, c.ttl); setErr != nil {
			log.WithError(setErr).Warn("could not store fetched bundle")
		}
		return strs, nil
	}

	cached, found, cacheErr := c.bundles.Get(ctx, locale)
	if cacheErr != nil {
		log.WithError(cacheErr).Warn("could not read cached bundle")
	}
	if !found {
		return nil, err
	}

	log.WithError(err).Info("fetch failed, serving cached bundle")
	if cached == nil {
		cached = map[string]string{}
	}
	return cached, nil
}

// Forget drops the cached bundle for locale.
func (c *CachingFetcher) Forget(ctx context.Context, locale string) error {
	return c.bundles.Delete(ctx, locale)
}
