package cache_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pitabwire/lingua/cache"
)

type bundle struct {
	Locale  string            `json:"locale"`
	Strings map[string]string `json:"strings"`
}

func TestNamespaceRoundTrip(t *testing.T) {
	ctx := context.Background()
	raw := cache.NewInMemoryCache()
	defer func() { require.NoError(t, raw.Close()) }()

	bundles := cache.NewNamespace[bundle](raw, "bundle.")
	assert.Equal(t, "bundle.fr", bundles.Key("fr"))

	_, found, err := bundles.Get(ctx, "fr")
	require.NoError(t, err)
	assert.False(t, found)

	want := bundle{Locale: "fr", Strings: map[string]string{"greeting": "Bonjour"}}
	require.NoError(t, bundles.Set(ctx, "fr", want, time.Minute))

	exists, err := raw.Exists(ctx, "bundle.fr")
	require.NoError(t, err)
	assert.True(t, exists)

	got, found, err := bundles.Get(ctx, "fr")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, want, got)

	require.NoError(t, bundles.Delete(ctx, "fr"))
	exists, err = raw.Exists(ctx, "bundle.fr")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestNamespacesShareBackend(t *testing.T) {
	ctx := context.Background()
	raw := cache.NewInMemoryCache()
	defer func() { _ = raw.Close() }()

	a := cache.NewNamespace[string](raw, "a.")
	b := cache.NewNamespace[string](raw, "b.")
	require.NoError(t, a.Set(ctx, "x", "from a", 0))
	require.NoError(t, b.Set(ctx, "x", "from b", 0))

	got, _, err := a.Get(ctx, "x")
	require.NoError(t, err)
	assert.Equal(t, "from a", got)
	got, _, err = b.Get(ctx, "x")
	require.NoError(t, err)
	assert.Equal(t, "from b", got)
}

func TestNamespaceRejectsCorruptEntries(t *testing.T) {
	ctx := context.Background()
	raw := cache.NewInMemoryCache()
	defer func() { _ = raw.Close() }()

	require.NoError(t, raw.Set(ctx, "bundle.7", []byte("{not json"), 0))

	bundles := cache.NewNamespace[bundle](raw, "bundle.")
	_, found, err := bundles.Get(ctx, "7")
	require.Error(t, err)
	assert.False(t, found)
}
