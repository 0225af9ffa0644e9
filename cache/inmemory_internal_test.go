package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInMemoryExpiry(t *testing.T) {
	ctx := context.Background()
	c := NewInMemoryCache()
	defer func() { require.NoError(t, c.Close()) }()

	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }

	require.NoError(t, c.Set(ctx, "short", []byte("v"), time.Minute))
	require.NoError(t, c.Set(ctx, "forever", []byte("v"), 0))

	ok, err := c.Exists(ctx, "short")
	require.NoError(t, err)
	assert.True(t, ok)

	now = now.Add(2 * time.Minute)

	_, found, err := c.Get(ctx, "short")
	require.NoError(t, err)
	assert.False(t, found)

	_, found, err = c.Get(ctx, "forever")
	require.NoError(t, err)
	assert.True(t, found)

	require.NoError(t, c.Set(ctx, "expired", []byte("v"), time.Second))
	now = now.Add(time.Hour)
	c.cleanup()
	c.mu.RLock()
	_, stillThere := c.items["expired"]
	c.mu.RUnlock()
	assert.False(t, stillThere)
}

func TestInMemoryCopiesValues(t *testing.T) {
	ctx := context.Background()
	c := NewInMemoryCache()
	defer func() { _ = c.Close() }()

	buf := []byte("hello")
	require.NoError(t, c.Set(ctx, "k", buf, 0))
	buf[0] = 'j'

	got, found, err := c.Get(ctx, "k")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, []byte("hello"), got)
}

func TestInMemoryFlushAndClose(t *testing.T) {
	ctx := context.Background()
	c := NewInMemoryCache()

	require.NoError(t, c.Set(ctx, "a", []byte("1"), 0))
	require.NoError(t, c.Delete(ctx, "a"))
	ok, err := c.Exists(ctx, "a")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, c.Set(ctx, "b", []byte("2"), 0))
	require.NoError(t, c.Flush(ctx))
	_, found, err := c.Get(ctx, "b")
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, c.Close())
	require.NoError(t, c.Close())
}
