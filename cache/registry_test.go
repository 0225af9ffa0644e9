package cache_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pitabwire/lingua/cache"
)

func TestRegistryNotify(t *testing.T) {
	r := cache.NewRegistry()

	var greeting, farewell int
	sub := r.Register("greeting", func() { greeting++ })
	r.Register("greeting", func() { greeting++ })
	r.Register("farewell", func() { farewell++ })

	require.NotEmpty(t, sub.ID())
	assert.Equal(t, "greeting", sub.Key())
	assert.Equal(t, 3, r.Len())

	r.Notify("greeting")
	assert.Equal(t, 2, greeting)
	assert.Equal(t, 0, farewell)

	r.Notify("unknown")

	r.NotifyAll()
	assert.Equal(t, 4, greeting)
	assert.Equal(t, 1, farewell)
}

func TestRegistryClose(t *testing.T) {
	r := cache.NewRegistry()

	calls := 0
	sub := r.Register("greeting", func() { calls++ })
	other := r.Register("greeting", func() {})

	sub.Close()
	sub.Close()
	assert.Equal(t, 1, r.Len())

	r.Notify("greeting")
	assert.Equal(t, 0, calls)

	other.Close()
	assert.Equal(t, 0, r.Len())
}

func TestRegistryCallbackCanUnsubscribeItself(t *testing.T) {
	r := cache.NewRegistry()

	calls := 0
	var sub cache.Subscription
	sub = r.Register("greeting", func() {
		calls++
		sub.Close()
	})

	r.Notify("greeting")
	r.Notify("greeting")
	assert.Equal(t, 1, calls)
	assert.Equal(t, 0, r.Len())
}
