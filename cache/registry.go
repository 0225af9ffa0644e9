package cache

import (
	"sync"

	"github.com/rs/xid"
)

// Subscription is the handle returned by Registry.Register.
type Subscription interface {
	ID() string
	Key() string
	// Close unregisters the callback. It is safe to call more than once.
	Close()
}

type callback struct {
	id string
	fn func()
}

// Registry maps cache keys to refresh callbacks. Callbacks always run
// outside the registry lock, so they may register or close subscriptions.
type Registry struct {
	mu        sync.RWMutex
	callbacks map[string][]callback
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{callbacks: map[string][]callback{}}
}

type subscription struct {
	id       string
	key      string
	registry *Registry
	once     sync.Once
}

func (s *subscription) ID() string  { return s.id }
func (s *subscription) Key() string { return s.key }

func (s *subscription) Close() {
	s.once.Do(func() {
		s.registry.unregister(s.key, s.id)
	})
}

// Register adds fn as a refresh callback for key.
func (r *Registry) Register(key string, fn func()) Subscription {
	sub := &subscription{id: xid.New().String(), key: key, registry: r}

	r.mu.Lock()
	r.callbacks[key] = append(r.callbacks[key], callback{id: sub.id, fn: fn})
	r.mu.Unlock()

	return sub
}

func (r *Registry) unregister(key, id string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	current := r.callbacks[key]
	kept := make([]callback, 0, len(current))
	for _, cb := range current {
		if cb.id != id {
			kept = append(kept, cb)
		}
	}
	if len(kept) == 0 {
		delete(r.callbacks, key)
		return
	}
	r.callbacks[key] = kept
}

// Notify runs the callbacks registered for key.
func (r *Registry) Notify(key string) {
	r.mu.RLock()
	fns := make([]func(), 0, len(r.callbacks[key]))
	for _, cb := range r.callbacks[key] {
		fns = append(fns, cb.fn)
	}
	r.mu.RUnlock()

	for _, fn := range fns {
		fn()
	}
}

// NotifyAll runs every registered callback once.
func (r *Registry) NotifyAll() {
	r.mu.RLock()
	var fns []func()
	for _, cbs := range r.callbacks {
		for _, cb := range cbs {
			fns = append(fns, cb.fn)
		}
	}
	r.mu.RUnlock()

	for _, fn := range fns {
		fn()
	}
}

// Len reports the number of registered callbacks.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	n := 0
	for _, cbs := range r.callbacks {
		n += len(cbs)
	}
	return n
}
