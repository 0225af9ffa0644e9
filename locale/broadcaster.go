package locale

import (
	"context"
	"sync"
)

// Broadcaster holds a current value and fans every published value out to
// its subscribers. Each subscriber has a single slot: a value not yet read is
// replaced by a newer one, so slow readers see the latest state rather than
// a backlog.
type Broadcaster[T any] struct {
	mu     sync.Mutex
	value  T
	subs   map[uint64]chan T
	nextID uint64
	closed bool
	done   chan struct{}
}

// NewBroadcaster creates a broadcaster holding initial.
func NewBroadcaster[T any](initial T) *Broadcaster[T] {
	return &Broadcaster[T]{value: initial, subs: map[uint64]chan T{}, done: make(chan struct{})}
}

// Load returns the current value.
func (b *Broadcaster[T]) Load() T {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.value
}

// Publish stores v as the current value and offers it to every subscriber.
func (b *Broadcaster[T]) Publish(v T) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	b.value = v
	for _, ch := range b.subs {
		offer(ch, v)
	}
}

// offer replaces whatever is buffered in ch with v. Only called under b.mu,
// so no other sender can refill the slot in between.
func offer[T any](ch chan T, v T) {
	select {
	case ch <- v:
		return
	default:
	}
	select {
	case <-ch:
	default:
	}
	ch <- v
}

// Subscribe returns a channel that first yields the current value and then
// every later published value. It closes when ctx ends or the broadcaster
// is closed.
func (b *Broadcaster[T]) Subscribe(ctx context.Context) <-chan T {
	ch := make(chan T, 1)

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		close(ch)
		return ch
	}
	id := b.nextID
	b.nextID++
	ch <- b.value
	b.subs[id] = ch
	b.mu.Unlock()

	go func() {
		select {
		case <-ctx.Done():
		case <-b.done:
			return
		}
		b.mu.Lock()
		defer b.mu.Unlock()
		if sub, ok := b.subs[id]; ok {
			delete(b.subs, id)
			close(sub)
		}
	}()

	return ch
}

// Subscribers reports the number of live subscriptions.
func (b *Broadcaster[T]) Subscribers() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}

// Close ends every subscription. Later publishes are dropped.
func (b *Broadcaster[T]) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	b.closed = true
	close(b.done)
	for id, ch := range b.subs {
		delete(b.subs, id)
		close(ch)
	}
}
