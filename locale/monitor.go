package locale

import (
	"context"

	"github.com/pitabwire/lingua/resource"
)

// Monitor turns a Source into a stream of distinct locales.
type Monitor struct {
	source Source
}

// NewMonitor creates a monitor over source.
func NewMonitor(source Source) *Monitor {
	return &Monitor{source: source}
}

// Watch starts a new subscription. The first value is the locale current at
// subscription time; after that only values different from the last
// delivered one are sent. The channel closes when ctx ends or the source
// stops.
func (m *Monitor) Watch(ctx context.Context) <-chan resource.LocaleInfo {
	out := make(chan resource.LocaleInfo)

	changes := m.source.Subscribe(ctx)
	last := m.source.Current()

	go func() {
		defer close(out)

		if !send(ctx, out, last) {
			return
		}

		for {
			select {
			case <-ctx.Done():
				return
			case l, ok := <-changes:
				if !ok {
					return
				}
				if l == last {
					continue
				}
				last = l
				if !send(ctx, out, l) {
					return
				}
			}
		}
	}()

	return out
}

func send(ctx context.Context, out chan<- resource.LocaleInfo, l resource.LocaleInfo) bool {
	select {
	case out <- l:
		return true
	case <-ctx.Done():
		return false
	}
}
