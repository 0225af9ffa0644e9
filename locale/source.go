// Package locale observes the active locale: sources report it, and the
// Monitor turns a source into a de-duplicated stream of changes.
package locale

import (
	"context"

	"github.com/pitabwire/lingua/resource"
)

// Source reports the current locale and its later changes.
type Source interface {
	Current() resource.LocaleInfo
	// Subscribe yields the current locale, then each change, until ctx ends.
	// Intermediate values may be skipped when the reader falls behind.
	Subscribe(ctx context.Context) <-chan resource.LocaleInfo
}

// SettableSource is a Source driven from inside the process, by the host
// application, a CLI flag or a queue subscription.
type SettableSource struct {
	state *Broadcaster[resource.LocaleInfo]
}

var _ Source = (*SettableSource)(nil)

// NewSettableSource creates a source starting at initial; a zero initial
// locale starts at the default language.
func NewSettableSource(initial resource.LocaleInfo) *SettableSource {
	if initial.IsZero() {
		initial = resource.NewLocale(resource.DefaultLanguage)
	}
	return &SettableSource{state: NewBroadcaster(initial)}
}

func (s *SettableSource) Current() resource.LocaleInfo {
	return s.state.Load()
}

func (s *SettableSource) Subscribe(ctx context.Context) <-chan resource.LocaleInfo {
	return s.state.Subscribe(ctx)
}

// Set publishes l. A zero locale is ignored.
func (s *SettableSource) Set(l resource.LocaleInfo) {
	if l.IsZero() {
		return
	}
	s.state.Publish(l)
}

// Close ends every subscription.
func (s *SettableSource) Close() {
	s.state.Close()
}
