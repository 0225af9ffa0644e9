package localization

import "context"

type contextKey string

func (c contextKey) String() string {
	return "lingua/localization/" + string(c)
}

const ctxKeyManager = contextKey("managerKey")

// ToContext adds the manager to the supplied context.
func ToContext(ctx context.Context, m *Manager) context.Context {
	return context.WithValue(ctx, ctxKeyManager, m)
}

// FromContext extracts the manager from the supplied context if one exists.
func FromContext(ctx context.Context) *Manager {
	m, ok := ctx.Value(ctxKeyManager).(*Manager)
	if !ok {
		return nil
	}
	return m
}

// T resolves key with the manager carried by ctx, or returns key when there
// is none.
func T(ctx context.Context, key string) string {
	m := FromContext(ctx)
	if m == nil {
		return key
	}
	return m.GetString(ctx, key)
}
