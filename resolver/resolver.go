// Package resolver maps a key and an Environment to a stored resource,
// consulting the fallback locale only when the primary locale has no entry.
package resolver

import (
	"context"
	"fmt"

	"github.com/pitabwire/util"
	"go.opentelemetry.io/otel/trace"

	"github.com/pitabwire/lingua/resource"
	"github.com/pitabwire/lingua/store"
	"github.com/pitabwire/lingua/telemetry"
)

const tracerName = "github.com/pitabwire/lingua/resolver"

// Resolver looks resources up in a Store with locale fallback.
//
// A missing resource is reported as found=false with a nil error. Store errors
// are returned as store.Failure.
type Resolver struct {
	store  store.Store
	policy resource.SelectionPolicy
	tracer telemetry.Tracer
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithPluralPolicy selects how plural counts map to forms.
func WithPluralPolicy(policy resource.SelectionPolicy) Option {
	return func(r *Resolver) {
		r.policy = policy
	}
}

// New creates a Resolver over st.
func New(st store.Store, opts ...Option) *Resolver {
	r := &Resolver{
		store:  st,
		policy: resource.PolicyLegacy,
		tracer: telemetry.NewTracer(tracerName),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Policy returns the plural selection policy in use.
func (r *Resolver) Policy() resource.SelectionPolicy {
	return r.policy
}

// lookup tries the primary locale then, if it differs, the fallback locale.
func lookup[T any](
	ctx context.Context,
	env resource.Environment,
	op string,
	get func(ctx context.Context, locale string) (*T, error),
) (*T, error) {
	found, err := get(ctx, env.Locale)
	if err != nil {
		return nil, store.Fail(op, err)
	}
	if found != nil || !env.HasFallback() {
		return found, nil
	}

	found, err = get(ctx, env.FallbackLocale)
	if err != nil {
		return nil, store.Fail(op, err)
	}
	return found, nil
}

func (r *Resolver) start(ctx context.Context, op, key string, env resource.Environment) (context.Context, trace.Span) {
	return r.tracer.Start(ctx, op, telemetry.ForString(key, env.Locale))
}

// ResolveValue returns the text of the value stored under key.
func (r *Resolver) ResolveValue(ctx context.Context, key string, env resource.Environment) (string, bool, error) {
	ctx, span := r.start(ctx, "ResolveValue", key, env)
	value, err := lookup(ctx, env, "resolve value", func(ctx context.Context, locale string) (*resource.Value, error) {
		return r.store.GetValue(ctx, key, locale)
	})
	r.tracer.End(ctx, span, err)

	if err != nil || value == nil {
		return "", false, err
	}
	return value.Text, true, nil
}

// ResolveArray returns the items of the array stored under key.
func (r *Resolver) ResolveArray(ctx context.Context, key string, env resource.Environment) ([]string, bool, error) {
	ctx, span := r.start(ctx, "ResolveArray", key, env)
	array, err := lookup(ctx, env, "resolve array", func(ctx context.Context, locale string) (*resource.Array, error) {
		return r.store.GetArray(ctx, key, locale)
	})
	r.tracer.End(ctx, span, err)

	if err != nil || array == nil {
		return nil, false, err
	}
	return array.Items, true, nil
}

// ResolvePlural selects the form of the plural stored under key for count.
// A plural without any usable form is reported as not found.
func (r *Resolver) ResolvePlural(
	ctx context.Context,
	key string,
	count int,
	env resource.Environment,
) (string, bool, error) {
	ctx, span := r.start(ctx, "ResolvePlural", key, env)
	plural, err := lookup(ctx, env, "resolve plural", func(ctx context.Context, locale string) (*resource.Plural, error) {
		return r.store.GetPlural(ctx, key, locale)
	})
	r.tracer.End(ctx, span, err)

	if err != nil || plural == nil {
		return "", false, err
	}

	text, ok := plural.Select(count, r.policy, resource.ParseLocale(plural.Locale))
	if !ok {
		util.Log(ctx).WithField("key", key).WithField("locale", plural.Locale).
			Debug("plural has no usable form")
		return "", false, nil
	}
	return text, true, nil
}

// Resolve returns the whole resource of the given kind stored under key.
func (r *Resolver) Resolve(
	ctx context.Context,
	kind resource.Kind,
	key string,
	env resource.Environment,
) (resource.StringResource, bool, error) {
	switch kind {
	case resource.KindValue:
		v, err := lookup(ctx, env, "resolve value", func(ctx context.Context, locale string) (*resource.Value, error) {
			return r.store.GetValue(ctx, key, locale)
		})
		if err != nil || v == nil {
			return nil, false, err
		}
		return *v, true, nil
	case resource.KindArray:
		a, err := lookup(ctx, env, "resolve array", func(ctx context.Context, locale string) (*resource.Array, error) {
			return r.store.GetArray(ctx, key, locale)
		})
		if err != nil || a == nil {
			return nil, false, err
		}
		return *a, true, nil
	case resource.KindPlural:
		p, err := lookup(ctx, env, "resolve plural", func(ctx context.Context, locale string) (*resource.Plural, error) {
			return r.store.GetPlural(ctx, key, locale)
		})
		if err != nil || p == nil {
			return nil, false, err
		}
		return *p, true, nil
	default:
		return nil, false, fmt.Errorf("unknown resource kind %s", kind)
	}
}
