// Package store defines the persistence contract for localized string
// resources. Each resource kind lives in its own namespace, so the same key may
// back a value, an array and a plural for one locale at the same time.
package store

import (
	"context"

	"github.com/pitabwire/lingua/resource"
)

// Store is durable key/locale indexed storage for string resources.
//
// Get methods return (nil, nil) when the entry is absent; a missing entry is
// never an error. Any other error is a Failure.
type Store interface {
	GetValue(ctx context.Context, key, locale string) (*resource.Value, error)
	GetAllValues(ctx context.Context, locale string) ([]resource.Value, error)
	InsertValue(ctx context.Context, value resource.Value) error
	UpdateValue(ctx context.Context, value resource.Value) error
	UpsertValue(ctx context.Context, value resource.Value) error
	DeleteValue(ctx context.Context, key, locale string) error

	GetArray(ctx context.Context, key, locale string) (*resource.Array, error)
	InsertArray(ctx context.Context, array resource.Array) error
	UpdateArray(ctx context.Context, array resource.Array) error
	DeleteArray(ctx context.Context, key, locale string) error

	GetPlural(ctx context.Context, key, locale string) (*resource.Plural, error)
	InsertPlural(ctx context.Context, plural resource.Plural) error
	UpdatePlural(ctx context.Context, plural resource.Plural) error
	DeletePlural(ctx context.Context, key, locale string) error

	// Locales lists every locale that has at least one value.
	Locales(ctx context.Context) ([]string, error)

	Close() error
}

// Validate checks the identity fields shared by all resource kinds.
func Validate(res resource.StringResource) error {
	if res.ResourceKey() == "" {
		return ErrKeyRequired
	}
	if res.ResourceLocale() == "" {
		return ErrLocaleRequired
	}
	return nil
}
