package events

import (
	"context"
	"errors"
	"fmt"

	"github.com/pitabwire/lingua/locale"
	"github.com/pitabwire/lingua/resource"
)

const (
	LocaleChangedName      = "locale.changed"
	TranslationUpdatedName = "translation.updated"
)

// LocaleChanged asks every listener to switch to Locale.
type LocaleChanged struct {
	Locale string `json:"locale"`
}

// TranslationUpdated carries a new text for one key in one locale.
type TranslationUpdated struct {
	Key         string `json:"key"`
	Locale      string `json:"locale"`
	Value       string `json:"value"`
	Description string `json:"description,omitempty"`
}

// LocaleChangedEvent feeds received locale changes into a settable source,
// making the queue a locale source.
type LocaleChangedEvent struct {
	Source *locale.SettableSource
}

func (e *LocaleChangedEvent) Name() string     { return LocaleChangedName }
func (e *LocaleChangedEvent) PayloadType() any { return new(LocaleChanged) }

func (e *LocaleChangedEvent) Validate(_ context.Context, payload any) error {
	p, ok := payload.(*LocaleChanged)
	if !ok {
		return fmt.Errorf("payload is %T not %T", payload, &LocaleChanged{})
	}
	if resource.ParseLocale(p.Locale).IsZero() {
		return errors.New("locale is required")
	}
	return nil
}

func (e *LocaleChangedEvent) Execute(_ context.Context, payload any) error {
	p, _ := payload.(*LocaleChanged)
	e.Source.Set(resource.ParseLocale(p.Locale))
	return nil
}

// TranslationApplier takes a pushed translation into effect.
type TranslationApplier interface {
	ApplyUpdate(ctx context.Context, value resource.Value) error
}

// TranslationUpdatedEvent hands received translations to an applier.
type TranslationUpdatedEvent struct {
	Applier TranslationApplier
}

func (e *TranslationUpdatedEvent) Name() string     { return TranslationUpdatedName }
func (e *TranslationUpdatedEvent) PayloadType() any { return new(TranslationUpdated) }

func (e *TranslationUpdatedEvent) Validate(_ context.Context, payload any) error {
	p, ok := payload.(*TranslationUpdated)
	if !ok {
		return fmt.Errorf("payload is %T not %T", payload, &TranslationUpdated{})
	}
	if p.Key == "" {
		return errors.New("key is required")
	}
	if p.Locale == "" {
		return errors.New("locale is required")
	}
	return nil
}

func (e *TranslationUpdatedEvent) Execute(ctx context.Context, payload any) error {
	p, _ := payload.(*TranslationUpdated)
	return e.Applier.ApplyUpdate(ctx, resource.Value{
		Key:    p.Key,
		Locale: resource.ParseLocale(p.Locale).String(),
		Text:   p.Value,
		Desc:   p.Description,
	})
}
