// Package remote fetches translation bundles from outside the process: a
// localization HTTP API, an in-memory fixture, or either of those behind a
// shared bundle cache.
package remote

import (
	"context"
	"errors"
	"fmt"
)

// ErrFetchFailure is matched by every error a Fetcher returns.
var ErrFetchFailure = errors.New("fetch failure")

// Fetcher retrieves the key to text map for one locale. A locale the remote
// side does not know yields an empty map and no error.
type Fetcher interface {
	FetchStrings(ctx context.Context, locale string) (map[string]string, error)
}

// Bundle is the body of a successful localization API response.
type Bundle struct {
	Locale      string            `json:"locale"`
	Strings     map[string]string `json:"strings"`
	Version     string            `json:"version,omitempty"`
	LastUpdated int64             `json:"last_updated,omitempty"`
}

// ErrorResponse is the body the API sends alongside a failing status.
type ErrorResponse struct {
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}

func (e ErrorResponse) text() string {
	if e.Message != "" {
		return e.Message
	}
	return e.Error
}

// FetchError describes a failed fetch. StatusCode is zero when no response
// was received.
type FetchError struct {
	Locale     string
	StatusCode int
	Response   ErrorResponse
	Err        error
}

func (e *FetchError) Error() string {
	switch {
	case e.StatusCode != 0:
		return fmt.Sprintf("fetch strings for locale %s: api error %d: %s", e.Locale, e.StatusCode, e.Response.text())
	case e.Err != nil:
		return fmt.Sprintf("fetch strings for locale %s: %v", e.Locale, e.Err)
	default:
		return "fetch strings for locale " + e.Locale
	}
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

func (e *FetchError) Is(target error) bool {
	return target == ErrFetchFailure
}

func failure(locale string, err error) error {
	var fe *FetchError
	if errors.As(err, &fe) {
		return err
	}
	return &FetchError{Locale: locale, Err: err}
}
