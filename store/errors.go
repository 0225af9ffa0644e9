package store

import (
	"database/sql"
	"errors"
	"fmt"

	"gorm.io/gorm"
)

var (
	// ErrStoreFailure matches every Failure via errors.Is.
	ErrStoreFailure = errors.New("store failure")

	ErrNotFound       = errors.New("resource not found")
	ErrAlreadyExists  = errors.New("resource already exists")
	ErrKeyRequired    = errors.New("resource key is required")
	ErrLocaleRequired = errors.New("resource locale is required")
)

// Failure wraps an I/O or query error raised by a Store so callers can tell a
// broken dependency apart from a missing translation.
type Failure struct {
	Op  string
	Err error
}

func (f *Failure) Error() string {
	return fmt.Sprintf("store %s: %v", f.Op, f.Err)
}

func (f *Failure) Unwrap() error {
	return f.Err
}

func (f *Failure) Is(target error) bool {
	return target == ErrStoreFailure
}

// Fail wraps err as a Failure for op. Nil stays nil, and an error that is
// already a Failure, or one of the package sentinels, is returned unchanged.
func Fail(op string, err error) error {
	if err == nil {
		return nil
	}

	var failure *Failure
	if errors.As(err, &failure) {
		return err
	}

	if errors.Is(err, ErrNotFound) || errors.Is(err, ErrAlreadyExists) ||
		errors.Is(err, ErrKeyRequired) || errors.Is(err, ErrLocaleRequired) {
		return err
	}

	return &Failure{Op: op, Err: err}
}

// ErrorIsNoRows reports whether err means the queried record does not exist.
func ErrorIsNoRows(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound) || errors.Is(err, sql.ErrNoRows)
}
