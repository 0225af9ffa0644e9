// Package sqlite provides the embedded SQLite implementation of store.Store.
package sqlite

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	msqlite "modernc.org/sqlite"
	sqlite3lib "modernc.org/sqlite/lib"

	"github.com/pitabwire/lingua/resource"
	"github.com/pitabwire/lingua/store"
)

//go:embed schema.sql
var schemaSQL string

const memoryPath = ":memory:"

// Store persists string resources in SQLite.
type Store struct {
	sqlDB *sql.DB
	now   func() time.Time
}

var _ store.Store = (*Store)(nil)

// Open opens (creating if needed) the database at path and ensures the schema.
// The special path ":memory:" opens a private in-memory database.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}

	dsn := memoryPath
	if path != memoryPath {
		dsn = filepath.Clean(path) +
			"?_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)"
	}

	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if path == memoryPath {
		// every pooled connection would otherwise see its own empty database
		sqlDB.SetMaxOpenConns(1)
	}

	if err = sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if _, err = sqlDB.Exec(schemaSQL); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	return &Store{sqlDB: sqlDB, now: time.Now}, nil
}

// Close closes the SQLite handle.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

func (s *Store) ready(ctx context.Context, op string) error {
	if err := ctx.Err(); err != nil {
		return store.Fail(op, err)
	}
	if s == nil || s.sqlDB == nil {
		return store.Fail(op, errors.New("storage is not configured"))
	}
	return nil
}

func (s *Store) millis() int64 {
	return s.now().UTC().UnixMilli()
}

// GetValue returns the value for key and locale, or nil when absent.
func (s *Store) GetValue(ctx context.Context, key, locale string) (*resource.Value, error) {
	const op = "get value"
	if err := s.ready(ctx, op); err != nil {
		return nil, err
	}

	row := s.sqlDB.QueryRowContext(ctx,
		`SELECT res_key, locale, value, description FROM string_values WHERE res_key = ? AND locale = ?`,
		key, locale)

	var v resource.Value
	if err := row.Scan(&v.Key, &v.Locale, &v.Text, &v.Desc); err != nil {
		if store.ErrorIsNoRows(err) {
			return nil, nil
		}
		return nil, store.Fail(op, err)
	}
	return &v, nil
}

// GetAllValues returns every value stored for locale ordered by key.
func (s *Store) GetAllValues(ctx context.Context, locale string) ([]resource.Value, error) {
	const op = "get all values"
	if err := s.ready(ctx, op); err != nil {
		return nil, err
	}

	rows, err := s.sqlDB.QueryContext(ctx,
		`SELECT res_key, locale, value, description FROM string_values WHERE locale = ? ORDER BY res_key`,
		locale)
	if err != nil {
		return nil, store.Fail(op, err)
	}
	defer rows.Close()

	var values []resource.Value
	for rows.Next() {
		var v resource.Value
		if err = rows.Scan(&v.Key, &v.Locale, &v.Text, &v.Desc); err != nil {
			return nil, store.Fail(op, err)
		}
		values = append(values, v)
	}
	if err = rows.Err(); err != nil {
		return nil, store.Fail(op, err)
	}
	return values, nil
}

// InsertValue stores a new value; an existing (key, locale) is ErrAlreadyExists.
func (s *Store) InsertValue(ctx context.Context, value resource.Value) error {
	const op = "insert value"
	if err := store.Validate(value); err != nil {
		return err
	}
	if err := s.ready(ctx, op); err != nil {
		return err
	}

	now := s.millis()
	_, err := s.sqlDB.ExecContext(ctx,
		`INSERT INTO string_values (res_key, locale, value, description, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		value.Key, value.Locale, value.Text, value.Desc, now, now)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("value %s/%s: %w", value.Locale, value.Key, store.ErrAlreadyExists)
		}
		return store.Fail(op, err)
	}
	return nil
}

// UpdateValue replaces the text and description of an existing value.
func (s *Store) UpdateValue(ctx context.Context, value resource.Value) error {
	const op = "update value"
	if err := store.Validate(value); err != nil {
		return err
	}
	if err := s.ready(ctx, op); err != nil {
		return err
	}

	result, err := s.sqlDB.ExecContext(ctx,
		`UPDATE string_values SET value = ?, description = ?, updated_at = ? WHERE res_key = ? AND locale = ?`,
		value.Text, value.Desc, s.millis(), value.Key, value.Locale)
	if err != nil {
		return store.Fail(op, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return store.Fail(op, err)
	}
	if affected == 0 {
		return fmt.Errorf("value %s/%s: %w", value.Locale, value.Key, store.ErrNotFound)
	}
	return nil
}

// UpsertValue inserts value or overwrites the existing entry.
func (s *Store) UpsertValue(ctx context.Context, value resource.Value) error {
	const op = "upsert value"
	if err := store.Validate(value); err != nil {
		return err
	}
	if err := s.ready(ctx, op); err != nil {
		return err
	}

	now := s.millis()
	_, err := s.sqlDB.ExecContext(ctx,
		`INSERT INTO string_values (res_key, locale, value, description, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT (res_key, locale) DO UPDATE SET
		   value = excluded.value,
		   description = excluded.description,
		   updated_at = excluded.updated_at`,
		value.Key, value.Locale, value.Text, value.Desc, now, now)
	if err != nil {
		return store.Fail(op, err)
	}
	return nil
}

// DeleteValue removes a value. Deleting an absent value is not an error.
func (s *Store) DeleteValue(ctx context.Context, key, locale string) error {
	const op = "delete value"
	if err := s.ready(ctx, op); err != nil {
		return err
	}

	if _, err := s.sqlDB.ExecContext(ctx,
		`DELETE FROM string_values WHERE res_key = ? AND locale = ?`, key, locale); err != nil {
		return store.Fail(op, err)
	}
	return nil
}

// Locales lists the distinct locales that have values.
func (s *Store) Locales(ctx context.Context) ([]string, error) {
	const op = "list locales"
	if err := s.ready(ctx, op); err != nil {
		return nil, err
	}

	rows, err := s.sqlDB.QueryContext(ctx, `SELECT DISTINCT locale FROM string_values ORDER BY locale`)
	if err != nil {
		return nil, store.Fail(op, err)
	}
	defer rows.Close()

	var locales []string
	for rows.Next() {
		var locale string
		if err = rows.Scan(&locale); err != nil {
			return nil, store.Fail(op, err)
		}
		locales = append(locales, locale)
	}
	if err = rows.Err(); err != nil {
		return nil, store.Fail(op, err)
	}
	return locales, nil
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	var sqliteErr *msqlite.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code() {
		case sqlite3lib.SQLITE_CONSTRAINT_PRIMARYKEY, sqlite3lib.SQLITE_CONSTRAINT_UNIQUE:
			return true
		}
	}
	return strings.Contains(strings.ToLower(err.Error()), "unique constraint failed")
}
