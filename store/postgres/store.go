// Package postgres provides a PostgreSQL implementation of store.Store built
// on gorm over a pgx connection pool.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pitabwire/util"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/pitabwire/lingua/resource"
	"github.com/pitabwire/lingua/store"
)

const pgUniqueViolation = "23505"

// Store persists string resources in PostgreSQL.
type Store struct {
	pool *pgxpool.Pool
	db   *gorm.DB
	now  func() time.Time
}

var _ store.Store = (*Store)(nil)

// Open connects to the database at dsn, which may be a postgres:// url or a
// key=value DSN, and migrates the schema unless WithSkipMigration is given.
func Open(ctx context.Context, dsn string, opts ...Option) (*Store, error) {
	options := &Options{
		PreferSimpleProtocol: true,
		SlowQueryThreshold:   DefaultSlowQueryThreshold,
	}
	for _, opt := range opts {
		opt(options)
	}

	pgxPool, gormDB, err := connect(ctx, dsn, options)
	if err != nil {
		return nil, err
	}

	s := &Store{pool: pgxPool, db: gormDB, now: time.Now}

	if !options.SkipMigration {
		if err = s.Migrate(ctx); err != nil {
			util.CloseAndLogOnError(ctx, s)
			return nil, err
		}
	}
	return s, nil
}

// Migrate creates or updates the resource tables.
func (s *Store) Migrate(ctx context.Context) error {
	if err := s.db.WithContext(ctx).AutoMigrate(allModels()...); err != nil {
		return fmt.Errorf("migrate schema: %w", err)
	}
	return nil
}

// Close releases the gorm handle and the underlying pool.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}

	var err error
	if sqlDB, dbErr := s.db.DB(); dbErr == nil {
		err = sqlDB.Close()
	}
	if s.pool != nil {
		s.pool.Close()
	}
	s.db = nil
	s.pool = nil
	return err
}

func (s *Store) ready(ctx context.Context, op string) (*gorm.DB, error) {
	if err := ctx.Err(); err != nil {
		return nil, store.Fail(op, err)
	}
	if s == nil || s.db == nil {
		return nil, store.Fail(op, errors.New("storage is not configured"))
	}
	return s.db.WithContext(ctx), nil
}

func (s *Store) timestamp() time.Time {
	return s.now().UTC()
}

// GetValue returns the value for key and locale, or nil when absent.
func (s *Store) GetValue(ctx context.Context, key, locale string) (*resource.Value, error) {
	const op = "get value"
	db, err := s.ready(ctx, op)
	if err != nil {
		return nil, err
	}

	var m valueModel
	if err = db.Where("res_key = ? AND locale = ?", key, locale).First(&m).Error; err != nil {
		if store.ErrorIsNoRows(err) {
			return nil, nil
		}
		return nil, store.Fail(op, err)
	}
	return &resource.Value{Key: m.ResKey, Locale: m.Locale, Text: m.Value, Desc: m.Description}, nil
}

// GetAllValues returns every value stored for locale ordered by key.
func (s *Store) GetAllValues(ctx context.Context, locale string) ([]resource.Value, error) {
	const op = "get all values"
	db, err := s.ready(ctx, op)
	if err != nil {
		return nil, err
	}

	var models []valueModel
	if err = db.Where("locale = ?", locale).Order("res_key").Find(&models).Error; err != nil {
		return nil, store.Fail(op, err)
	}

	values := make([]resource.Value, 0, len(models))
	for _, m := range models {
		values = append(values, resource.Value{Key: m.ResKey, Locale: m.Locale, Text: m.Value, Desc: m.Description})
	}
	return values, nil
}

// InsertValue stores a new value; an existing (key, locale) is ErrAlreadyExists.
func (s *Store) InsertValue(ctx context.Context, value resource.Value) error {
	const op = "insert value"
	if err := store.Validate(value); err != nil {
		return err
	}
	db, err := s.ready(ctx, op)
	if err != nil {
		return err
	}

	now := s.timestamp()
	m := valueModel{
		ResKey: value.Key, Locale: value.Locale, Value: value.Text, Description: value.Desc,
		CreatedAt: now, UpdatedAt: now,
	}
	if err = db.Create(&m).Error; err != nil {
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
	db, err := s.ready(ctx, op)
	if err != nil {
		return err
	}

	result := db.Model(&valueModel{}).
		Where("res_key = ? AND locale = ?", value.Key, value.Locale).
		Updates(map[string]any{
			"value":       value.Text,
			"description": value.Desc,
			"updated_at":  s.timestamp(),
		})
	if result.Error != nil {
		return store.Fail(op, result.Error)
	}
	if result.RowsAffected == 0 {
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
	db, err := s.ready(ctx, op)
	if err != nil {
		return err
	}

	now := s.timestamp()
	m := valueModel{
		ResKey: value.Key, Locale: value.Locale, Value: value.Text, Description: value.Desc,
		CreatedAt: now, UpdatedAt: now,
	}
	err = db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "res_key"}, {Name: "locale"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "description", "updated_at"}),
	}).Create(&m).Error
	if err != nil {
		return store.Fail(op, err)
	}
	return nil
}

// DeleteValue removes a value. Deleting an absent value is not an error.
func (s *Store) DeleteValue(ctx context.Context, key, locale string) error {
	const op = "delete value"
	db, err := s.ready(ctx, op)
	if err != nil {
		return err
	}

	if err = db.Where("res_key = ? AND locale = ?", key, locale).Delete(&valueModel{}).Error; err != nil {
		return store.Fail(op, err)
	}
	return nil
}

// Locales lists the distinct locales that have values.
func (s *Store) Locales(ctx context.Context) ([]string, error) {
	const op = "list locales"
	db, err := s.ready(ctx, op)
	if err != nil {
		return nil, err
	}

	var locales []string
	if err = db.Model(&valueModel{}).Distinct("locale").Order("locale").Pluck("locale", &locales).Error; err != nil {
		return nil, store.Fail(op, err)
	}
	return locales, nil
}

func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation
}
