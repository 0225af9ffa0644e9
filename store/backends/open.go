// Package backends opens a store.Store from a database url.
package backends

import (
	"context"
	"errors"
	"strings"

	"github.com/pitabwire/lingua/config"
	"github.com/pitabwire/lingua/store"
	"github.com/pitabwire/lingua/store/postgres"
	"github.com/pitabwire/lingua/store/sqlite"
)

var ErrNoDatabase = errors.New("database url is required")

// Open builds the store described by cfg. Connection tuning is applied to
// postgres only; sqlite ignores it.
func Open(ctx context.Context, cfg config.ConfigurationDatabase) (store.Store, error) {
	opts := []postgres.Option{
		postgres.WithPreferSimpleProtocol(cfg.PreferSimpleProtocol()),
	}
	if n := cfg.GetMaxOpenConnections(); n > 0 {
		opts = append(opts, postgres.WithMaxOpen(int32(n))) //nolint:gosec // bounded by config
	}
	if !cfg.DoDatabaseMigrate() {
		opts = append(opts, postgres.WithSkipMigration())
	}
	if tracing, ok := cfg.(config.ConfigurationDatabaseTracing); ok {
		opts = append(opts,
			postgres.WithTraceQueries(tracing.CanDatabaseTraceQueries()),
			postgres.WithSlowQueryThreshold(tracing.GetDatabaseSlowQueryLogThreshold()),
		)
	}
	return OpenDSN(ctx, cfg.GetDatabaseURL(), opts...)
}

// OpenDSN picks the backend from the form of dsn:
//
//	postgres://, postgresql:// or a key=value DSN with host=   PostgreSQL
//	sqlite://path, sqlite:path, file:path, :memory: or a path  SQLite
func OpenDSN(ctx context.Context, dsn string, opts ...postgres.Option) (store.Store, error) {
	dsn = strings.TrimSpace(dsn)
	if dsn == "" {
		return nil, ErrNoDatabase
	}

	if IsPostgres(dsn) {
		return raw(postgres.Open(ctx, dsn, opts...))
	}
	return raw(sqlite.Open(SQLitePath(dsn)))
}

// IsPostgres reports whether dsn addresses a PostgreSQL server.
func IsPostgres(dsn string) bool {
	lower := strings.ToLower(strings.TrimSpace(dsn))
	return strings.HasPrefix(lower, "postgres://") ||
		strings.HasPrefix(lower, "postgresql://") ||
		strings.Contains(lower, "host=")
}

// SQLitePath strips a sqlite or file scheme from dsn.
func SQLitePath(dsn string) string {
	dsn = strings.TrimSpace(dsn)
	for _, prefix := range []string{"sqlite://", "sqlite:", "file://", "file:"} {
		if len(dsn) >= len(prefix) && strings.EqualFold(dsn[:len(prefix)], prefix) {
			return dsn[len(prefix):]
		}
	}
	return dsn
}

// raw keeps a failed constructor from yielding a non nil interface.
func raw[T store.Store](s T, err error) (store.Store, error) {
	if err != nil {
		return nil, err
	}
	return s, nil
}
