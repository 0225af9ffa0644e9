package postgres

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/exaring/otelpgx"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// DefaultSlowQueryThreshold is the elapsed time after which a query is logged as slow.
const DefaultSlowQueryThreshold = 200 * time.Millisecond

// Options tunes the connection and its query logging.
type Options struct {
	MaxOpen              int32
	PreferSimpleProtocol bool
	TraceQueries         bool
	SlowQueryThreshold   time.Duration
	SkipMigration        bool
}

// Option mutates Options.
type Option func(*Options)

// WithMaxOpen caps the size of the pgx pool.
func WithMaxOpen(n int32) Option {
	return func(o *Options) {
		o.MaxOpen = n
	}
}

// WithPreferSimpleProtocol toggles the simple query protocol, needed behind pgbouncer.
func WithPreferSimpleProtocol(prefer bool) Option {
	return func(o *Options) {
		o.PreferSimpleProtocol = prefer
	}
}

// WithTraceQueries logs every executed statement at info level.
func WithTraceQueries(trace bool) Option {
	return func(o *Options) {
		o.TraceQueries = trace
	}
}

// WithSlowQueryThreshold sets the slow query warning threshold; zero disables it.
func WithSlowQueryThreshold(threshold time.Duration) Option {
	return func(o *Options) {
		o.SlowQueryThreshold = threshold
	}
}

// WithSkipMigration leaves the schema untouched on open.
func WithSkipMigration() Option {
	return func(o *Options) {
		o.SkipMigration = true
	}
}

func connect(ctx context.Context, dsn string, opts *Options) (*pgxpool.Pool, *gorm.DB, error) {
	cleanedPostgresqlDSN, err := cleanPostgresDSN(dsn)
	if err != nil {
		return nil, nil, err
	}

	cfg, err := pgxpool.ParseConfig(cleanedPostgresqlDSN)
	if err != nil {
		return nil, nil, fmt.Errorf("create connection pool: %w", err)
	}
	if opts.MaxOpen > 0 {
		cfg.MaxConns = opts.MaxOpen
	}

	cfg.ConnConfig.Tracer = otelpgx.NewTracer()

	pgxPool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("connect to database: %w", err)
	}

	err = otelpgx.RecordStats(pgxPool)
	if err != nil {
		pgxPool.Close()
		return nil, nil, fmt.Errorf("unable to record database stats: %w", err)
	}

	conn := stdlib.OpenDBFromPool(pgxPool)

	gormDB, err := gorm.Open(
		postgres.New(postgres.Config{
			Conn:                 conn,
			PreferSimpleProtocol: opts.PreferSimpleProtocol,
		}),
		&gorm.Config{
			Logger:                 newQueryLogger(ctx, opts),
			SkipDefaultTransaction: true,
		},
	)
	if err != nil {
		_ = conn.Close()
		pgxPool.Close()
		return nil, nil, err
	}

	return pgxPool, gormDB, nil
}

// cleanPostgresDSN checks if the input is already a DSN, otherwise converts a PostgreSQL URL to DSN.
func cleanPostgresDSN(pgString string) (string, error) {
	trimmed := strings.TrimSpace(pgString)
	if trimmed == "" {
		return "", fmt.Errorf("database url is required")
	}

	lower := strings.ToLower(trimmed)
	if strings.Contains(trimmed, "=") && !strings.HasPrefix(lower, "postgres://") &&
		!strings.HasPrefix(lower, "postgresql://") {
		return trimmed, nil
	}

	u, err := url.Parse(trimmed)
	if err != nil {
		return "", err
	}

	if u.Scheme != "postgres" && u.Scheme != "postgresql" {
		return "", fmt.Errorf("invalid scheme: %s", u.Scheme)
	}

	user := ""
	password := ""
	if u.User != nil {
		user = u.User.Username()
		password, _ = u.User.Password()
	}
	port := u.Port()
	if port == "" {
		port = "5432"
	}

	dsn := []string{
		"host=" + u.Hostname(),
		"port=" + port,
		"user=" + user,
		"password=" + password,
		"dbname=" + strings.TrimPrefix(u.Path, "/"),
	}
	for k, vals := range u.Query() {
		for _, v := range vals {
			dsn = append(dsn, fmt.Sprintf("%s=%s", k, v))
		}
	}
	return strings.Join(dsn, " "), nil
}
