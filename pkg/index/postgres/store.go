// Package postgres implements the data-plane index on PostgreSQL.
//
// It suits deployments where several daemons share one index or where
// the folder count outgrows the embedded store. All access is raw SQL
// through a pgx connection pool; the schema ships as embedded
// migrations applied on startup under golang-migrate's advisory lock,
// so concurrent instances can race New safely.
package postgres

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/nntpvault/nntpvault/internal/logger"
	"github.com/nntpvault/nntpvault/pkg/index"
)

// Store is a PostgreSQL-backed index.Store.
type Store struct {
	pool   *pgxpool.Pool
	config Config
	log    *slog.Logger
}

// New connects to PostgreSQL, applies pending migrations and returns
// the store. The pool is sized from the config and every session runs
// with a statement timeout derived from QueryTimeout.
func New(ctx context.Context, cfg Config) (*Store, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, index.NewInvalidArgumentError(fmt.Sprintf("index config: %v", err))
	}

	log := logger.With("component", "postgres_index")

	if err := runMigrations(ctx, cfg.ConnectionString(), cfg.Database, log); err != nil {
		return nil, index.NewIOError("migrations failed", err)
	}

	pool, err := createConnectionPool(ctx, cfg)
	if err != nil {
		return nil, index.NewIOError("failed to create connection pool", err)
	}

	log.InfoContext(ctx, "PostgreSQL index ready",
		"host", cfg.Host,
		"database", cfg.Database,
		"max_conns", cfg.MaxConns,
	)

	return &Store{pool: pool, config: cfg, log: log}, nil
}

// createConnectionPool builds and verifies a pgx pool from the config.
func createConnectionPool(ctx context.Context, cfg Config) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.ConnectionString())
	if err != nil {
		return nil, fmt.Errorf("failed to parse connection string: %w", err)
	}

	poolConfig.MaxConns = cfg.MaxConns
	poolConfig.MinConns = cfg.MinConns
	poolConfig.MaxConnLifetime = cfg.MaxConnLifetime
	poolConfig.MaxConnIdleTime = cfg.MaxConnIdleTime
	poolConfig.HealthCheckPeriod = cfg.HealthCheckPeriod

	// Server-side guard against runaway queries.
	poolConfig.ConnConfig.RuntimeParams["statement_timeout"] = fmt.Sprintf("%dms", cfg.QueryTimeout.Milliseconds())

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return pool, nil
}

// Healthcheck verifies a connection can be acquired and the server
// answers.
func (s *Store) Healthcheck(ctx context.Context) error {
	if err := s.pool.Ping(ctx); err != nil {
		return fmt.Errorf("healthcheck failed: %w", err)
	}
	return nil
}

// Close drains the connection pool.
func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

// Compile-time interface check
var _ index.Store = (*Store)(nil)
