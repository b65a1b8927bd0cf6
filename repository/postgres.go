package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"ai-exchange/observability"
)

// DBTX is an interface that both pgxpool.Pool and pgx.Tx satisfy.
// This allows Repository methods to work with either a connection pool
// or a transaction.
type DBTX interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Repository is the trade journal backed by PostgreSQL
type Repository struct {
	pool    *pgxpool.Pool
	db      DBTX // The actual executor (pool or transaction)
	metrics *observability.Metrics
}

// NewRepository creates a new Repository with a PostgreSQL connection pool
func NewRepository(ctx context.Context, connString string) (*Repository, error) {
	pool, err := pgxpool.New(ctx, connString)
	if err != nil {
		return nil, fmt.Errorf("unable to create connection pool: %w", err)
	}

	// Test connection
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("unable to ping database: %w", err)
	}

	return &Repository{pool: pool, db: pool}, nil
}

// WithMetrics records query durations and errors on m
func (r *Repository) WithMetrics(m *observability.Metrics) *Repository {
	r.metrics = m
	return r
}

// WithTx returns a new Repository that uses the given transaction.
// This is useful for running multiple operations atomically.
func (r *Repository) WithTx(tx pgx.Tx) *Repository {
	return &Repository{pool: r.pool, db: tx, metrics: r.metrics}
}

// BeginTx starts a new transaction and returns a Repository that uses it.
// The caller is responsible for calling Commit() or Rollback() on the transaction.
func (r *Repository) BeginTx(ctx context.Context) (pgx.Tx, *Repository, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	return tx, r.WithTx(tx), nil
}

// Close closes the database connection pool
func (r *Repository) Close() {
	if r.pool != nil {
		r.pool.Close()
	}
}

// Health checks if the database connection is healthy
func (r *Repository) Health(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

// Pool returns the underlying connection pool for advanced operations.
// This is primarily intended for testing and cleanup operations.
func (r *Repository) Pool() *pgxpool.Pool {
	return r.pool
}

const schema = `
CREATE TABLE IF NOT EXISTS trades (
	id          UUID PRIMARY KEY,
	symbol      VARCHAR(16)    NOT NULL,
	side        VARCHAR(8)     NOT NULL,
	order_type  VARCHAR(8)     NOT NULL,
	quantity    BIGINT         NOT NULL CHECK (quantity > 0),
	price       NUMERIC(18, 4) NOT NULL,
	total_value NUMERIC(18, 4) NOT NULL,
	status      VARCHAR(16)    NOT NULL,
	executed_at TIMESTAMPTZ    NOT NULL,
	created_at  TIMESTAMPTZ    NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_trades_symbol_executed_at ON trades (symbol, executed_at DESC);
`

// Migrate creates the journal schema if it does not exist
func (r *Repository) Migrate(ctx context.Context) error {
	if _, err := r.db.Exec(ctx, schema); err != nil {
		return fmt.Errorf("failed to migrate schema: %w", err)
	}
	return nil
}

// observe records the duration of a query and counts it as failed when err is set
func (r *Repository) observe(timer *observability.Timer, operation, table string, err error) {
	if r.metrics == nil {
		return
	}
	timer.ObserveDB(operation, table)
	if err != nil {
		r.metrics.RecordDBError(operation, table)
	}
}

func (r *Repository) timer() *observability.Timer {
	if r.metrics == nil {
		return nil
	}
	return r.metrics.NewTimer()
}
