package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	defaultMaxConns    = 8
	defaultMaxLifetime = 30 * time.Minute
	defaultMaxIdleTime = 5 * time.Minute
)

// NewPool creates a pgx connection pool for the given database URL and
// pings it to verify connectivity. maxConns <= 0 selects the default.
// The same pool serves both the migration runner and the ingest handlers.
func NewPool(ctx context.Context, databaseURL string, maxConns int32) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidDatabaseURL, err)
	}

	if maxConns <= 0 {
		maxConns = defaultMaxConns
	}

	poolCfg.MaxConns = maxConns
	poolCfg.MaxConnLifetime = defaultMaxLifetime
	poolCfg.MaxConnIdleTime = defaultMaxIdleTime

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()

		return nil, fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}

	return pool, nil
}
