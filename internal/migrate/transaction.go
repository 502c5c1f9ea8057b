package migrate

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ExecInTransaction runs fn inside a database transaction.
// On success the transaction is committed; on error it is rolled back.
func ExecInTransaction(ctx context.Context, pool *pgxpool.Pool, fn func(tx pgx.Tx) error) error {
	tx, err := pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}

	defer tx.Rollback(ctx) //nolint:errcheck // rollback on committed tx returns ErrTxClosed

	if err := fn(tx); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}

	return nil
}

// ExecWithoutTransaction executes SQL directly on the pool, outside any
// transaction. Required for statements like CREATE INDEX CONCURRENTLY
// which cannot run inside a transaction block.
func ExecWithoutTransaction(ctx context.Context, pool *pgxpool.Pool, sql string) error {
	_, err := pool.Exec(ctx, sql)
	if err != nil {
		return fmt.Errorf("executing outside transaction: %w", err)
	}

	return nil
}

// SetLockTimeout sets the lock_timeout for the given transaction, so a
// migration fails fast instead of queueing behind long-held locks.
func SetLockTimeout(ctx context.Context, tx pgx.Tx, timeoutMs int64) error {
	sql := fmt.Sprintf("SET lock_timeout = '%dms'", timeoutMs)

	_, err := tx.Exec(ctx, sql)
	if err != nil {
		return fmt.Errorf("setting lock_timeout: %w", err)
	}

	return nil
}

// SetStatementTimeout sets the statement_timeout for the given transaction.
func SetStatementTimeout(ctx context.Context, tx pgx.Tx, timeoutMs int64) error {
	sql := fmt.Sprintf("SET statement_timeout = '%dms'", timeoutMs)

	_, err := tx.Exec(ctx, sql)
	if err != nil {
		return fmt.Errorf("setting statement_timeout: %w", err)
	}

	return nil
}
