package database

import (
	"context"
	"fmt"
	"hash/fnv"

	"github.com/jackc/pgx/v5/pgxpool"
)

// migrationLockKey names the advisory lock that serializes migration runs.
// Hashing a name keeps the int64 key stable across releases without a
// magic number in the source.
const migrationLockKey = "tracker:schema_migrations"

// MigrationLockID is the advisory lock identifier used to prevent
// concurrent migration runs against the same database.
var MigrationLockID = lockID(migrationLockKey) //nolint:gochecknoglobals // derived constant

func lockID(key string) int64 {
	h := fnv.New64a()
	h.Write([]byte(key)) //nolint:errcheck // fnv Write never fails

	return int64(h.Sum64()) //nolint:gosec // wraparound is fine, the key only needs to be stable
}

// LockHandle wraps a dedicated pooled connection that holds a
// session-level advisory lock. Call Release to unlock and return
// the connection to the pool.
type LockHandle struct {
	conn *pgxpool.Conn
	id   int64
}

// TryAcquireLock attempts to acquire the migration advisory lock without
// blocking. Returns ErrLockNotAcquired if another runner holds it; the
// caller may retry after backoff. The caller must call handle.Release()
// when done.
func TryAcquireLock(ctx context.Context, pool *pgxpool.Pool) (*LockHandle, error) {
	conn, err := pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquiring connection for advisory lock: %w", err)
	}

	var acquired bool

	err = conn.QueryRow(ctx, "SELECT pg_try_advisory_lock($1)", MigrationLockID).Scan(&acquired)
	if err != nil {
		conn.Release()

		return nil, fmt.Errorf("executing pg_try_advisory_lock: %w", err)
	}

	if !acquired {
		conn.Release()

		return nil, ErrLockNotAcquired
	}

	return &LockHandle{conn: conn, id: MigrationLockID}, nil
}

// Release unlocks the advisory lock and returns the connection to the pool.
// Safe to call multiple times; subsequent calls are no-ops.
func (h *LockHandle) Release(ctx context.Context) error {
	if h == nil || h.conn == nil {
		return nil
	}

	_, err := h.conn.Exec(ctx, "SELECT pg_advisory_unlock($1)", h.id)
	h.conn.Release()
	h.conn = nil

	if err != nil {
		return fmt.Errorf("releasing advisory lock: %w", err)
	}

	return nil
}
