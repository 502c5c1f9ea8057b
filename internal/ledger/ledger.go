package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// AppliedMigration is one row of the schema_migrations ledger.
type AppliedMigration struct {
	Version    string
	Name       string
	Checksum   string
	AppliedAt  time.Time
	DurationMs int
}

// RecordParams contains the fields needed to record a migration as applied.
type RecordParams struct {
	Version    string
	Name       string
	Checksum   string
	DurationMs int
}

// Ledger manages the schema_migrations table: the persisted, append-only
// record of which migrations have been applied. Rows are never updated or
// deleted by the engine.
type Ledger struct {
	pool *pgxpool.Pool
}

// New creates a Ledger backed by the given connection pool.
func New(pool *pgxpool.Pool) *Ledger {
	return &Ledger{pool: pool}
}

// EnsureTable creates the schema_migrations table if it does not exist.
func (l *Ledger) EnsureTable(ctx context.Context) error {
	_, err := l.pool.Exec(ctx, createSchemaSQL)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrTableCreation, err)
	}

	return nil
}

// Applied returns all recorded migrations ordered by version.
func (l *Ledger) Applied(ctx context.Context) ([]AppliedMigration, error) {
	rows, err := l.pool.Query(ctx,
		`SELECT version, name, checksum, applied_at, duration_ms
		 FROM schema_migrations
		 ORDER BY version`,
	)
	if err != nil {
		return nil, fmt.Errorf("querying applied migrations: %w", err)
	}
	defer rows.Close()

	applied, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (AppliedMigration, error) {
		var m AppliedMigration
		if scanErr := row.Scan(&m.Version, &m.Name, &m.Checksum, &m.AppliedAt, &m.DurationMs); scanErr != nil {
			return AppliedMigration{}, fmt.Errorf("scanning ledger row: %w", scanErr)
		}

		return m, nil
	})
	if err != nil {
		return nil, fmt.Errorf("scanning applied migrations: %w", err)
	}

	return applied, nil
}

// Version returns the highest applied version, or "" when the ledger is empty.
func (l *Ledger) Version(ctx context.Context) (string, error) {
	var version string

	err := l.pool.QueryRow(ctx,
		`SELECT version FROM schema_migrations ORDER BY version DESC LIMIT 1`,
	).Scan(&version)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", nil
		}

		return "", fmt.Errorf("querying schema version: %w", err)
	}

	return version, nil
}

// RecordTx inserts a ledger row within the caller's transaction, so the
// schema change and its record commit or roll back together. The primary
// key on version makes the insert fail for a second writer racing on the
// same migration.
func (l *Ledger) RecordTx(ctx context.Context, tx pgx.Tx, p RecordParams) error {
	_, err := tx.Exec(ctx,
		`INSERT INTO schema_migrations (version, name, checksum, duration_ms)
		 VALUES ($1, $2, $3, $4)`,
		p.Version, p.Name, p.Checksum, p.DurationMs,
	)
	if err != nil {
		return fmt.Errorf("recording migration %s: %w", p.Version, err)
	}

	return nil
}

// Record inserts a ledger row directly on the pool. Used only for
// migrations that cannot run inside a transaction block.
func (l *Ledger) Record(ctx context.Context, p RecordParams) error {
	_, err := l.pool.Exec(ctx,
		`INSERT INTO schema_migrations (version, name, checksum, duration_ms)
		 VALUES ($1, $2, $3, $4)`,
		p.Version, p.Name, p.Checksum, p.DurationMs,
	)
	if err != nil {
		return fmt.Errorf("recording migration %s: %w", p.Version, err)
	}

	return nil
}
