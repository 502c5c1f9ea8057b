package migrate

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mfbotde/tracker/internal/database"
	"github.com/mfbotde/tracker/internal/ledger"
)

// Progress status constants reported via ProgressEvent.
const (
	StatusStarting  = "starting"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
	StatusSkipped   = "skipped"
)

// ProgressEvent is emitted by the runner for each migration processed.
type ProgressEvent struct {
	Migration *Migration
	Status    string
	Duration  time.Duration
	Error     error
}

// Result summarizes a completed run.
type Result struct {
	Applied int    // number of migrations applied by this run
	Version string // highest applied version after the run, "" when empty
}

// MigrationLedger abstracts schema_migrations operations for testability.
type MigrationLedger interface {
	EnsureTable(ctx context.Context) error
	Applied(ctx context.Context) ([]ledger.AppliedMigration, error)
	Version(ctx context.Context) (string, error)
	RecordTx(ctx context.Context, tx pgx.Tx, p ledger.RecordParams) error
	Record(ctx context.Context, p ledger.RecordParams) error
}

// lockReleaser is returned by lockFunc and must be released when done.
type lockReleaser interface {
	Release(ctx context.Context) error
}

// lockFunc acquires an advisory lock and returns a releaser.
type lockFunc func(ctx context.Context) (lockReleaser, error)

// execFunc executes and records a single pending migration.
type execFunc func(ctx context.Context, m *Migration) error

// Runner brings a database from its recorded schema state to the latest
// known state. Runs serialize on a session-level advisory lock; each
// migration's DDL and ledger row commit in one transaction, so a failure
// rolls both back and a retry is safe. The first failure halts the run:
// later migrations are never attempted on top of a known-bad state.
type Runner struct {
	pool             *pgxpool.Pool
	ledger           MigrationLedger
	source           Source
	lockTimeout      time.Duration
	statementTimeout time.Duration
	dryRun           bool
	onProgress       func(ProgressEvent)
	acquireLock      lockFunc
	execOne          execFunc
}

// Option configures a Runner.
type Option func(*Runner)

// WithLockTimeout sets the per-transaction lock_timeout.
func WithLockTimeout(d time.Duration) Option {
	return func(r *Runner) { r.lockTimeout = d }
}

// WithStatementTimeout sets the per-transaction statement_timeout.
func WithStatementTimeout(d time.Duration) Option {
	return func(r *Runner) { r.statementTimeout = d }
}

// WithDryRun enables dry-run mode where no SQL is executed.
func WithDryRun(b bool) Option {
	return func(r *Runner) { r.dryRun = b }
}

// WithProgressCallback sets a function called for each migration processed.
func WithProgressCallback(fn func(ProgressEvent)) Option {
	return func(r *Runner) { r.onProgress = fn }
}

// NewRunner creates a Runner with the given pool, ledger, source, and options.
func NewRunner(pool *pgxpool.Pool, l MigrationLedger, source Source, opts ...Option) *Runner {
	r := &Runner{
		pool:   pool,
		ledger: l,
		source: source,
	}

	for _, opt := range opts {
		opt(r)
	}

	// Set defaults for injectable functions after options are applied,
	// so tests can override them.
	if r.acquireLock == nil {
		r.acquireLock = func(ctx context.Context) (lockReleaser, error) {
			return database.TryAcquireLock(ctx, r.pool)
		}
	}

	if r.execOne == nil {
		r.execOne = r.executeAndRecord
	}

	return r
}

// Run computes the pending plan and applies it strictly in increasing
// version order. Running with nothing pending is a no-op that succeeds.
func (r *Runner) Run(ctx context.Context) (Result, error) {
	lock, err := r.acquireLock(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("acquiring migration lock: %w", err)
	}
	defer lock.Release(ctx) //nolint:errcheck // best-effort release on return

	if err := r.ledger.EnsureTable(ctx); err != nil {
		return Result{}, err
	}

	pending, err := r.plan(ctx)
	if err != nil {
		return Result{}, err
	}

	applied := 0

	for i := range pending {
		if r.dryRun {
			r.fireProgress(ProgressEvent{Migration: &pending[i], Status: StatusSkipped})
			continue
		}

		if err := r.applyOne(ctx, &pending[i]); err != nil {
			return Result{Applied: applied}, err
		}

		applied++
	}

	version, err := r.ledger.Version(ctx)
	if err != nil {
		return Result{Applied: applied}, err
	}

	return Result{Applied: applied, Version: version}, nil
}

func (r *Runner) plan(ctx context.Context) ([]Migration, error) {
	available, err := r.source.Load()
	if err != nil {
		return nil, err
	}

	applied, err := r.ledger.Applied(ctx)
	if err != nil {
		return nil, err
	}

	return Plan(available, applied)
}

// applyOne executes one pending migration and fires progress events.
// A failure is wrapped in *MigrationError so callers can report the
// failing version.
func (r *Runner) applyOne(ctx context.Context, m *Migration) error {
	r.fireProgress(ProgressEvent{Migration: m, Status: StatusStarting})

	start := time.Now()
	execErr := r.execOne(ctx, m)
	duration := time.Since(start)

	if execErr != nil {
		r.fireProgress(ProgressEvent{
			Migration: m,
			Status:    StatusFailed,
			Duration:  duration,
			Error:     execErr,
		})

		return &MigrationError{Version: m.Version, Err: execErr}
	}

	r.fireProgress(ProgressEvent{
		Migration: m,
		Status:    StatusCompleted,
		Duration:  duration,
	})

	return nil
}

// executeAndRecord runs a migration's SQL and writes its ledger row in the
// same transaction. Migrations containing CREATE INDEX CONCURRENTLY cannot
// run in a transaction block; those execute on the pool and are recorded
// immediately after.
func (r *Runner) executeAndRecord(ctx context.Context, m *Migration) error {
	concurrent, err := containsConcurrentIndex(m.SQL)
	if err != nil {
		return err
	}

	start := time.Now()

	if concurrent {
		if err := ExecWithoutTransaction(ctx, r.pool, m.SQL); err != nil {
			return err
		}

		return r.ledger.Record(ctx, ledger.RecordParams{
			Version:    m.Version,
			Name:       m.Name,
			Checksum:   m.Checksum,
			DurationMs: int(time.Since(start).Milliseconds()),
		})
	}

	return ExecInTransaction(ctx, r.pool, func(tx pgx.Tx) error {
		if r.lockTimeout > 0 {
			if err := SetLockTimeout(ctx, tx, r.lockTimeout.Milliseconds()); err != nil {
				return err
			}
		}

		if r.statementTimeout > 0 {
			if err := SetStatementTimeout(ctx, tx, r.statementTimeout.Milliseconds()); err != nil {
				return err
			}
		}

		if _, err := tx.Exec(ctx, m.SQL); err != nil {
			return fmt.Errorf("executing SQL: %w", err)
		}

		return r.ledger.RecordTx(ctx, tx, ledger.RecordParams{
			Version:    m.Version,
			Name:       m.Name,
			Checksum:   m.Checksum,
			DurationMs: int(time.Since(start).Milliseconds()),
		})
	})
}

func (r *Runner) fireProgress(event ProgressEvent) {
	if r.onProgress != nil {
		r.onProgress(event)
	}
}
