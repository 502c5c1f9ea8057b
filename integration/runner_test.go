//go:build integration

package integration

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mfbotde/tracker/internal/database"
	"github.com/mfbotde/tracker/internal/ledger"
	"github.com/mfbotde/tracker/internal/migrate"
)

func newRunner(pool *pgxpool.Pool, source migrate.Source, opts ...migrate.Option) *migrate.Runner {
	return migrate.NewRunner(pool, ledger.New(pool), source, opts...)
}

func tableExists(t *testing.T, pool *pgxpool.Pool, name string) bool {
	t.Helper()

	var exists bool

	err := pool.QueryRow(context.Background(),
		`SELECT EXISTS (SELECT 1 FROM information_schema.tables WHERE table_name = $1)`,
		name,
	).Scan(&exists)
	require.NoError(t, err)

	return exists
}

func ledgerVersions(t *testing.T, pool *pgxpool.Pool) []string {
	t.Helper()

	applied, err := ledger.New(pool).Applied(context.Background())
	require.NoError(t, err)

	versions := make([]string, 0, len(applied))
	for _, m := range applied {
		versions = append(versions, m.Version)
	}

	return versions
}

func TestRunner_appliesAllPending(t *testing.T) {
	t.Parallel()

	pool := SetupPostgres(t)
	ctx := context.Background()

	source := sliceSource{
		mig("0001", "players", `CREATE TABLE players (id BIGINT PRIMARY KEY, name TEXT NOT NULL)`),
		mig("0002", "guilds", `CREATE TABLE guilds (id BIGINT PRIMARY KEY, name TEXT NOT NULL)`),
	}

	var events []migrate.ProgressEvent

	runner := newRunner(pool, source, migrate.WithProgressCallback(func(e migrate.ProgressEvent) {
		events = append(events, e)
	}))

	result, err := runner.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, result.Applied)
	assert.Equal(t, "0002", result.Version)

	assert.True(t, tableExists(t, pool, "players"))
	assert.True(t, tableExists(t, pool, "guilds"))
	assert.Equal(t, []string{"0001", "0002"}, ledgerVersions(t, pool))

	require.Len(t, events, 4)
	assert.Equal(t, migrate.StatusStarting, events[0].Status)
	assert.Equal(t, migrate.StatusCompleted, events[1].Status)
	assert.Equal(t, "0001", events[1].Migration.Version)
	assert.Equal(t, migrate.StatusStarting, events[2].Status)
	assert.Equal(t, migrate.StatusCompleted, events[3].Status)
	assert.Equal(t, "0002", events[3].Migration.Version)
}

func TestRunner_secondRunIsNoop(t *testing.T) {
	t.Parallel()

	pool := SetupPostgres(t)
	ctx := context.Background()

	source := sliceSource{
		mig("0001", "players", `CREATE TABLE players (id BIGINT PRIMARY KEY)`),
	}

	runner := newRunner(pool, source)

	first, err := runner.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, first.Applied)

	second, err := runner.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, second.Applied)
	assert.Equal(t, "0001", second.Version)

	assert.Equal(t, []string{"0001"}, ledgerVersions(t, pool))
}

func TestRunner_editedMigration_checksumMismatch(t *testing.T) {
	t.Parallel()

	pool := SetupPostgres(t)
	ctx := context.Background()

	original := sliceSource{
		mig("0001", "players", `CREATE TABLE players (id BIGINT PRIMARY KEY)`),
	}

	_, err := newRunner(pool, original).Run(ctx)
	require.NoError(t, err)

	edited := sliceSource{
		mig("0001", "players", `CREATE TABLE players (id BIGINT PRIMARY KEY, name TEXT)`),
	}

	_, err = newRunner(pool, edited).Run(ctx)
	require.ErrorIs(t, err, migrate.ErrChecksumMismatch)
}

func TestRunner_missingAppliedMigration_outOfOrder(t *testing.T) {
	t.Parallel()

	pool := SetupPostgres(t)
	ctx := context.Background()

	source := sliceSource{
		mig("0001", "players", `CREATE TABLE players (id BIGINT PRIMARY KEY)`),
		mig("0002", "guilds", `CREATE TABLE guilds (id BIGINT PRIMARY KEY)`),
	}

	_, err := newRunner(pool, source).Run(ctx)
	require.NoError(t, err)

	// Drop 0002 from the set; its ledger row remains.
	_, err = newRunner(pool, source[:1]).Run(ctx)
	require.ErrorIs(t, err, migrate.ErrOutOfOrder)
}

func TestRunner_concurrentIndex_runsOutsideTransaction(t *testing.T) {
	t.Parallel()

	pool := SetupPostgres(t)
	ctx := context.Background()

	source := sliceSource{
		mig("0001", "players", `CREATE TABLE players (id BIGINT PRIMARY KEY, name TEXT NOT NULL)`),
		mig("0002", "players_name_idx", `CREATE INDEX CONCURRENTLY idx_players_name ON players (name)`),
	}

	result, err := newRunner(pool, source).Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, result.Applied)

	var exists bool

	err = pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM pg_indexes WHERE indexname = 'idx_players_name')`,
	).Scan(&exists)
	require.NoError(t, err)
	assert.True(t, exists)

	assert.Equal(t, []string{"0001", "0002"}, ledgerVersions(t, pool))
}

func TestRunner_dryRun_executesNothing(t *testing.T) {
	t.Parallel()

	pool := SetupPostgres(t)
	ctx := context.Background()

	source := sliceSource{
		mig("0001", "players", `CREATE TABLE players (id BIGINT PRIMARY KEY)`),
	}

	var skipped int

	runner := newRunner(pool, source,
		migrate.WithDryRun(true),
		migrate.WithProgressCallback(func(e migrate.ProgressEvent) {
			if e.Status == migrate.StatusSkipped {
				skipped++
			}
		}))

	result, err := runner.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, result.Applied)
	assert.Equal(t, 1, skipped)

	assert.False(t, tableExists(t, pool, "players"))
	assert.Empty(t, ledgerVersions(t, pool))
}

func TestRunner_heldLock_abortsRun(t *testing.T) {
	t.Parallel()

	pool := SetupPostgres(t)
	ctx := context.Background()

	handle, err := database.TryAcquireLock(ctx, pool)
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = handle.Release(context.Background())
	})

	source := sliceSource{
		mig("0001", "players", `CREATE TABLE players (id BIGINT PRIMARY KEY)`),
	}

	_, err = newRunner(pool, source).Run(ctx)
	require.ErrorIs(t, err, database.ErrLockNotAcquired)
	assert.False(t, tableExists(t, pool, "players"))
}

func TestRunner_lockReleasedAfterRun(t *testing.T) {
	t.Parallel()

	pool := SetupPostgres(t)
	ctx := context.Background()

	source := sliceSource{
		mig("0001", "players", `CREATE TABLE players (id BIGINT PRIMARY KEY)`),
	}

	_, err := newRunner(pool, source).Run(ctx)
	require.NoError(t, err)

	handle, err := database.TryAcquireLock(ctx, pool)
	require.NoError(t, err)
	require.NoError(t, handle.Release(ctx))
}

func TestRunner_failedMigration_rollsBackLedgerRow(t *testing.T) {
	t.Parallel()

	pool := SetupPostgres(t)
	ctx := context.Background()

	source := sliceSource{
		mig("0001", "players", `CREATE TABLE players (id BIGINT PRIMARY KEY)`),
		mig("0002", "broken", `ALTER TABLE nonexistent ADD COLUMN foo TEXT`),
		mig("0003", "guilds", `CREATE TABLE guilds (id BIGINT PRIMARY KEY)`),
	}

	result, err := newRunner(pool, source).Run(ctx)
	require.Error(t, err)

	var migErr *migrate.MigrationError

	require.True(t, errors.As(err, &migErr))
	assert.Equal(t, "0002", migErr.Version)
	assert.Equal(t, 1, result.Applied)

	// DDL and ledger row commit together, so the failed version leaves
	// no trace and later migrations are never attempted.
	assert.Equal(t, []string{"0001"}, ledgerVersions(t, pool))
	assert.False(t, tableExists(t, pool, "guilds"))
}

func TestRunner_failureThenFix_resumesFromFailedVersion(t *testing.T) {
	t.Parallel()

	pool := SetupPostgres(t)
	ctx := context.Background()

	broken := sliceSource{
		mig("0001", "players", `CREATE TABLE players (id BIGINT PRIMARY KEY)`),
		mig("0002", "broken", `ALTER TABLE nonexistent ADD COLUMN foo TEXT`),
	}

	_, err := newRunner(pool, broken).Run(ctx)
	require.Error(t, err)

	fixed := sliceSource{
		broken[0],
		mig("0002", "fixed", `ALTER TABLE players ADD COLUMN name TEXT`),
	}

	result, err := newRunner(pool, fixed).Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Applied)
	assert.Equal(t, []string{"0001", "0002"}, ledgerVersions(t, pool))
}

func TestRunner_emptySource_succeeds(t *testing.T) {
	t.Parallel()

	pool := SetupPostgres(t)

	result, err := newRunner(pool, sliceSource{}).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, result.Applied)
	assert.Equal(t, "", result.Version)
}
