package ledger

// createSchemaSQL is the DDL for the schema_migrations ledger table.
// No status column: history is forward-only, a row either exists or it
// does not.
const createSchemaSQL = `CREATE TABLE IF NOT EXISTS schema_migrations (
    version      TEXT PRIMARY KEY,
    name         TEXT NOT NULL,
    checksum     TEXT NOT NULL,
    applied_at   TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    duration_ms  INTEGER NOT NULL
)`
