package migrate

import (
	"errors"
	"fmt"
)

// ErrDiscovery indicates the migration source could not be read.
var ErrDiscovery = errors.New("migration source unreadable")

// ErrOutOfOrder indicates the recorded history does not line up with the
// supplied migration set: an applied version is missing from the set, or
// an unapplied version sorts below one that is already applied. The runner
// refuses to guess and halts.
var ErrOutOfOrder = errors.New("migration history out of order")

// ErrChecksumMismatch indicates an applied migration's file content has
// changed since it was recorded. Applied migrations are immutable; this is
// schema drift and must be resolved manually.
var ErrChecksumMismatch = errors.New("migration checksum mismatch")

// MigrationError wraps a failure while executing a single migration,
// carrying the version of the migration that failed.
type MigrationError struct {
	Version string
	Err     error
}

func (e *MigrationError) Error() string {
	return fmt.Sprintf("migration %s failed: %v", e.Version, e.Err)
}

func (e *MigrationError) Unwrap() error {
	return e.Err
}
