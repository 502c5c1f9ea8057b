package migrate

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
)

// Migration is a single forward-only schema change. The history is an
// append-only log: once applied, a migration's file must never be edited
// or removed.
type Migration struct {
	Version  string // "0004" or "20220803154714", extracted from filename
	Name     string // "equipment", extracted from filename
	SQL      string // file contents, trimmed
	Checksum string // SHA-256 hex digest of SQL
	FilePath string // path of the .sql file within its source
}

// ComputeChecksum returns the SHA-256 hex digest of the given SQL string.
func ComputeChecksum(sql string) string {
	h := sha256.Sum256([]byte(sql))

	return hex.EncodeToString(h[:])
}

// Sort returns a new slice of migrations sorted by Version in lexicographic
// order. Version prefixes must be consistently padded for this to match
// numeric order. The sort is stable to preserve insertion order for equal
// versions.
func Sort(migrations []Migration) []Migration {
	sorted := make([]Migration, len(migrations))
	copy(sorted, migrations)

	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Version < sorted[j].Version
	})

	return sorted
}
