package migrate

import (
	"fmt"

	"github.com/mfbotde/tracker/internal/ledger"
)

// Plan compares the ledger's applied set against the full migration set and
// returns the ordered subset still pending. It fails rather than guess when
// the history has been altered:
//
//   - an applied version missing from the set means a migration file was
//     removed or renamed after being applied
//   - a pending version sorting below an applied one means a migration was
//     inserted into already-applied history
//   - an applied version whose file checksum changed means the file was
//     edited after being applied
func Plan(available []Migration, applied []ledger.AppliedMigration) ([]Migration, error) {
	sorted := Sort(available)

	byVersion := make(map[string]*Migration, len(sorted))
	for i := range sorted {
		byVersion[sorted[i].Version] = &sorted[i]
	}

	maxApplied := ""

	for _, a := range applied {
		m, ok := byVersion[a.Version]
		if !ok {
			return nil, fmt.Errorf(
				"%w: applied migration %s is missing from the migration set",
				ErrOutOfOrder, a.Version,
			)
		}

		if m.Checksum != a.Checksum {
			return nil, fmt.Errorf(
				"%w: migration %s: recorded=%s computed=%s",
				ErrChecksumMismatch, a.Version, a.Checksum, m.Checksum,
			)
		}

		if a.Version > maxApplied {
			maxApplied = a.Version
		}
	}

	appliedSet := make(map[string]struct{}, len(applied))
	for _, a := range applied {
		appliedSet[a.Version] = struct{}{}
	}

	var pending []Migration

	for _, m := range sorted {
		if _, ok := appliedSet[m.Version]; ok {
			continue
		}

		if m.Version < maxApplied {
			return nil, fmt.Errorf(
				"%w: unapplied migration %s sorts before applied migration %s",
				ErrOutOfOrder, m.Version, maxApplied,
			)
		}

		pending = append(pending, m)
	}

	return pending, nil
}
