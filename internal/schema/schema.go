// Package schema ships the tracker's domain migrations as an embedded
// bundle, so a deployed binary can bring a fresh database up to the
// current schema without any files on disk.
package schema

import (
	"embed"

	"github.com/mfbotde/tracker/internal/migrate"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Source returns the embedded migration bundle as a migrate.Source.
func Source() migrate.Source {
	return migrate.FSSource{FS: migrationsFS, Root: "migrations"}
}
