package migrate

import (
	"fmt"
	"io/fs"
	"os"
	"regexp"
	"strings"
)

// filenamePattern matches migration files in two formats:
//
//	{version}_{name}.sql   (e.g., 0001_initial.sql, 20220803154714_initial.sql)
//	V{version}_{name}.sql  (e.g., V0001_initial.sql)
//
// There are no down scripts: the schema history is forward-only.
var filenamePattern = regexp.MustCompile( //nolint:gochecknoglobals // compiled once, shared by sources
	`^V?(\d+)_(.+)\.sql$`,
)

// Source lists the full, ordered-by-nothing set of known migrations.
// The runner sorts and plans; a Source only discovers.
type Source interface {
	Load() ([]Migration, error)
}

// DirSource reads migrations from a filesystem directory.
type DirSource struct {
	Dir string
}

// Load scans the directory for migration files. Files that do not match
// the naming pattern are skipped. An unreadable directory is a discovery
// failure and wraps ErrDiscovery.
func (s DirSource) Load() ([]Migration, error) {
	entries, err := os.ReadDir(s.Dir)
	if err != nil {
		return nil, fmt.Errorf("%w: reading migrations directory %s: %w", ErrDiscovery, s.Dir, err)
	}

	var migrations []Migration

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}

		version, name, ok := parseFilename(entry.Name())
		if !ok {
			continue
		}

		path := s.Dir + string(os.PathSeparator) + entry.Name()

		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("%w: reading migration file %s: %w", ErrDiscovery, path, err)
		}

		migrations = append(migrations, newMigration(version, name, path, data))
	}

	return migrations, nil
}

// FSSource reads migrations from an fs.FS, typically an embedded bundle.
// Root is the directory within the filesystem holding the .sql files.
type FSSource struct {
	FS   fs.FS
	Root string
}

// Load scans the filesystem root for migration files.
func (s FSSource) Load() ([]Migration, error) {
	root := s.Root
	if root == "" {
		root = "."
	}

	entries, err := fs.ReadDir(s.FS, root)
	if err != nil {
		return nil, fmt.Errorf("%w: reading embedded migrations %s: %w", ErrDiscovery, root, err)
	}

	var migrations []Migration

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}

		version, name, ok := parseFilename(entry.Name())
		if !ok {
			continue
		}

		path := entry.Name()
		if root != "." {
			path = root + "/" + entry.Name()
		}

		data, err := fs.ReadFile(s.FS, path)
		if err != nil {
			return nil, fmt.Errorf("%w: reading embedded migration %s: %w", ErrDiscovery, path, err)
		}

		migrations = append(migrations, newMigration(version, name, path, data))
	}

	return migrations, nil
}

func parseFilename(filename string) (version, name string, ok bool) {
	matches := filenamePattern.FindStringSubmatch(filename)
	if matches == nil {
		return "", "", false
	}

	return matches[1], matches[2], true
}

func newMigration(version, name, path string, data []byte) Migration {
	sql := strings.TrimSpace(string(data))

	return Migration{
		Version:  version,
		Name:     name,
		SQL:      sql,
		Checksum: ComputeChecksum(sql),
		FilePath: path,
	}
}
