package schema_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mfbotde/tracker/internal/analyzer"
	"github.com/mfbotde/tracker/internal/analyzer/rules"
	"github.com/mfbotde/tracker/internal/migrate"
	"github.com/mfbotde/tracker/internal/schema"
)

func TestSource_loadsEmbeddedBundle(t *testing.T) {
	t.Parallel()

	migrations, err := schema.Source().Load()
	require.NoError(t, err)
	require.NotEmpty(t, migrations)

	sorted := migrate.Sort(migrations)

	assert.Equal(t, "0001", sorted[0].Version)
	assert.Equal(t, "initial", sorted[0].Name)

	seen := make(map[string]struct{}, len(sorted))
	for _, m := range sorted {
		_, dup := seen[m.Version]
		assert.False(t, dup, "duplicate version %s", m.Version)
		seen[m.Version] = struct{}{}

		assert.NotEmpty(t, m.SQL, "migration %s is empty", m.Version)
		assert.Equal(t, migrate.ComputeChecksum(m.SQL), m.Checksum)
	}
}

// The shipped bundle must never trip its own analyzer: all DDL is
// idempotent and no table is redefined across revisions.
func TestSource_bundlePassesAnalysis(t *testing.T) {
	t.Parallel()

	migrations, err := schema.Source().Load()
	require.NoError(t, err)

	a := analyzer.New(analyzer.WithRegistry(rules.NewDefaultRegistry()))

	results, err := a.AnalyzeAll(migrate.Sort(migrations))
	require.NoError(t, err)

	for _, r := range results {
		for _, f := range r.Findings {
			assert.NotEqual(t, analyzer.Critical, f.Severity,
				"migration %s: %s", r.Migration.Version, f.Message)
		}
	}
}
