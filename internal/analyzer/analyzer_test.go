package analyzer_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mfbotde/tracker/internal/analyzer"
	"github.com/mfbotde/tracker/internal/analyzer/rules"
	"github.com/mfbotde/tracker/internal/migrate"
)

func newAnalyzer() *analyzer.Analyzer {
	return analyzer.New(analyzer.WithRegistry(rules.NewDefaultRegistry()))
}

func TestAnalyzer_Analyze(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name            string
		sql             string
		wantMaxSeverity analyzer.Severity
		wantFindings    int
	}{
		{
			name:            "safe migration",
			sql:             "CREATE TABLE IF NOT EXISTS player (id BIGINT PRIMARY KEY, name TEXT NOT NULL);",
			wantMaxSeverity: analyzer.Safe,
			wantFindings:    0,
		},
		{
			name:            "non-concurrent index",
			sql:             "CREATE INDEX idx_player_info_time ON player_info (fetch_time);",
			wantMaxSeverity: analyzer.High,
			wantFindings:    2,
		},
		{
			name:            "drop table",
			sql:             "DROP TABLE IF EXISTS todo_hof_page;",
			wantMaxSeverity: analyzer.Critical,
			wantFindings:    1,
		},
		{
			name:            "column rename",
			sql:             "ALTER TABLE player_info RENAME COLUMN fetch_time TO fetched_at;",
			wantMaxSeverity: analyzer.Medium,
			wantFindings:    1,
		},
		{
			name:            "empty migration",
			sql:             "",
			wantMaxSeverity: analyzer.Safe,
			wantFindings:    0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			a := newAnalyzer()
			m := &migrate.Migration{Version: "0001", Name: "test", SQL: tt.sql}

			result, err := a.Analyze(m)
			require.NoError(t, err)

			assert.Equal(t, tt.wantMaxSeverity, result.MaxSeverity)
			assert.Len(t, result.Findings, tt.wantFindings)
			assert.Same(t, m, result.Migration)
		})
	}
}

func TestAnalyzer_Analyze_attachesStatementText(t *testing.T) {
	t.Parallel()

	a := newAnalyzer()
	m := &migrate.Migration{
		Version: "0001",
		Name:    "indexes",
		SQL: "CREATE TABLE IF NOT EXISTS player (id BIGINT PRIMARY KEY);\n" +
			"CREATE INDEX idx_player_id ON player (id);",
	}

	result, err := a.Analyze(m)
	require.NoError(t, err)
	require.NotEmpty(t, result.Findings)

	for _, f := range result.Findings {
		assert.Contains(t, f.Statement, "CREATE INDEX idx_player_id")
		assert.NotContains(t, f.Statement, "CREATE TABLE")
		assert.Equal(t, 1, f.StmtIndex)
	}
}

func TestAnalyzer_Analyze_truncatesLongStatements(t *testing.T) {
	t.Parallel()

	cols := "first_column_with_a_long_name"
	for r := 'b'; r <= 'h'; r++ {
		cols += ", " + string(r) + "_column_with_a_long_name"
	}

	a := newAnalyzer()
	m := &migrate.Migration{
		Version: "0001",
		Name:    "wide_index",
		SQL:     "CREATE INDEX idx_wide ON player (" + cols + ");",
	}

	result, err := a.Analyze(m)
	require.NoError(t, err)
	require.NotEmpty(t, result.Findings)

	assert.LessOrEqual(t, len(result.Findings[0].Statement), 120)
	assert.Contains(t, result.Findings[0].Statement, "...")
}

func TestAnalyzer_Analyze_parseError(t *testing.T) {
	t.Parallel()

	a := newAnalyzer()
	m := &migrate.Migration{Version: "0001", SQL: "CREATE TABEL broken (;"}

	_, err := a.Analyze(m)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "0001")
}

func TestAnalyzer_AnalyzeAll_detectsRedefinitionAcrossMigrations(t *testing.T) {
	t.Parallel()

	a := newAnalyzer()

	migrations := []migrate.Migration{
		{Version: "0004", Name: "equipment", SQL: "CREATE TABLE IF NOT EXISTS equipment (player_id BIGINT PRIMARY KEY, ident INTEGER);"},
		{Version: "0005", Name: "raw_player", SQL: "CREATE TABLE IF NOT EXISTS raw_player (id BIGSERIAL PRIMARY KEY);"},
		{Version: "0007", Name: "equipment_pk", SQL: "CREATE TABLE IF NOT EXISTS equipment (player_id BIGINT, ident INTEGER, PRIMARY KEY (player_id, ident));"},
	}

	results, err := a.AnalyzeAll(migrations)
	require.NoError(t, err)
	require.Len(t, results, 3)

	assert.Equal(t, analyzer.Safe, results[0].MaxSeverity)
	assert.Equal(t, analyzer.Safe, results[1].MaxSeverity)

	require.Len(t, results[2].Findings, 1)
	assert.Equal(t, analyzer.Critical, results[2].MaxSeverity)
	assert.Equal(t, "table-redefinition", results[2].Findings[0].Rule)
	assert.Contains(t, results[2].Findings[0].Message, "0004")
}

func TestAnalysisResult_HasHighOrCritical(t *testing.T) {
	t.Parallel()

	tests := []struct {
		severity analyzer.Severity
		want     bool
	}{
		{analyzer.Safe, false},
		{analyzer.Low, false},
		{analyzer.Medium, false},
		{analyzer.High, true},
		{analyzer.Critical, true},
	}

	for _, tt := range tests {
		r := analyzer.AnalysisResult{MaxSeverity: tt.severity}
		assert.Equal(t, tt.want, r.HasHighOrCritical(), tt.severity.String())
	}
}

func TestTruncateSQL(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "short", analyzer.TruncateSQL("short", 10))
	assert.Equal(t, "CREATE ...", analyzer.TruncateSQL("CREATE TABLE player (id INT);", 10))
}
