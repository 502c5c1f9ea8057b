package rules_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mfbotde/tracker/internal/analyzer"
	"github.com/mfbotde/tracker/internal/analyzer/rules"
	"github.com/mfbotde/tracker/internal/parser"
)

func TestCreateIndexRule_ID(t *testing.T) {
	t.Parallel()

	rule := rules.NewCreateIndexRule()
	assert.Equal(t, "create-index", rule.ID())
}

func TestCreateIndexRule_Check(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name           string
		sql            string
		wantCount      int
		wantSeverities []analyzer.Severity
		wantTable      string
	}{
		{
			name:           "plain CREATE INDEX is HIGH plus LOW idempotence finding",
			sql:            "CREATE INDEX idx_player_server ON player (server_id);",
			wantCount:      2,
			wantSeverities: []analyzer.Severity{analyzer.High, analyzer.Low},
			wantTable:      "player",
		},
		{
			name:           "CONCURRENTLY without IF NOT EXISTS only flags idempotence",
			sql:            "CREATE INDEX CONCURRENTLY idx_player_server ON player (server_id);",
			wantCount:      1,
			wantSeverities: []analyzer.Severity{analyzer.Low},
			wantTable:      "player",
		},
		{
			name:      "CONCURRENTLY with IF NOT EXISTS is clean",
			sql:       "CREATE INDEX CONCURRENTLY IF NOT EXISTS idx_player_server ON player (server_id);",
			wantCount: 0,
		},
		{
			name:      "non-index statement ignored",
			sql:       "CREATE TABLE IF NOT EXISTS player (id INT);",
			wantCount: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			rule := rules.NewCreateIndexRule()

			result, err := parser.Parse(tt.sql)
			require.NoError(t, err)
			require.Len(t, result.Stmts, 1)

			ctx := &analyzer.RuleContext{
				TargetPGVersion: 14, //nolint:mnd // test default
				StmtIndex:       0,
			}

			findings := rule.Check(result.Stmts[0], ctx)
			require.Len(t, findings, tt.wantCount)

			for i, f := range findings {
				assert.Equal(t, tt.wantSeverities[i], f.Severity)
				assert.Equal(t, rule.ID(), f.Rule)
				assert.Equal(t, tt.wantTable, f.Table)
			}
		})
	}
}
