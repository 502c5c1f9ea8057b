package rules

import (
	pg_query "github.com/pganalyze/pg_query_go/v6"

	"github.com/mfbotde/tracker/internal/analyzer"
)

// CreateIndexRule detects CREATE INDEX statements that either lock the
// table (missing CONCURRENTLY) or are not idempotent (missing IF NOT
// EXISTS). Both patterns appear in the tracker's own migration history.
type CreateIndexRule struct{}

// NewCreateIndexRule creates a new CreateIndexRule.
func NewCreateIndexRule() *CreateIndexRule { return &CreateIndexRule{} }

// ID returns the rule identifier.
func (r *CreateIndexRule) ID() string { return "create-index" }

// Check examines a CREATE INDEX statement.
func (r *CreateIndexRule) Check(stmt *pg_query.RawStmt, ctx *analyzer.RuleContext) []analyzer.Finding {
	node, ok := stmt.Stmt.Node.(*pg_query.Node_IndexStmt)
	if !ok {
		return nil
	}

	idx := node.IndexStmt

	var findings []analyzer.Finding

	if !idx.Concurrent {
		findings = append(findings, analyzer.Finding{
			Rule:       r.ID(),
			Severity:   analyzer.High,
			Table:      analyzer.TableName(idx.Relation),
			Message:    "CREATE INDEX without CONCURRENTLY locks the table for writes",
			Suggestion: "Use CREATE INDEX CONCURRENTLY to avoid blocking report ingestion during index creation",
			LockType:   "SHARE",
			StmtIndex:  ctx.StmtIndex,
		})
	}

	if !idx.IfNotExists {
		findings = append(findings, analyzer.Finding{
			Rule:       r.ID(),
			Severity:   analyzer.Low,
			Table:      analyzer.TableName(idx.Relation),
			Message:    "CREATE INDEX without IF NOT EXISTS fails if the index already exists",
			Suggestion: "Use CREATE INDEX IF NOT EXISTS so re-running the migration set stays safe",
			LockType:   "SHARE",
			StmtIndex:  ctx.StmtIndex,
		})
	}

	return findings
}
