package rules

import (
	pg_query "github.com/pganalyze/pg_query_go/v6"

	"github.com/mfbotde/tracker/internal/analyzer"
)

// RenameRule detects RENAME TABLE and RENAME COLUMN statements, which
// break the ingest handlers and export queries that reference the old name.
type RenameRule struct{}

// NewRenameRule creates a new RenameRule.
func NewRenameRule() *RenameRule { return &RenameRule{} }

// ID returns the rule identifier.
func (r *RenameRule) ID() string { return "rename" }

// Check examines a statement for RENAME TABLE or RENAME COLUMN.
func (r *RenameRule) Check(stmt *pg_query.RawStmt, ctx *analyzer.RuleContext) []analyzer.Finding {
	node, ok := stmt.Stmt.Node.(*pg_query.Node_RenameStmt)
	if !ok {
		return nil
	}

	rename := node.RenameStmt
	if rename == nil {
		return nil
	}

	if rename.RenameType == pg_query.ObjectType_OBJECT_TABLE {
		return []analyzer.Finding{{
			Rule:       r.ID(),
			Severity:   analyzer.Medium,
			Table:      analyzer.TableName(rename.Relation),
			Message:    "RENAME TABLE breaks queries that reference the old name",
			Suggestion: "Stage it: add the new name as a view, update the code, then remove the old name",
			LockType:   "ACCESS EXCLUSIVE",
			StmtIndex:  ctx.StmtIndex,
		}}
	}

	if rename.RenameType == pg_query.ObjectType_OBJECT_COLUMN {
		return []analyzer.Finding{{
			Rule:       r.ID(),
			Severity:   analyzer.Medium,
			Table:      analyzer.TableName(rename.Relation),
			Message:    "RENAME COLUMN breaks queries that reference the old column name",
			Suggestion: "Stage it: add the new column, backfill, update the code, drop the old column",
			LockType:   "ACCESS EXCLUSIVE",
			StmtIndex:  ctx.StmtIndex,
		}}
	}

	return nil // RENAME INDEX and friends are safe
}
