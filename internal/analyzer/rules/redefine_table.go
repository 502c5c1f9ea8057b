package rules

import (
	pg_query "github.com/pganalyze/pg_query_go/v6"

	"github.com/mfbotde/tracker/internal/analyzer"
)

// RedefineTableRule detects a CREATE TABLE for a name already created by an
// earlier migration in the same set. The tracker's history once redefined
// the equipment table with a different primary key across revisions, which
// silently forks the schema depending on which migrations a database has
// seen. The rule is stateful across a run and must come from a fresh
// registry each time.
type RedefineTableRule struct {
	// firstSeen maps table name to the migration version that created it.
	firstSeen map[string]string
}

// NewRedefineTableRule creates a new RedefineTableRule.
func NewRedefineTableRule() *RedefineTableRule {
	return &RedefineTableRule{firstSeen: make(map[string]string)}
}

// ID returns the rule identifier.
func (r *RedefineTableRule) ID() string { return "table-redefinition" }

// Check examines a CREATE TABLE statement against tables created earlier
// in the analyzed set.
func (r *RedefineTableRule) Check(stmt *pg_query.RawStmt, ctx *analyzer.RuleContext) []analyzer.Finding {
	node, ok := stmt.Stmt.Node.(*pg_query.Node_CreateStmt)
	if !ok {
		return nil
	}

	create := node.CreateStmt
	if create == nil || create.Relation == nil {
		return nil
	}

	table := analyzer.TableName(create.Relation)

	version := ""
	if ctx.Migration != nil {
		version = ctx.Migration.Version
	}

	first, seen := r.firstSeen[table]
	if !seen {
		r.firstSeen[table] = version

		if create.IfNotExists {
			return nil
		}

		return []analyzer.Finding{{
			Rule:       r.ID(),
			Severity:   analyzer.Low,
			Table:      table,
			Message:    "CREATE TABLE without IF NOT EXISTS fails if the table already exists",
			Suggestion: "Use CREATE TABLE IF NOT EXISTS so the migration stays idempotent",
			LockType:   "ACCESS EXCLUSIVE",
			StmtIndex:  ctx.StmtIndex,
		}}
	}

	// Redefinition. With IF NOT EXISTS the second definition is silently
	// ignored on databases that already have the first one, so databases
	// replaying different prefixes of history end up with different
	// schemas for the same table.
	return []analyzer.Finding{{
		Rule:     r.ID(),
		Severity: analyzer.Critical,
		Table:    table,
		Message: "table is redefined; it was already created by migration " + first +
			" and the definitions may disagree",
		Suggestion: "Never redefine a table in a later migration; use ALTER TABLE to evolve it",
		LockType:   "ACCESS EXCLUSIVE",
		StmtIndex:  ctx.StmtIndex,
	}}
}
