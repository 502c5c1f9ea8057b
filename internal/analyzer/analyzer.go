package analyzer

import (
	"fmt"

	"github.com/mfbotde/tracker/internal/migrate"
	"github.com/mfbotde/tracker/internal/parser"
)

// maxStatementLen caps the statement text attached to a finding; analyze
// output stays one line per SQL: entry.
const maxStatementLen = 120

// Option configures the Analyzer.
type Option func(*Analyzer)

// Analyzer runs registered rules against parsed migrations. Rules may keep
// state across a run (the redefinition rule does), so build a fresh
// registry per analysis.
type Analyzer struct {
	registry  *Registry
	parseFn   func(string) (*parser.ParseResult, error)
	pgVersion int
}

// New creates a new Analyzer with the given options.
func New(opts ...Option) *Analyzer {
	a := &Analyzer{
		registry:  NewRegistry(),
		parseFn:   parser.Parse,
		pgVersion: 14, //nolint:mnd // default PostgreSQL version
	}

	for _, opt := range opts {
		opt(a)
	}

	return a
}

// WithRegistry sets a custom rule registry.
func WithRegistry(r *Registry) Option {
	return func(a *Analyzer) { a.registry = r }
}

// WithPGVersion sets the target PostgreSQL version.
func WithPGVersion(v int) Option {
	return func(a *Analyzer) { a.pgVersion = v }
}

// WithParser overrides the SQL parser function (useful for testing).
func WithParser(fn func(string) (*parser.ParseResult, error)) Option {
	return func(a *Analyzer) { a.parseFn = fn }
}

// Analyze parses and analyzes a single migration, returning all findings.
func (a *Analyzer) Analyze(m *migrate.Migration) (*AnalysisResult, error) {
	result, err := a.parseFn(m.SQL)
	if err != nil {
		return nil, fmt.Errorf("parsing migration %s: %w", m.Version, err)
	}

	var findings []Finding

	maxSeverity := Safe

	for i, stmt := range result.Stmts {
		ctx := &RuleContext{
			Migration:       m,
			TargetPGVersion: a.pgVersion,
			StmtIndex:       i,
			SQL:             m.SQL,
		}

		stmtSQL := TruncateSQL(ExtractStmtSQL(result.Stmts, i, m.SQL), maxStatementLen)

		for _, rule := range a.registry.Rules() {
			fs := rule.Check(stmt, ctx)
			for j := range fs {
				if fs[j].Severity > maxSeverity {
					maxSeverity = fs[j].Severity
				}

				if fs[j].Statement == "" {
					fs[j].Statement = stmtSQL
				}
			}

			findings = append(findings, fs...)
		}
	}

	return &AnalysisResult{
		Migration:   m,
		Findings:    findings,
		MaxSeverity: maxSeverity,
	}, nil
}

// AnalyzeAll analyzes migrations in order and returns results for each.
// Order matters: cross-migration rules see earlier migrations first.
func (a *Analyzer) AnalyzeAll(migrations []migrate.Migration) ([]AnalysisResult, error) {
	results := make([]AnalysisResult, 0, len(migrations))

	for i := range migrations {
		r, err := a.Analyze(&migrations[i])
		if err != nil {
			return nil, err
		}

		results = append(results, *r)
	}

	return results, nil
}
