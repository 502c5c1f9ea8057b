package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mfbotde/tracker/internal/analyzer"
	"github.com/mfbotde/tracker/internal/analyzer/rules"
	"github.com/mfbotde/tracker/internal/migrate"
)

var analyzeCmd = &cobra.Command{ //nolint:gochecknoglobals // standard Cobra pattern
	Use:   "analyze [migration-dir]",
	Short: "Analyze migrations for dangerous operations",
	Long: `Analyze SQL migration files for dangerous DDL operations that could
cause table locks, downtime, or schema drift. Reports findings with
severity levels and suggests safe alternatives. Without a directory
argument the embedded bundle is analyzed.`,
	RunE: runAnalyze,
}

func init() { //nolint:gochecknoinits // standard Cobra pattern for flag registration
	analyzeCmd.Flags().Bool("fail-on-high", false, "exit with non-zero code if high/critical findings exist")
	rootCmd.AddCommand(analyzeCmd)
}

// errHighSeverityFindings is returned when --fail-on-high is set and high/critical findings exist.
var errHighSeverityFindings = errors.New("high or critical severity findings detected")

func runAnalyze(cmd *cobra.Command, args []string) error {
	source := migrationSource(AppConfig)
	if len(args) > 0 {
		source = migrate.DirSource{Dir: args[0]}
	}

	migrations, err := source.Load()
	if err != nil {
		return fmt.Errorf("loading migrations: %w", err)
	}

	if len(migrations) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No migration files found.")
		return nil
	}

	a := analyzer.New(
		analyzer.WithRegistry(rules.NewDefaultRegistry()),
		analyzer.WithPGVersion(AppConfig.TargetPGVersion),
	)

	results, err := a.AnalyzeAll(migrate.Sort(migrations))
	if err != nil {
		return fmt.Errorf("analyzing migrations: %w", err)
	}

	maxSeverity := printAnalysisResults(cmd, results)

	failOnHigh, _ := cmd.Flags().GetBool("fail-on-high")
	if failOnHigh && maxSeverity >= analyzer.High {
		return errHighSeverityFindings
	}

	return nil
}

// printAnalysisResults writes findings to the command output and returns
// the highest severity seen.
func printAnalysisResults(cmd *cobra.Command, results []analyzer.AnalysisResult) analyzer.Severity {
	out := cmd.OutOrStdout()
	totalFindings := 0
	maxSeverity := analyzer.Safe

	for _, r := range results {
		if len(r.Findings) == 0 {
			continue
		}

		fmt.Fprintf(out, "\n=== %s_%s ===\n", r.Migration.Version, r.Migration.Name)

		for _, f := range r.Findings {
			fmt.Fprintf(out, "  [%s] %s\n", f.Severity, f.Message)
			fmt.Fprintf(out, "    Table: %s\n", f.Table)
			fmt.Fprintf(out, "    Rule:  %s\n", f.Rule)

			if f.Statement != "" {
				fmt.Fprintf(out, "    SQL:   %s\n", f.Statement)
			}

			fmt.Fprintf(out, "    Fix:   %s\n\n", f.Suggestion)
		}

		totalFindings += len(r.Findings)

		if r.MaxSeverity > maxSeverity {
			maxSeverity = r.MaxSeverity
		}
	}

	if totalFindings == 0 {
		fmt.Fprintln(out, "No dangerous operations detected.")
	} else {
		fmt.Fprintf(out, "Found %d finding(s) across %d migration(s).\n",
			totalFindings, countMigrationsWithFindings(results))
	}

	return maxSeverity
}

func countMigrationsWithFindings(results []analyzer.AnalysisResult) int {
	count := 0

	for _, r := range results {
		if len(r.Findings) > 0 {
			count++
		}
	}

	return count
}
