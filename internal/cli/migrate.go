package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"

	"github.com/mfbotde/tracker/internal/analyzer"
	"github.com/mfbotde/tracker/internal/analyzer/rules"
	"github.com/mfbotde/tracker/internal/config"
	"github.com/mfbotde/tracker/internal/database"
	"github.com/mfbotde/tracker/internal/ledger"
	"github.com/mfbotde/tracker/internal/metrics"
	"github.com/mfbotde/tracker/internal/migrate"
	"github.com/mfbotde/tracker/internal/schema"
)

// errDangerousMigrations is returned when migrate is blocked by high/critical findings.
var errDangerousMigrations = errors.New("migrate aborted: dangerous migrations detected (use --force to override)")

// errDatabaseURLRequired is returned when no database URL is configured.
var errDatabaseURLRequired = errors.New(
	"database URL is required (set --database-url, TRACKER_DATABASE_URL, or database_url in config)",
)

var migrateCmd = &cobra.Command{ //nolint:gochecknoglobals // standard Cobra pattern
	Use:   "migrate",
	Short: "Apply pending schema migrations",
	Long: `Apply pending schema migrations from the embedded bundle or a
migrations directory. Runs are serialized on an advisory lock; each
migration and its ledger row commit atomically.`,
	RunE: runMigrate,
}

func init() { //nolint:gochecknoinits // standard Cobra pattern for flag registration
	migrateCmd.Flags().Bool("dry-run", false, "show what would be applied without executing")
	migrateCmd.Flags().Bool("force", false, "skip the dangerous-DDL check")
	migrateCmd.Flags().Duration("lock-timeout", 0, "override lock timeout (e.g., 10s, 1m)")
	migrateCmd.Flags().Duration("statement-timeout", 0, "override statement timeout (e.g., 30s, 5m)")
	rootCmd.AddCommand(migrateCmd)
}

func runMigrate(cmd *cobra.Command, _ []string) error {
	cfg := AppConfig

	if cfg.DatabaseURL == "" {
		return errDatabaseURLRequired
	}

	dryRun, _ := cmd.Flags().GetBool("dry-run")
	force, _ := cmd.Flags().GetBool("force")

	lockTimeout := cfg.LockTimeout
	if cmd.Flags().Changed("lock-timeout") {
		lockTimeout, _ = cmd.Flags().GetDuration("lock-timeout")
	}

	stmtTimeout := cfg.StatementTimeout
	if cmd.Flags().Changed("statement-timeout") {
		stmtTimeout, _ = cmd.Flags().GetDuration("statement-timeout")
	}

	source := migrationSource(cfg)

	if !force && !dryRun {
		if blocked, analyzeErr := checkDangerousMigrations(cmd, source, cfg); analyzeErr != nil {
			return analyzeErr
		} else if blocked {
			return errDangerousMigrations
		}
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	pool, err := connectDB(ctx, cfg, cmd.OutOrStdout())
	if err != nil {
		return err
	}
	defer pool.Close()

	return runMigrations(ctx, cmd.OutOrStdout(), pool, source, migrateOpts{
		lockTimeout: lockTimeout,
		stmtTimeout: stmtTimeout,
		dryRun:      dryRun,
	})
}

type migrateOpts struct {
	lockTimeout time.Duration
	stmtTimeout time.Duration
	dryRun      bool
}

// migrationSource picks the directory named in config, or the embedded
// domain bundle when none is set.
func migrationSource(cfg *config.Config) migrate.Source {
	if cfg.MigrationsDir != "" {
		return migrate.DirSource{Dir: cfg.MigrationsDir}
	}

	return schema.Source()
}

func connectDB(ctx context.Context, cfg *config.Config, out io.Writer) (*pgxpool.Pool, error) {
	fmt.Fprintf(out, "Connecting to %s\n", config.RedactURL(cfg.DatabaseURL))

	pool, err := database.NewPool(ctx, cfg.DatabaseURL, cfg.MaxConns)
	if err != nil {
		return nil, fmt.Errorf("connecting to database: %w", err)
	}

	return pool, nil
}

func runMigrations(
	ctx context.Context,
	out io.Writer,
	pool *pgxpool.Pool,
	source migrate.Source,
	opts migrateOpts,
) error {
	runner := migrate.NewRunner(pool, ledger.New(pool), source,
		migrate.WithLockTimeout(opts.lockTimeout),
		migrate.WithStatementTimeout(opts.stmtTimeout),
		migrate.WithDryRun(opts.dryRun),
		migrate.WithProgressCallback(func(event migrate.ProgressEvent) {
			switch event.Status {
			case migrate.StatusStarting:
				fmt.Fprintf(out, "  Applying %s_%s ... ", event.Migration.Version, event.Migration.Name)
			case migrate.StatusCompleted:
				fmt.Fprintf(out, "done (%s)\n", event.Duration.Truncate(time.Millisecond))
				metrics.MigrationsAppliedTotal.Inc()
			case migrate.StatusSkipped:
				fmt.Fprintf(out, "  Would apply %s_%s\n", event.Migration.Version, event.Migration.Name)
			case migrate.StatusFailed:
				fmt.Fprintf(out, "FAILED\n")
				metrics.MigrationFailuresTotal.Inc()
			}
		}),
	)

	if opts.dryRun {
		fmt.Fprintln(out, "\n--- DRY RUN (no changes will be made) ---")
	}

	result, err := runner.Run(ctx)
	if err != nil {
		var me *migrate.MigrationError
		if errors.As(err, &me) {
			return fmt.Errorf("migration %s failed: %w", me.Version, me.Err)
		}

		return err
	}

	if opts.dryRun {
		fmt.Fprintln(out, "\nDry run complete.")
	} else {
		fmt.Fprintf(out, "\nMigrate complete: %d applied, schema version %s.\n",
			result.Applied, displayVersion(result.Version))
	}

	return nil
}

func displayVersion(v string) string {
	if v == "" {
		return "(none)"
	}

	return v
}

// checkDangerousMigrations runs the analyzer and returns true if a
// CRITICAL finding blocks the run.
func checkDangerousMigrations(cmd *cobra.Command, source migrate.Source, cfg *config.Config) (bool, error) {
	migrations, err := source.Load()
	if err != nil {
		return false, fmt.Errorf("loading migrations: %w", err)
	}

	if len(migrations) == 0 {
		return false, nil
	}

	a := analyzer.New(
		analyzer.WithRegistry(rules.NewDefaultRegistry()),
		analyzer.WithPGVersion(cfg.TargetPGVersion),
	)

	results, err := a.AnalyzeAll(migrate.Sort(migrations))
	if err != nil {
		return false, fmt.Errorf("analyzing migrations: %w", err)
	}

	// Only CRITICAL findings block the run. HIGH findings (e.g. a plain
	// CREATE INDEX) are printed but allowed: on a fresh database they are
	// harmless and the operator sees them either way.
	return printAnalysisResults(cmd, results) >= analyzer.Critical, nil
}
