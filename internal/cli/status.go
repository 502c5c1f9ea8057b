package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mfbotde/tracker/internal/ledger"
	"github.com/mfbotde/tracker/internal/migrate"
)

var statusCmd = &cobra.Command{ //nolint:gochecknoglobals // standard Cobra pattern
	Use:   "status",
	Short: "Show schema version and pending migrations",
	RunE:  runStatus,
}

func init() { //nolint:gochecknoinits // standard Cobra pattern for flag registration
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, _ []string) error {
	cfg := AppConfig

	if cfg.DatabaseURL == "" {
		return errDatabaseURLRequired
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

	l := ledger.New(pool)
	if err := l.EnsureTable(ctx); err != nil {
		return err
	}

	applied, err := l.Applied(ctx)
	if err != nil {
		return err
	}

	available, err := migrationSource(cfg).Load()
	if err != nil {
		return fmt.Errorf("loading migrations: %w", err)
	}

	pending, err := migrate.Plan(available, applied)
	if err != nil {
		return err
	}

	currentVersion, err := l.Version(ctx)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()

	fmt.Fprintf(out, "Schema version: %s\n", displayVersion(currentVersion))
	fmt.Fprintf(out, "Applied: %d\n", len(applied))
	fmt.Fprintf(out, "Pending: %d\n", len(pending))

	for _, m := range pending {
		fmt.Fprintf(out, "  %s_%s\n", m.Version, m.Name)
	}

	return nil
}
