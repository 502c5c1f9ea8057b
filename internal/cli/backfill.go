package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mfbotde/tracker/internal/backfill"
	"github.com/mfbotde/tracker/internal/logging"
	"github.com/mfbotde/tracker/internal/store"
)

// errEndpointRequired is returned when no backfill endpoint is configured.
var errEndpointRequired = errors.New(
	"backfill endpoint is required (set --endpoint, TRACKER_BACKFILL_ENDPOINT, or backfill.endpoint in config)",
)

var backfillCmd = &cobra.Command{ //nolint:gochecknoglobals // standard Cobra pattern
	Use:   "backfill",
	Short: "Re-post stored player snapshots to a tracker endpoint",
	Long: `Export every stored player snapshot, decompress its payload, and
POST the reports in batches to an ingest endpoint.`,
	RunE: runBackfill,
}

func init() { //nolint:gochecknoinits // standard Cobra pattern for flag registration
	backfillCmd.Flags().String("endpoint", "", "target /updatePlayers URL")
	backfillCmd.Flags().Int("batch-size", 0, "players per request")
	backfillCmd.Flags().Int("concurrency", 0, "maximum in-flight requests")
	rootCmd.AddCommand(backfillCmd)
}

func runBackfill(cmd *cobra.Command, _ []string) error {
	cfg := AppConfig

	if cfg.DatabaseURL == "" {
		return errDatabaseURLRequired
	}

	bf := cfg.Backfill
	if cmd.Flags().Changed("endpoint") {
		bf.Endpoint, _ = cmd.Flags().GetString("endpoint")
	}

	if cmd.Flags().Changed("batch-size") {
		bf.BatchSize, _ = cmd.Flags().GetInt("batch-size")
	}

	if cmd.Flags().Changed("concurrency") {
		bf.Concurrency, _ = cmd.Flags().GetInt("concurrency")
	}

	if bf.Endpoint == "" {
		return errEndpointRequired
	}

	logger, err := logging.New(logging.Config{
		Level:       cfg.LogLevel,
		Environment: cfg.Environment,
		Service:     "tracker-backfill",
	})
	if err != nil {
		return fmt.Errorf("creating logger: %w", err)
	}
	defer logger.Sync() //nolint:errcheck // stderr sync failure is unactionable

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	pool, err := connectDB(ctx, cfg, cmd.OutOrStdout())
	if err != nil {
		return err
	}
	defer pool.Close()

	poster := backfill.NewPoster(store.New(pool, logger), nil, logger, backfill.Config{
		Endpoint:    bf.Endpoint,
		BatchSize:   bf.BatchSize,
		Concurrency: bf.Concurrency,
	})

	stats, err := poster.Run(ctx)
	if err != nil {
		return fmt.Errorf("backfill: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Backfill complete: %d players in %d batch(es), %d failed.\n",
		stats.Players, stats.Batches, stats.Failed)

	return nil
}
