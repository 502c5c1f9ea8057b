package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/mfbotde/tracker/internal/ingest"
	"github.com/mfbotde/tracker/internal/ledger"
	"github.com/mfbotde/tracker/internal/logging"
	"github.com/mfbotde/tracker/internal/migrate"
	"github.com/mfbotde/tracker/internal/store"
)

const shutdownGrace = 10 * time.Second

var serveCmd = &cobra.Command{ //nolint:gochecknoglobals // standard Cobra pattern
	Use:   "serve",
	Short: "Run the report ingest HTTP server",
	Long: `Run the ingest server. Pending schema migrations are applied at
startup before the listener opens, so a fresh database is usable
without a separate migrate step.`,
	RunE: runServe,
}

func init() { //nolint:gochecknoinits // standard Cobra pattern for flag registration
	serveCmd.Flags().Bool("skip-migrations", false, "do not apply pending migrations at startup")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg := AppConfig

	if cfg.DatabaseURL == "" {
		return errDatabaseURLRequired
	}

	logger, err := logging.New(logging.Config{
		Level:       cfg.LogLevel,
		Environment: cfg.Environment,
		Service:     "tracker",
	})
	if err != nil {
		return fmt.Errorf("creating logger: %w", err)
	}
	defer logger.Sync() //nolint:errcheck // stderr sync failure is unactionable

	baseCtx := cmd.Context()
	if baseCtx == nil {
		baseCtx = context.Background()
	}

	ctx, stop := signal.NotifyContext(baseCtx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := connectDB(ctx, cfg, cmd.OutOrStdout())
	if err != nil {
		return err
	}
	defer pool.Close()

	skipMigrations, _ := cmd.Flags().GetBool("skip-migrations")
	if !skipMigrations {
		runner := migrate.NewRunner(pool, ledger.New(pool), migrationSource(cfg),
			migrate.WithLockTimeout(cfg.LockTimeout),
			migrate.WithStatementTimeout(cfg.StatementTimeout),
		)

		result, err := runner.Run(ctx)
		if err != nil {
			return fmt.Errorf("applying startup migrations: %w", err)
		}

		logger.Info("schema ready",
			zap.Int("applied", result.Applied),
			zap.String("version", result.Version))
	}

	handler := ingest.NewHandler(store.New(pool, logger), logger, cfg.ForumURL)

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           ingest.NewRouter(handler, logger),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)

	go func() {
		logger.Info("listening", zap.String("addr", cfg.ListenAddr))

		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("serving: %w", err)
	case <-ctx.Done():
	}

	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down: %w", err)
	}

	return nil
}
