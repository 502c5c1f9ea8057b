// Package metrics defines the tracker's Prometheus instrumentation.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Ingest metrics.
	PlayersReportedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tracker_players_reported_total",
		Help: "The total number of player reports accepted via /updatePlayers",
	})
	PlayersRejectedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tracker_players_rejected_total",
		Help: "The total number of player reports dropped for unparseable server URLs",
	})
	CrashReportsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tracker_crash_reports_total",
		Help: "The total number of crash reports accepted via /report",
	})
	IngestErrorsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tracker_ingest_errors_total",
		Help: "The total number of errors while persisting ingested reports",
	})
	IngestLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "tracker_ingest_latency_seconds",
		Help:    "Latency of ingest request handling",
		Buckets: prometheus.DefBuckets,
	})

	// Migration metrics.
	MigrationsAppliedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tracker_migrations_applied_total",
		Help: "The total number of schema migrations applied",
	})
	MigrationFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tracker_migration_failures_total",
		Help: "The total number of schema migrations that failed",
	})

	// Backfill metrics.
	BackfillBatchesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tracker_backfill_batches_total",
		Help: "The total number of backfill batches posted",
	})
	BackfillErrorsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tracker_backfill_errors_total",
		Help: "The total number of backfill batches that failed",
	})
)
