// Package ingest exposes the tracker's HTTP surface: player report
// ingestion and crash report submission.
package ingest

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	json "github.com/goccy/go-json"
	"go.uber.org/zap"

	"github.com/mfbotde/tracker/internal/logging"
	"github.com/mfbotde/tracker/internal/metrics"
	"github.com/mfbotde/tracker/internal/store"
)

// PlayerStore is the persistence surface the handlers need.
type PlayerStore interface {
	InsertRawPlayers(ctx context.Context, players []store.RawPlayer) error
	InsertCrashReport(ctx context.Context, r store.CrashReport) error
}

// Handler serves the ingest endpoints.
type Handler struct {
	store    PlayerStore
	logger   *logging.Logger
	forumURL string
}

// NewHandler creates a Handler.
func NewHandler(s PlayerStore, logger *logging.Logger, forumURL string) *Handler {
	return &Handler{store: s, logger: logger, forumURL: forumURL}
}

// Root redirects browsers to the project forum.
func (h *Handler) Root(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, h.forumURL, http.StatusPermanentRedirect)
}

// Health reports liveness.
func (h *Handler) Health(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok")) //nolint:errcheck // best-effort body
}

// UpdatePlayers ingests a JSON array of player reports. Reports whose
// server URL cannot be parsed are skipped with a logged error; the rest
// of the batch is still stored.
func (h *Handler) UpdatePlayers(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	defer func() { metrics.IngestLatency.Observe(time.Since(start).Seconds()) }()

	var players []store.RawPlayer
	if err := json.NewDecoder(r.Body).Decode(&players); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	accepted := make([]store.RawPlayer, 0, len(players))

	for _, p := range players {
		server, err := normalizeServer(p.Server)
		if err != nil {
			h.logger.Error("could not parse server url", err, zap.String("server", p.Server))
			metrics.PlayersRejectedTotal.Inc()

			continue
		}

		p.Server = server
		accepted = append(accepted, p)
	}

	if err := h.store.InsertRawPlayers(r.Context(), accepted); err != nil {
		h.logger.Error("storing player reports", err)
		metrics.IngestErrorsTotal.Inc()
		http.Error(w, "storage failure", http.StatusInternalServerError)

		return
	}

	metrics.PlayersReportedTotal.Add(float64(len(accepted)))
	w.WriteHeader(http.StatusOK)
}

// Report ingests a single crash report.
func (h *Handler) Report(w http.ResponseWriter, r *http.Request) {
	var report store.CrashReport
	if err := json.NewDecoder(r.Body).Decode(&report); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	if err := h.store.InsertCrashReport(r.Context(), report); err != nil {
		h.logger.Error("storing crash report", err)
		metrics.IngestErrorsTotal.Inc()
		http.Error(w, "storage failure", http.StatusInternalServerError)

		return
	}

	metrics.CrashReportsTotal.Inc()
	w.WriteHeader(http.StatusOK)
}

// normalizeServer reduces a reported server URL to its bare host form,
// so the same server reported as "https://s1.sfgame.net/index.php" and
// "s1.sfgame.net" lands on one row.
func normalizeServer(raw string) (string, error) {
	trimmed := strings.TrimSpace(raw)
	if !strings.Contains(trimmed, "://") {
		trimmed = "https://" + trimmed
	}

	u, err := url.Parse(trimmed)
	if err != nil {
		return "", err
	}

	if u.Host == "" {
		return "", fmt.Errorf("no host in server url %q", raw)
	}

	return strings.ToLower(u.Host), nil
}
