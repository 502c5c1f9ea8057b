package ingest

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mfbotde/tracker/internal/logging"
)

// NewRouter builds the ingest HTTP router.
func NewRouter(h *Handler, logger *logging.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.Recoverer)
	r.Use(RequestLogger(logger))

	r.Get("/", h.Root)
	r.Get("/health", h.Health)
	r.Handle("/metrics", promhttp.Handler())
	r.Post("/updatePlayers", h.UpdatePlayers)
	r.Post("/report", h.Report)

	return r
}
