package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Deps is everything the router needs. Ledger is required; the rest fall back
// to process defaults.
type Deps struct {
	Ledger      Ledger
	Metrics     HTTPObserver
	Gatherer    prometheus.Gatherer
	Logger      *slog.Logger
	CORSOrigins []string
}

// NewRouter constructs a chi router with all API endpoints registered.
func NewRouter(d Deps) http.Handler {
	if d.Logger == nil {
		d.Logger = slog.Default()
	}

	if d.Gatherer == nil {
		d.Gatherer = prometheus.DefaultGatherer
	}

	if len(d.CORSOrigins) == 0 {
		d.CORSOrigins = []string{"*"}
	}

	h := NewHandler(d.Ledger, d.Logger)
	r := chi.NewRouter()

	r.Use(requestID)
	r.Use(instrument(d.Logger, d.Metrics))
	r.Use(chimw.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: d.CORSOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPatch, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", requestIDHeader},
		ExposedHeaders: []string{requestIDHeader},
	}))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.HandlerFor(d.Gatherer, promhttp.HandlerOpts{}))

	r.Get("/point/{userId}", h.GetBalanceHandler)
	r.Get("/point/{userId}/histories", h.GetHistoryHandler)
	r.Get("/point/{userId}/audit", h.AuditHandler)
	r.Patch("/point/{userId}/charge", h.ChargeHandler)
	r.Patch("/point/{userId}/use", h.UseHandler)

	return r
}
