package httptransport

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"intake/internal/platform/metrics"
	"intake/internal/platform/middleware"
)

// RouterConfig carries the cross-cutting dependencies of the router.
type RouterConfig struct {
	Logger   *slog.Logger
	Metrics  *metrics.Metrics
	Verifier middleware.SessionVerifier
	// DevMode disables session-token verification for local development.
	DevMode bool
}

// NewRouter assembles the full HTTP surface: operational endpoints at the
// root, the intake API under /api/v1 behind session-token auth.
func NewRouter(h *Handler, cfg RouterConfig) http.Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r := chi.NewRouter()
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(logger))
	if cfg.Metrics != nil {
		r.Use(middleware.Latency(cfg.Metrics))
	}

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(api chi.Router) {
		if !cfg.DevMode {
			api.Use(middleware.RequireSession(cfg.Verifier, logger))
		}
		h.Register(api)
	})

	return r
}
