// Package httptransport assembles the public HTTP surface: middleware
// chain, health and metrics endpoints, and the feature handlers.
package httptransport

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"intake-gateway/internal/platform/metrics"
	"intake-gateway/internal/platform/middleware"
	"intake-gateway/internal/transport/http/shared"
)

// Registrar is a feature handler that mounts its routes on the router.
type Registrar interface {
	Register(r chi.Router)
}

// HealthCheck probes one backing dependency.
type HealthCheck struct {
	Name  string
	Probe func(ctx context.Context) error
}

// Config collects everything the router needs.
type Config struct {
	Logger    *slog.Logger
	Metrics   *metrics.Metrics
	Validator middleware.TokenValidator
	// Authenticated handlers mount behind RequireAuth.
	Authenticated []Registrar
	// Public handlers mount without auth (reference data).
	Public []Registrar
	Checks []HealthCheck
	// RequestTimeout bounds each request. Photo uploads ride the request
	// body, so this must stay generous.
	RequestTimeout time.Duration
}

// NewRouter builds the chi router with the standard middleware chain.
func NewRouter(cfg Config) http.Handler {
	if cfg.RequestTimeout == 0 {
		cfg.RequestTimeout = 60 * time.Second
	}

	r := chi.NewRouter()
	r.Use(middleware.Recovery(cfg.Logger))
	r.Use(middleware.RequestID)
	r.Use(middleware.ClientMetadata)
	r.Use(middleware.Logger(cfg.Logger))
	r.Use(middleware.Latency(cfg.Metrics))
	r.Use(middleware.Timeout(cfg.RequestTimeout))

	r.Get("/healthz", handleHealth(cfg.Checks))
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Group(func(r chi.Router) {
		for _, reg := range cfg.Public {
			reg.Register(r)
		}
	})

	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireAuth(cfg.Validator, cfg.Logger))
		for _, reg := range cfg.Authenticated {
			reg.Register(r)
		}
	})

	return r
}

type healthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

// handleHealth reports ok only when every registered probe passes. Probe
// failures name the dependency but not the underlying error.
func handleHealth(checks []HealthCheck) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		resp := healthResponse{Status: "ok", Checks: make(map[string]string, len(checks))}
		status := http.StatusOK
		for _, check := range checks {
			if err := check.Probe(ctx); err != nil {
				resp.Status = "degraded"
				resp.Checks[check.Name] = "down"
				status = http.StatusServiceUnavailable
				continue
			}
			resp.Checks[check.Name] = "ok"
		}
		shared.WriteJSON(w, status, resp)
	}
}
