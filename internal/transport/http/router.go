// Package httptransport assembles the public HTTP surface. Routes live with
// their modules; this package only adds the shared middleware chain and the
// operational endpoints.
package httptransport

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	platformmw "whozin/internal/platform/middleware"
	rlmiddleware "whozin/internal/ratelimit/middleware"
	"whozin/pkg/platform/httputil"
	"whozin/pkg/platform/middleware/metadata"
	"whozin/pkg/platform/middleware/request"
	"whozin/pkg/platform/middleware/requesttime"
)

const requestTimeout = 30 * time.Second

// Registrar mounts a module's routes.
type Registrar interface {
	Register(r chi.Router)
}

// HealthCheck reports whether a dependency is reachable.
type HealthCheck func(ctx context.Context) error

// Deps are the pieces NewRouter wires together.
type Deps struct {
	Logger   *slog.Logger
	Gatherer prometheus.Gatherer
	// Limiter marks responses while the rate limiter runs on its fallback. Optional.
	Limiter rlmiddleware.StatusReporter
	// Checks are run by /health. Optional.
	Checks   map[string]HealthCheck
	Handlers []Registrar
}

type healthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

// NewRouter wires all public endpoints.
func NewRouter(deps Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.Recoverer)
	r.Use(request.RequestID)
	r.Use(requesttime.Middleware)
	r.Use(metadata.ClientMetadata)
	r.Use(platformmw.Logger(deps.Logger))
	r.Use(chimw.Timeout(requestTimeout))
	r.Use(rlmiddleware.DegradedStatus(deps.Limiter))

	r.Get("/health", healthHandler(deps.Checks))
	if deps.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{}))
	}

	for _, h := range deps.Handlers {
		h.Register(r)
	}
	return r
}

func healthHandler(checks map[string]HealthCheck) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp := healthResponse{Status: "ok"}
		status := http.StatusOK
		if len(checks) > 0 {
			resp.Checks = make(map[string]string, len(checks))
		}
		for name, check := range checks {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			err := check(ctx)
			cancel()
			if err != nil {
				resp.Checks[name] = "unavailable"
				resp.Status = "degraded"
				status = http.StatusServiceUnavailable
				continue
			}
			resp.Checks[name] = "ok"
		}
		httputil.WriteJSON(w, status, resp)
	}
}
