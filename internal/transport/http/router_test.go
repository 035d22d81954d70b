package httptransport

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"whozin/internal/platform/metrics"
	"whozin/pkg/platform/middleware/request"
)

type degraded bool

func (d degraded) Degraded() bool { return bool(d) }

type panicky struct{}

func (panicky) Register(r chi.Router) {
	r.Get("/boom", func(http.ResponseWriter, *http.Request) { panic("boom") })
}

func newTestRouter(t *testing.T, deps Deps) http.Handler {
	t.Helper()
	if deps.Logger == nil {
		deps.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return NewRouter(deps)
}

func serve(h http.Handler, method, target string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(method, target, nil))
	return rec
}

func TestHealth(t *testing.T) {
	t.Run("no checks is ok", func(t *testing.T) {
		rec := serve(newTestRouter(t, Deps{}), http.MethodGet, "/health")
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
	})

	t.Run("failing dependency is reported", func(t *testing.T) {
		h := newTestRouter(t, Deps{Checks: map[string]HealthCheck{
			"redis":    func(context.Context) error { return errors.New("down") },
			"postgres": func(context.Context) error { return nil },
		}})
		rec := serve(h, http.MethodGet, "/health")
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
		assert.JSONEq(t, `{"status":"degraded","checks":{"redis":"unavailable","postgres":"ok"}}`, rec.Body.String())
	})
}

func TestMetricsEndpoint(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	m.IncrementRedirectRejected("protocol_relative")

	rec := serve(newTestRouter(t, Deps{Gatherer: reg}), http.MethodGet, "/metrics")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `whozin_redirect_rejected_total{reason="protocol_relative"} 1`)
}

func TestMiddlewareChain(t *testing.T) {
	h := newTestRouter(t, Deps{Limiter: degraded(true), Handlers: []Registrar{panicky{}}})

	rec := serve(h, http.MethodGet, "/health")
	assert.NotEmpty(t, rec.Header().Get(request.HeaderRequestID))
	assert.Equal(t, "degraded", rec.Header().Get("X-RateLimit-Status"))

	rec = serve(h, http.MethodGet, "/boom")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)

	rec = serve(h, http.MethodGet, "/nope")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
