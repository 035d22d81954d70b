package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"whozin/internal/ratelimit/models"
)

type staticStatus bool

func (s staticStatus) Degraded() bool { return bool(s) }

func TestWriteRateLimitExceeded(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteRateLimitExceeded(rec, models.Reject(3800*time.Millisecond))

	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "4", rec.Header().Get("Retry-After"))
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "rate_limit_exceeded", body["error"])
	assert.Equal(t, "Please wait 4 seconds before trying again.", body["message"])
	assert.EqualValues(t, 4, body["retry_after"])
}

func TestDegradedStatus(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	t.Run("degraded sets header", func(t *testing.T) {
		rec := httptest.NewRecorder()
		DegradedStatus(staticStatus(true))(next).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
		assert.Equal(t, "degraded", rec.Header().Get(HeaderStatus))
		assert.Equal(t, http.StatusNoContent, rec.Code)
	})

	t.Run("healthy leaves header unset", func(t *testing.T) {
		rec := httptest.NewRecorder()
		DegradedStatus(staticStatus(false))(next).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
		assert.Empty(t, rec.Header().Get(HeaderStatus))
	})

	t.Run("nil reporter passes through", func(t *testing.T) {
		rec := httptest.NewRecorder()
		DegradedStatus(nil)(next).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
		assert.Equal(t, http.StatusNoContent, rec.Code)
	})
}

func gaugeValue(g prometheus.Gauge) float64 {
	var m dto.Metric
	if err := g.Write(&m); err != nil {
		return -1
	}
	return m.GetGauge().GetValue()
}
