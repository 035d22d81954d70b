package middleware

import (
	"net/http"
	"strconv"

	"whozin/internal/ratelimit/models"
	"whozin/pkg/platform/httputil"
)

// HeaderStatus marks responses served while the limiter runs on its fallback.
const HeaderStatus = "X-RateLimit-Status"

// StatusReporter exposes the limiter's degraded state.
type StatusReporter interface {
	Degraded() bool
}

// DegradedStatus sets X-RateLimit-Status: degraded while reporter is degraded.
func DegradedStatus(reporter StatusReporter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if reporter != nil && reporter.Degraded() {
				w.Header().Set(HeaderStatus, "degraded")
			}
			next.ServeHTTP(w, r)
		})
	}
}

// WriteRateLimitExceeded writes the 429 response for a rejected decision.
func WriteRateLimitExceeded(w http.ResponseWriter, decision *models.Decision) {
	resp := models.NewRateLimitExceededResponse(decision)
	w.Header().Set("Retry-After", strconv.Itoa(resp.RetryAfter))
	httputil.WriteJSON(w, http.StatusTooManyRequests, resp)
}
