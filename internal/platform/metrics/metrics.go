package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Outcome labels for action checks.
const (
	OutcomeAllowed  = "allowed"
	OutcomeLimited  = "limited"
	OutcomeDisabled = "disabled"
	OutcomeError    = "error"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	RedirectRejected *prometheus.CounterVec
	ActionChecks     *prometheus.CounterVec
	StoreErrors      prometheus.Counter
	StoreDegraded    prometheus.Gauge
}

// New creates the metrics and registers them with reg.
// Tests pass a fresh prometheus.NewRegistry() to avoid duplicate registration.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		RedirectRejected: f.NewCounterVec(prometheus.CounterOpts{
			Name: "whozin_redirect_rejected_total",
			Help: "Redirect targets replaced by the safe default, by rejection reason",
		}, []string{"reason"}),
		ActionChecks: f.NewCounterVec(prometheus.CounterOpts{
			Name: "whozin_action_checks_total",
			Help: "Action rate limit checks by action and outcome",
		}, []string{"action", "outcome"}),
		StoreErrors: f.NewCounter(prometheus.CounterOpts{
			Name: "whozin_ratelimit_store_errors_total",
			Help: "Errors returned by the primary rate limit store",
		}),
		StoreDegraded: f.NewGauge(prometheus.GaugeOpts{
			Name: "whozin_ratelimit_store_degraded",
			Help: "1 while the rate limiter runs on the in-memory fallback",
		}),
	}
}

// IncrementRedirectRejected counts a rejected redirect target.
func (m *Metrics) IncrementRedirectRejected(reason string) {
	if m == nil {
		return
	}
	m.RedirectRejected.WithLabelValues(reason).Inc()
}

// ObserveActionCheck counts one limiter decision.
func (m *Metrics) ObserveActionCheck(action, outcome string) {
	if m == nil {
		return
	}
	m.ActionChecks.WithLabelValues(action, outcome).Inc()
}

// IncrementStoreErrors counts a failed primary store call.
func (m *Metrics) IncrementStoreErrors() {
	if m == nil {
		return
	}
	m.StoreErrors.Inc()
}

// SetDegraded records whether the limiter is on its fallback store.
func (m *Metrics) SetDegraded(degraded bool) {
	if m == nil {
		return
	}
	if degraded {
		m.StoreDegraded.Set(1)
		return
	}
	m.StoreDegraded.Set(0)
}
