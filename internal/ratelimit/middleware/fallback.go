package middleware

import (
	"context"
	"log/slog"
	"time"

	"whozin/internal/platform/metrics"
	"whozin/internal/ratelimit/models"
	"whozin/internal/ratelimit/ports"
	"whozin/internal/ratelimit/store/action"
	"whozin/pkg/platform/circuit"
)

// ResilientStore keeps rate limiting alive while a shared store fails.
//
// Primary errors are answered from an in-memory fallback. After enough
// consecutive errors the breaker opens. While open, the primary only sees the
// read-only health check and decisions come from the fallback, so no attempt answered
// by the fallback is ever written to the primary.
type ResilientStore struct {
	primary  ports.ActionStore
	fallback ports.ActionStore
	health   HealthCheck
	breaker  *circuit.Breaker
	logger   *slog.Logger
	metrics  *metrics.Metrics
}

// HealthCheck checks the primary's health without touching rate limit state.
type HealthCheck func(ctx context.Context) error

type ResilientOption func(*ResilientStore)

func WithLogger(logger *slog.Logger) ResilientOption {
	return func(r *ResilientStore) {
		r.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) ResilientOption {
	return func(r *ResilientStore) {
		r.metrics = m
	}
}

// WithBreaker replaces the default breaker (5 failures open, 3 successes close).
func WithBreaker(b *circuit.Breaker) ResilientOption {
	return func(r *ResilientStore) {
		r.breaker = b
	}
}

// WithHealthCheck sets the health check used while the breaker is open.
// Without one, the breaker closes after its success threshold of
// fallback-served calls and the primary is tried again.
func WithHealthCheck(check HealthCheck) ResilientOption {
	return func(r *ResilientStore) {
		r.health = check
	}
}

// WithFallback replaces the in-memory fallback store.
func WithFallback(store ports.ActionStore) ResilientOption {
	return func(r *ResilientStore) {
		r.fallback = store
	}
}

// NewResilientStore wraps primary with a breaker and an in-memory fallback.
func NewResilientStore(primary ports.ActionStore, opts ...ResilientOption) *ResilientStore {
	r := &ResilientStore{
		primary:  primary,
		fallback: action.New(),
		breaker:  circuit.New("ratelimit-store"),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.logger == nil {
		r.logger = slog.New(slog.DiscardHandler)
	}
	if r.health == nil {
		r.health = func(context.Context) error { return nil }
	}
	return r
}

// CheckAndRecord implements ports.ActionStore.
func (r *ResilientStore) CheckAndRecord(ctx context.Context, key string, window time.Duration, now time.Time) (*models.Decision, error) {
	if r.breaker.IsOpen() && !r.recovered(ctx) {
		return r.fallback.CheckAndRecord(ctx, key, window, now)
	}

	decision, err := r.primary.CheckAndRecord(ctx, key, window, now)
	if err != nil {
		r.recordFailure(ctx, err)
		return r.fallback.CheckAndRecord(ctx, key, window, now)
	}
	r.breaker.RecordSuccess()
	return decision, nil
}

// recovered checks the primary while the breaker is open and reports whether
// the breaker closed.
func (r *ResilientStore) recovered(ctx context.Context) bool {
	if err := r.health(ctx); err != nil {
		r.recordFailure(ctx, err)
		return false
	}
	usePrimary, change := r.breaker.RecordSuccess()
	if change.Closed {
		r.metrics.SetDegraded(false)
		r.logger.InfoContext(ctx, "rate limit store circuit closed")
	}
	return usePrimary
}

func (r *ResilientStore) recordFailure(ctx context.Context, err error) {
	r.metrics.IncrementStoreErrors()
	if _, change := r.breaker.RecordFailure(); change.Opened {
		r.metrics.SetDegraded(true)
		r.logger.WarnContext(ctx, "rate limit store circuit opened, using in-memory fallback", "error", err)
	}
}

// Degraded reports whether decisions currently come from the fallback.
func (r *ResilientStore) Degraded() bool {
	return r.breaker.IsOpen()
}
