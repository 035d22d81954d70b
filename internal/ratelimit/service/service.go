// Package service implements the action rate limiter: at most one accepted
// attempt per key within a window, with rejected attempts leaving state untouched.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"whozin/internal/platform/config"
	"whozin/internal/platform/metrics"
	"whozin/internal/ratelimit/models"
	"whozin/internal/ratelimit/observability"
	"whozin/internal/ratelimit/ports"
	dErrors "whozin/pkg/domain-errors"
	"whozin/pkg/requestcontext"
)

const tracerName = "whozin/ratelimit"

type Service struct {
	store   ports.ActionStore
	logger  *slog.Logger
	metrics *metrics.Metrics
	config  *config.RateLimit
	tracer  trace.Tracer
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func WithConfig(cfg *config.RateLimit) Option {
	return func(s *Service) {
		s.config = cfg
	}
}

func WithTracer(tracer trace.Tracer) Option {
	return func(s *Service) {
		s.tracer = tracer
	}
}

func New(store ports.ActionStore, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, fmt.Errorf("action store is required")
	}
	defaults := config.Default().RateLimit
	svc := &Service{
		store:  store,
		config: &defaults,
	}
	for _, opt := range opts {
		opt(svc)
	}
	if svc.logger == nil {
		svc.logger = slog.New(slog.DiscardHandler)
	}
	if svc.tracer == nil {
		svc.tracer = otel.Tracer(tracerName)
	}
	return svc, nil
}

// CheckAndRecord decides whether an attempt on key is allowed now and, if so,
// records it. The current time comes from the request context.
func (s *Service) CheckAndRecord(ctx context.Context, key string, window time.Duration) (*models.Decision, error) {
	ctx, span := s.tracer.Start(ctx, "ratelimit.CheckAndRecord",
		trace.WithAttributes(attribute.Int64("ratelimit.window_ms", window.Milliseconds())))
	defer span.End()

	decision, err := s.store.CheckAndRecord(ctx, key, window, requestcontext.Now(ctx))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "store failure")
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to check action rate limit")
	}
	span.SetAttributes(attribute.Bool("ratelimit.allowed", decision.Allowed))
	return decision, nil
}

// CheckAction limits one user acting on one target, using the window configured
// for action.
func (s *Service) CheckAction(ctx context.Context, action, userID, target string) (*models.Decision, error) {
	if action == "" {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "action is required")
	}
	if s.config.Disabled {
		s.metrics.ObserveActionCheck(action, metrics.OutcomeDisabled)
		return models.Allow(), nil
	}

	decision, err := s.CheckAndRecord(ctx, models.NewActionKey(action, userID, target), s.config.WindowFor(action))
	if err != nil {
		s.metrics.ObserveActionCheck(action, metrics.OutcomeError)
		s.logger.ErrorContext(ctx, "action rate limit check failed",
			"action", action,
			"user_id", userID,
			"error", err,
		)
		return nil, err
	}

	if !decision.Allowed {
		s.metrics.ObserveActionCheck(action, metrics.OutcomeLimited)
		observability.LogAudit(ctx, s.logger, "action_rate_limited",
			"action", action,
			"user_id", userID,
			"retry_after_seconds", decision.RetryAfterSeconds(),
		)
		return decision, nil
	}

	s.metrics.ObserveActionCheck(action, metrics.OutcomeAllowed)
	return decision, nil
}
