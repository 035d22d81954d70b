// Package service sends friend requests, holding each one back when the same
// request was accepted moments ago.
package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"whozin/internal/friends/models"
	rlmodels "whozin/internal/ratelimit/models"
	dErrors "whozin/pkg/domain-errors"
	"whozin/pkg/requestcontext"
)

// ActionLimiter is the action rate limiter.
type ActionLimiter interface {
	CheckAction(ctx context.Context, action, userID, target string) (*rlmodels.Decision, error)
}

// Store persists outgoing friend requests.
type Store interface {
	Create(ctx context.Context, req *models.FriendRequest) error
	ListByUser(ctx context.Context, userID string) ([]*models.FriendRequest, error)
}

type Service struct {
	limiter ActionLimiter
	store   Store
	logger  *slog.Logger
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func New(limiter ActionLimiter, store Store, opts ...Option) (*Service, error) {
	if limiter == nil {
		return nil, fmt.Errorf("action limiter is required")
	}
	if store == nil {
		return nil, fmt.Errorf("friend request store is required")
	}
	s := &Service{limiter: limiter, store: store}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.New(slog.DiscardHandler)
	}
	return s, nil
}

// Send validates req and queues it unless the limiter rejects it, in which case
// a *models.RateLimitedError is returned and nothing is stored.
func (s *Service) Send(ctx context.Context, userID string, req *models.CreateFriendRequest) (*models.FriendRequest, error) {
	if userID == "" {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "user is required")
	}
	req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, err
	}

	decision, err := s.limiter.CheckAction(ctx, req.Source.Action(), userID, req.Username)
	if err != nil {
		return nil, err
	}
	if !decision.Allowed {
		return nil, &models.RateLimitedError{Decision: decision}
	}

	fr := &models.FriendRequest{
		ID:         uuid.NewString(),
		FromUserID: userID,
		Username:   req.Username,
		Source:     req.Source,
		Status:     models.StatusPending,
		CreatedAt:  requestcontext.Now(ctx),
	}
	if err := s.store.Create(ctx, fr); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to queue friend request")
	}
	s.logger.InfoContext(ctx, "friend request queued",
		"request_id", requestcontext.RequestID(ctx),
		"user_id", userID,
		"source", string(fr.Source),
	)
	return fr, nil
}

func (s *Service) List(ctx context.Context, userID string) ([]*models.FriendRequest, error) {
	list, err := s.store.ListByUser(ctx, userID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list friend requests")
	}
	return list, nil
}
