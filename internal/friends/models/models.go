package models

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	rlmodels "whozin/internal/ratelimit/models"
	dErrors "whozin/pkg/domain-errors"
)

// Source says where the user found the person they are adding.
type Source string

const (
	SourceManual    Source = "manual"
	SourceInvite    Source = "invite"
	SourceSuggested Source = "suggested"
)

func (s Source) IsValid() bool {
	switch s {
	case SourceManual, SourceInvite, SourceSuggested:
		return true
	}
	return false
}

// Action is the rate limiter action name for adding a friend from this source.
func (s Source) Action() string {
	return "friend_add_" + string(s)
}

const StatusPending = "pending"

var usernamePattern = regexp.MustCompile(`^[a-z0-9_.]{3,30}$`)

// FriendRequest is an outgoing request waiting for the backend to deliver it.
type FriendRequest struct {
	ID         string    `json:"id"`
	FromUserID string    `json:"-"`
	Username   string    `json:"username"`
	Source     Source    `json:"source"`
	Status     string    `json:"status"`
	CreatedAt  time.Time `json:"created_at"`
}

type CreateFriendRequest struct {
	Username string `json:"username"`
	Source   Source `json:"source"`
}

// Normalize trims input, strips a leading @ and lowercases the username.
// An empty source means manual entry.
func (r *CreateFriendRequest) Normalize() {
	if r == nil {
		return
	}
	r.Username = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(r.Username), "@"))
	r.Source = Source(strings.ToLower(strings.TrimSpace(string(r.Source))))
	if r.Source == "" {
		r.Source = SourceManual
	}
}

// Follows validation order: Required -> Syntax -> Semantic.
func (r *CreateFriendRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request is required")
	}
	if r.Username == "" {
		return dErrors.New(dErrors.CodeInvalidInput, "username is required")
	}
	if !usernamePattern.MatchString(r.Username) {
		return dErrors.New(dErrors.CodeInvalidInput, "username must be 3-30 characters of a-z, 0-9, '_' or '.'")
	}
	if !r.Source.IsValid() {
		return dErrors.New(dErrors.CodeInvalidInput, "source must be one of manual, invite, suggested")
	}
	return nil
}

// RateLimitedError reports that the user must wait before retrying.
type RateLimitedError struct {
	Decision *rlmodels.Decision
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("friend request rate limited, retry in %ds", e.Decision.RetryAfterSeconds())
}
