// Package ports defines shared interfaces for the ratelimit module.
// Interfaces are placed here when consumed by multiple packages to avoid duplication.
package ports

import (
	"context"
	"time"

	"whozin/internal/ratelimit/models"
)

// ActionStore records the last accepted attempt per key.
//
// CheckAndRecord must be atomic per key: it reports a rejection without
// touching state when the previous accepted attempt is less than window
// before now, and otherwise records now and reports an allowed decision.
type ActionStore interface {
	CheckAndRecord(ctx context.Context, key string, window time.Duration, now time.Time) (*models.Decision, error)
}
