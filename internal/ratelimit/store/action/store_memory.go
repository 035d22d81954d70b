package action

import (
	"context"
	"sync"
	"time"

	"whozin/internal/ratelimit/models"
)

// InMemoryActionStore keeps the last accepted attempt per key for the process lifetime.
// Entries are never evicted; a key only ever holds one timestamp.
type InMemoryActionStore struct {
	mu   sync.Mutex
	last map[string]time.Time
}

// New creates an empty in-memory action store.
func New() *InMemoryActionStore {
	return &InMemoryActionStore{
		last: make(map[string]time.Time),
	}
}

// CheckAndRecord implements ports.ActionStore.
func (s *InMemoryActionStore) CheckAndRecord(_ context.Context, key string, window time.Duration, now time.Time) (*models.Decision, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	last, seen := s.last[key]
	decision := models.Evaluate(last, seen, now, window)
	if decision.Allowed {
		s.last[key] = now
	}
	return decision, nil
}

// Len reports the number of tracked keys.
func (s *InMemoryActionStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.last)
}
