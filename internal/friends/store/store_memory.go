package store

import (
	"context"
	"sync"

	"whozin/internal/friends/models"
)

// InMemoryFriendRequestStore is the outbox of requests awaiting delivery to the
// hosted data store.
type InMemoryFriendRequestStore struct {
	mu     sync.RWMutex
	byUser map[string][]*models.FriendRequest
}

func New() *InMemoryFriendRequestStore {
	return &InMemoryFriendRequestStore{
		byUser: make(map[string][]*models.FriendRequest),
	}
}

func (s *InMemoryFriendRequestStore) Create(_ context.Context, req *models.FriendRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byUser[req.FromUserID] = append(s.byUser[req.FromUserID], req)
	return nil
}

// ListByUser returns userID's requests, oldest first.
func (s *InMemoryFriendRequestStore) ListByUser(_ context.Context, userID string) ([]*models.FriendRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.FriendRequest, len(s.byUser[userID]))
	copy(out, s.byUser[userID])
	return out, nil
}
