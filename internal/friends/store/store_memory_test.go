package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"whozin/internal/friends/models"
)

func TestInMemoryFriendRequestStore(t *testing.T) {
	ctx := context.Background()
	s := New()

	require.NoError(t, s.Create(ctx, &models.FriendRequest{ID: "1", FromUserID: "u1", Username: "ada"}))
	require.NoError(t, s.Create(ctx, &models.FriendRequest{ID: "2", FromUserID: "u1", Username: "bob"}))
	require.NoError(t, s.Create(ctx, &models.FriendRequest{ID: "3", FromUserID: "u2", Username: "ada"}))

	list, err := s.ListByUser(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "ada", list[0].Username)
	assert.Equal(t, "bob", list[1].Username)

	list, err = s.ListByUser(ctx, "nobody")
	require.NoError(t, err)
	assert.Empty(t, list)
}
