package auth

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) (*RefreshTokenStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return NewRefreshTokenStore(client), mr
}

func TestSaveOverwritesPriorToken(t *testing.T) {
	store, mr := newTestStore(t)
	ctx := context.Background()
	userID := uuid.New()

	require.NoError(t, store.Save(ctx, userID, "first", time.Hour))
	require.NoError(t, store.Save(ctx, userID, "second", time.Hour))

	got, err := mr.Get(refreshKey(userID))
	require.NoError(t, err)
	assert.Equal(t, "second", got)
}

func TestRotateSucceedsOnMatch(t *testing.T) {
	store, mr := newTestStore(t)
	ctx := context.Background()
	userID := uuid.New()

	require.NoError(t, store.Save(ctx, userID, "current", time.Hour))
	require.NoError(t, store.Rotate(ctx, userID, "current", "next", time.Hour))

	got, err := mr.Get(refreshKey(userID))
	require.NoError(t, err)
	assert.Equal(t, "next", got)
}

func TestRotateFailsOnMismatch(t *testing.T) {
	store, mr := newTestStore(t)
	ctx := context.Background()
	userID := uuid.New()

	require.NoError(t, store.Save(ctx, userID, "current", time.Hour))
	err := store.Rotate(ctx, userID, "stale", "next", time.Hour)
	assert.ErrorIs(t, err, ErrTokenConflict)

	// The stored token is untouched by a failed rotation.
	got, err := mr.Get(refreshKey(userID))
	require.NoError(t, err)
	assert.Equal(t, "current", got)
}

func TestRotateFailsWithoutSession(t *testing.T) {
	store, _ := newTestStore(t)
	err := store.Rotate(context.Background(), uuid.New(), "anything", "next", time.Hour)
	assert.ErrorIs(t, err, ErrNoSession)
}

func TestRotateIsSingleWinner(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()
	userID := uuid.New()

	require.NoError(t, store.Save(ctx, userID, "current", time.Hour))

	// First rotation wins; the second presents the now-superseded token.
	require.NoError(t, store.Rotate(ctx, userID, "current", "winner", time.Hour))
	err := store.Rotate(ctx, userID, "current", "loser", time.Hour)
	assert.ErrorIs(t, err, ErrTokenConflict)
}

func TestDeleteIsIdempotent(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()
	userID := uuid.New()

	require.NoError(t, store.Save(ctx, userID, "current", time.Hour))
	require.NoError(t, store.Delete(ctx, userID))
	require.NoError(t, store.Delete(ctx, userID))
}

func TestStoredTokenExpires(t *testing.T) {
	store, mr := newTestStore(t)
	ctx := context.Background()
	userID := uuid.New()

	require.NoError(t, store.Save(ctx, userID, "current", time.Second))
	mr.FastForward(2 * time.Second)

	err := store.Rotate(ctx, userID, "current", "next", time.Hour)
	assert.ErrorIs(t, err, ErrNoSession)
}
