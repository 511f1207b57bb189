package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Rotation errors. ErrTokenConflict means the presented token was
// superseded by a concurrent rotation; ErrNoSession means no refresh
// token is on record for the user.
var (
	ErrTokenConflict = errors.New("refresh token superseded")
	ErrNoSession     = errors.New("no active session")
)

const (
	refreshKeyPrefix = "refresh_token:"
	storeTimeout     = 3 * time.Second
)

// rotateScript atomically compares the stored refresh token with the
// presented one and overwrites it only on a match. Two concurrent
// rotations for the same user cannot both succeed: the loser observes
// the winner's value and fails.
//
// Returns 1 on rotation, 0 when no token is stored, 2 on mismatch.
var rotateScript = redis.NewScript(`
local cur = redis.call('GET', KEYS[1])
if cur == false then
  return 0
end
if cur == ARGV[1] then
  redis.call('SET', KEYS[1], ARGV[2], 'EX', ARGV[3])
  return 1
end
return 2
`)

// RefreshTokenStore is the authoritative record of the single live
// refresh token per user, backed by Redis. All calls are bounded by a
// store timeout; a timed-out write must fail the login/refresh that
// triggered it.
type RefreshTokenStore struct {
	client *redis.Client
}

// NewRefreshTokenStore creates a redis-backed refresh token store.
func NewRefreshTokenStore(client *redis.Client) *RefreshTokenStore {
	return &RefreshTokenStore{client: client}
}

func refreshKey(userID uuid.UUID) string {
	return refreshKeyPrefix + userID.String()
}

// Save stores the refresh token for the user, overwriting any prior
// value. Overwriting is what invalidates the previous session.
func (s *RefreshTokenStore) Save(ctx context.Context, userID uuid.UUID, token string, ttl time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, storeTimeout)
	defer cancel()
	if err := s.client.Set(ctx, refreshKey(userID), token, ttl).Err(); err != nil {
		return fmt.Errorf("save refresh token: %w", err)
	}
	return nil
}

// Rotate replaces the stored token with next only if the stored value
// equals presented, atomically.
func (s *RefreshTokenStore) Rotate(ctx context.Context, userID uuid.UUID, presented, next string, ttl time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, storeTimeout)
	defer cancel()
	res, err := rotateScript.Run(ctx, s.client, []string{refreshKey(userID)}, presented, next, int(ttl.Seconds())).Int()
	if err != nil {
		return fmt.Errorf("rotate refresh token: %w", err)
	}
	switch res {
	case 1:
		return nil
	case 0:
		return ErrNoSession
	default:
		return ErrTokenConflict
	}
}

// Delete removes the stored refresh token. Idempotent: deleting an
// absent entry is not an error.
func (s *RefreshTokenStore) Delete(ctx context.Context, userID uuid.UUID) error {
	ctx, cancel := context.WithTimeout(ctx, storeTimeout)
	defer cancel()
	if err := s.client.Del(ctx, refreshKey(userID)).Err(); err != nil {
		return fmt.Errorf("delete refresh token: %w", err)
	}
	return nil
}
