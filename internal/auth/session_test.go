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

	"github.com/linkforge/backend/internal/models"
	"github.com/linkforge/backend/pkg/utils"
)

type fakeUserStore struct {
	users map[uuid.UUID]*models.User
}

func (s *fakeUserStore) GetByEmail(_ context.Context, email string) (*models.User, error) {
	for _, u := range s.users {
		if u.Email == email {
			return u, nil
		}
	}
	return nil, nil
}

func (s *fakeUserStore) GetByID(_ context.Context, id uuid.UUID) (*models.User, error) {
	return s.users[id], nil
}

func newTestSessionManager(t *testing.T) (*SessionManager, *models.User) {
	t.Helper()
	hash, err := utils.HashPassword("correct horse")
	require.NoError(t, err)
	user := &models.User{
		ID:       uuid.New(),
		Email:    "a@b.com",
		Password: hash,
		State:    models.StateActive,
	}
	store := &fakeUserStore{users: map[uuid.UUID]*models.User{user.ID: user}}

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	codec := NewTokenCodec("access-secret", "refresh-secret", time.Minute, time.Hour)
	return NewSessionManager(store, codec, NewRefreshTokenStore(client), nil), user
}

func TestLoginIssuesTokenPair(t *testing.T) {
	m, _ := newTestSessionManager(t)

	pair, err := m.Login(context.Background(), "a@b.com", "correct horse")
	require.NoError(t, err)
	assert.NotEmpty(t, pair.AccessToken)
	assert.NotEmpty(t, pair.RefreshToken)
}

func TestLoginRejectsWrongPassword(t *testing.T) {
	m, _ := newTestSessionManager(t)
	_, err := m.Login(context.Background(), "a@b.com", "wrong")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestLoginRejectsUnknownEmail(t *testing.T) {
	m, _ := newTestSessionManager(t)
	_, err := m.Login(context.Background(), "nobody@b.com", "correct horse")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestLoginRejectsRetiredUser(t *testing.T) {
	m, user := newTestSessionManager(t)
	user.State = models.StateRetired
	_, err := m.Login(context.Background(), "a@b.com", "correct horse")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestSecondLoginInvalidatesFirstSession(t *testing.T) {
	m, _ := newTestSessionManager(t)
	ctx := context.Background()

	first, err := m.Login(ctx, "a@b.com", "correct horse")
	require.NoError(t, err)
	_, err = m.Login(ctx, "a@b.com", "correct horse")
	require.NoError(t, err)

	// The first session's refresh token was overwritten and no longer rotates.
	_, err = m.Refresh(ctx, first.RefreshToken)
	assert.ErrorIs(t, err, ErrInvalidRefreshToken)
}

func TestRefreshRotatesToken(t *testing.T) {
	m, _ := newTestSessionManager(t)
	ctx := context.Background()

	pair, err := m.Login(ctx, "a@b.com", "correct horse")
	require.NoError(t, err)

	rotated, err := m.Refresh(ctx, pair.RefreshToken)
	require.NoError(t, err)
	assert.NotEqual(t, pair.RefreshToken, rotated.RefreshToken)

	// The superseded token must not rotate again.
	_, err = m.Refresh(ctx, pair.RefreshToken)
	assert.ErrorIs(t, err, ErrInvalidRefreshToken)

	// The fresh token still works.
	_, err = m.Refresh(ctx, rotated.RefreshToken)
	require.NoError(t, err)
}

func TestRefreshRejectsForgedToken(t *testing.T) {
	m, _ := newTestSessionManager(t)
	_, err := m.Refresh(context.Background(), "forged")
	assert.ErrorIs(t, err, ErrInvalidRefreshToken)
}

func TestRefreshAfterLogoutFails(t *testing.T) {
	m, user := newTestSessionManager(t)
	ctx := context.Background()

	pair, err := m.Login(ctx, "a@b.com", "correct horse")
	require.NoError(t, err)
	require.NoError(t, m.Logout(ctx, user.ID))

	_, err = m.Refresh(ctx, pair.RefreshToken)
	assert.ErrorIs(t, err, ErrInvalidRefreshToken)
}

func TestLogoutIsIdempotent(t *testing.T) {
	m, user := newTestSessionManager(t)
	ctx := context.Background()

	require.NoError(t, m.Logout(ctx, user.ID))
	require.NoError(t, m.Logout(ctx, user.ID))
}
