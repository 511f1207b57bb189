package auth

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCodec() *TokenCodec {
	return NewTokenCodec("access-secret", "refresh-secret", time.Minute, time.Hour)
}

func TestAccessTokenRoundtrip(t *testing.T) {
	codec := newTestCodec()
	userID := uuid.New()

	token, err := codec.SignAccess(userID, "a@b.com")
	require.NoError(t, err)

	claims, err := codec.VerifyAccess(token)
	require.NoError(t, err)
	assert.Equal(t, userID, claims.UserID)
	assert.Equal(t, "a@b.com", claims.Email)
}

func TestRefreshTokenRoundtrip(t *testing.T) {
	codec := newTestCodec()
	userID := uuid.New()

	token, err := codec.SignRefresh(userID, "a@b.com")
	require.NoError(t, err)

	claims, err := codec.VerifyRefresh(token)
	require.NoError(t, err)
	assert.Equal(t, userID, claims.UserID)
}

func TestAccessAndRefreshSecretsAreIndependent(t *testing.T) {
	codec := newTestCodec()
	userID := uuid.New()

	access, err := codec.SignAccess(userID, "a@b.com")
	require.NoError(t, err)
	refresh, err := codec.SignRefresh(userID, "a@b.com")
	require.NoError(t, err)

	_, err = codec.VerifyRefresh(access)
	assert.ErrorIs(t, err, ErrInvalidToken)
	_, err = codec.VerifyAccess(refresh)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerifyRejectsWrongSecret(t *testing.T) {
	codec := newTestCodec()
	other := NewTokenCodec("different", "also-different", time.Minute, time.Hour)

	token, err := codec.SignAccess(uuid.New(), "a@b.com")
	require.NoError(t, err)

	_, err = other.VerifyAccess(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerifyRejectsExpiredToken(t *testing.T) {
	codec := NewTokenCodec("access-secret", "refresh-secret", -time.Minute, -time.Minute)

	token, err := codec.SignAccess(uuid.New(), "a@b.com")
	require.NoError(t, err)

	_, err = codec.VerifyAccess(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerifyRejectsGarbage(t *testing.T) {
	codec := newTestCodec()
	_, err := codec.VerifyAccess("not-a-token")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestSignedTokensAreUnique(t *testing.T) {
	codec := newTestCodec()
	userID := uuid.New()

	a, err := codec.SignRefresh(userID, "a@b.com")
	require.NoError(t, err)
	b, err := codec.SignRefresh(userID, "a@b.com")
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}
