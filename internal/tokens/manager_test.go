package tokens

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestManager(t *testing.T) (*Manager, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return NewManager(client, nil), mr
}

func TestIssueAndRedeem(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()

	raw, err := m.Issue(ctx, "subject-1", PurposeEmailVerify, time.Minute)
	require.NoError(t, err)
	assert.NotEmpty(t, raw)

	subject, err := m.Redeem(ctx, raw, PurposeEmailVerify)
	require.NoError(t, err)
	assert.Equal(t, "subject-1", subject)
}

func TestRedeemIsSingleUse(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()

	raw, err := m.Issue(ctx, "subject-1", PurposeEmailVerify, time.Minute)
	require.NoError(t, err)

	_, err = m.Redeem(ctx, raw, PurposeEmailVerify)
	require.NoError(t, err)
	_, err = m.Redeem(ctx, raw, PurposeEmailVerify)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRedeemRejectsCrossPurpose(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()

	raw, err := m.Issue(ctx, "subject-1", PurposeInvite, time.Minute)
	require.NoError(t, err)

	_, err = m.Redeem(ctx, raw, PurposePasswordReset)
	assert.ErrorIs(t, err, ErrNotFound)

	// The secret is still redeemable under its real purpose.
	subject, err := m.Redeem(ctx, raw, PurposeInvite)
	require.NoError(t, err)
	assert.Equal(t, "subject-1", subject)
}

func TestRedeemRejectsExpired(t *testing.T) {
	m, mr := newTestManager(t)
	ctx := context.Background()

	raw, err := m.Issue(ctx, "subject-1", PurposeEmailVerify, time.Second)
	require.NoError(t, err)

	mr.FastForward(2 * time.Second)
	_, err = m.Redeem(ctx, raw, PurposeEmailVerify)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRedeemRejectsUnknownSecret(t *testing.T) {
	m, _ := newTestManager(t)
	_, err := m.Redeem(context.Background(), "never-issued", PurposeEmailVerify)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestOnlyHashIsStored(t *testing.T) {
	m, mr := newTestManager(t)
	ctx := context.Background()

	raw, err := m.Issue(ctx, "subject-1", PurposeEmailVerify, time.Minute)
	require.NoError(t, err)

	// The raw secret never appears as a key; its hash does.
	assert.False(t, mr.Exists(key(PurposeEmailVerify, raw)))
	assert.True(t, mr.Exists(key(PurposeEmailVerify, Hash(raw))))
}
