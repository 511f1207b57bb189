package cache

import (
	"context"
	"net/url"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLayer(t *testing.T) (*Layer, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	layer := New(client, Config{Prefix: "cache:", DefaultTTL: time.Minute, LocalTTL: time.Minute}, nil)
	return layer, mr
}

func TestSetAndGet(t *testing.T) {
	layer, _ := newTestLayer(t)
	ctx := context.Background()

	layer.Set(ctx, "k", []byte("v"), 0)
	got, err := layer.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("v"), got)
}

func TestGetMiss(t *testing.T) {
	layer, _ := newTestLayer(t)
	_, err := layer.Get(context.Background(), "absent")
	assert.ErrorIs(t, err, ErrMiss)
}

func TestRemoteHitPopulatesLocalTier(t *testing.T) {
	layer, mr := newTestLayer(t)
	ctx := context.Background()

	// Seed the remote tier directly, bypassing the local one.
	require.NoError(t, mr.Set("cache:k", "v"))

	got, err := layer.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("v"), got)

	// A repeat read is served locally even with the remote tier gone.
	mr.Close()
	got, err = layer.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("v"), got)
}

func TestRemoteFailureIsAMiss(t *testing.T) {
	layer, mr := newTestLayer(t)
	mr.Close()

	_, err := layer.Get(context.Background(), "k")
	assert.ErrorIs(t, err, ErrMiss)
}

func TestSetSurvivesRemoteFailure(t *testing.T) {
	layer, mr := newTestLayer(t)
	ctx := context.Background()
	mr.Close()

	// The write must not fail the caller; the local tier still serves it.
	layer.Set(ctx, "k", []byte("v"), 0)
	got, err := layer.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("v"), got)
}

func TestInvalidateClearsBothTiers(t *testing.T) {
	layer, mr := newTestLayer(t)
	ctx := context.Background()

	layer.Set(ctx, "k", []byte("v"), 0)
	layer.Invalidate(ctx, "k")

	_, err := layer.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrMiss)
	assert.False(t, mr.Exists("cache:k"))
}

func TestRemoteKeyCarriesPrefix(t *testing.T) {
	layer, mr := newTestLayer(t)
	layer.Set(context.Background(), "k", []byte("v"), 0)
	assert.True(t, mr.Exists("cache:k"))
}

func TestKeyIsQueryOrderIndependent(t *testing.T) {
	a := url.Values{}
	a.Set("a", "1")
	a.Set("b", "2")
	b := url.Values{}
	b.Set("b", "2")
	b.Set("a", "1")

	assert.Equal(t, Key("/links", a), Key("/links", b))
}

func TestKeyWithoutQuery(t *testing.T) {
	assert.Equal(t, "/links", Key("/links", nil))
	assert.NotEqual(t, Key("/links", nil), Key("/links", url.Values{"a": {"1"}}))
}
