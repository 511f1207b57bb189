// Package cache is a two-tier read-through cache: an in-process LRU in
// front of a shared Redis tier. Backend failures are treated as misses;
// no request ever fails because the cache is down.
package cache

import (
	"context"
	"errors"
	"net/url"
	"time"

	lru "github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// ErrMiss is returned when neither tier holds the key.
var ErrMiss = errors.New("cache miss")

const storeTimeout = 2 * time.Second

// Config holds cache tier settings.
type Config struct {
	Prefix          string        // remote key prefix, e.g. "cache:"
	DefaultTTL      time.Duration // remote tier TTL when the caller passes none
	LocalTTL        time.Duration // in-process tier TTL, independent of remote
	LocalMaxEntries int
}

// Layer is the two-tier cache. The local tier is per-process memory;
// its staleness window is bounded by LocalTTL.
type Layer struct {
	local      *lru.LRU[string, []byte]
	remote     *redis.Client
	prefix     string
	defaultTTL time.Duration
	logger     *zap.Logger
}

// New creates a cache layer.
func New(remote *redis.Client, cfg Config, logger *zap.Logger) *Layer {
	if logger == nil {
		logger = zap.NewNop()
	}
	maxEntries := cfg.LocalMaxEntries
	if maxEntries <= 0 {
		maxEntries = 1024
	}
	defaultTTL := cfg.DefaultTTL
	if defaultTTL <= 0 {
		defaultTTL = 5 * time.Minute
	}
	localTTL := cfg.LocalTTL
	if localTTL <= 0 {
		localTTL = 30 * time.Second
	}
	return &Layer{
		local:      lru.NewLRU[string, []byte](maxEntries, nil, localTTL),
		remote:     remote,
		prefix:     cfg.Prefix,
		defaultTTL: defaultTTL,
		logger:     logger,
	}
}

// Get checks the local tier, then the remote tier. A remote hit
// populates the local tier with the local TTL. Remote errors are logged
// and reported as a miss.
func (l *Layer) Get(ctx context.Context, key string) ([]byte, error) {
	if value, ok := l.local.Get(key); ok {
		return value, nil
	}

	ctx, cancel := context.WithTimeout(ctx, storeTimeout)
	defer cancel()
	value, err := l.remote.Get(ctx, l.prefix+key).Bytes()
	if err == redis.Nil {
		return nil, ErrMiss
	}
	if err != nil {
		l.logger.Warn("cache get failed", zap.String("key", key), zap.Error(err))
		return nil, ErrMiss
	}
	l.local.Add(key, value)
	return value, nil
}

// Set writes through to the remote tier with the given TTL (or the
// configured default) and opportunistically populates the local tier.
// Remote errors are logged, never propagated.
func (l *Layer) Set(ctx context.Context, key string, value []byte, ttl time.Duration) {
	if ttl <= 0 {
		ttl = l.defaultTTL
	}
	l.local.Add(key, value)

	ctx, cancel := context.WithTimeout(ctx, storeTimeout)
	defer cancel()
	if err := l.remote.Set(ctx, l.prefix+key, value, ttl).Err(); err != nil {
		l.logger.Warn("cache set failed", zap.String("key", key), zap.Error(err))
	}
}

// Invalidate removes the key from both tiers, best-effort.
func (l *Layer) Invalidate(ctx context.Context, keys ...string) {
	ctx, cancel := context.WithTimeout(ctx, storeTimeout)
	defer cancel()
	for _, key := range keys {
		l.local.Remove(key)
		if err := l.remote.Del(ctx, l.prefix+key).Err(); err != nil {
			l.logger.Warn("cache invalidate failed", zap.String("key", key), zap.Error(err))
		}
	}
}

// Key derives the canonical cache key for a request: the path plus a
// stable serialization of the query. url.Values.Encode sorts by key, so
// parameter order never changes the derived key.
func Key(path string, query url.Values) string {
	if len(query) == 0 {
		return path
	}
	return path + "?" + query.Encode()
}
