// Package tokens issues and redeems single-use, time-boxed secrets for
// email verification, invitations and password resets.
package tokens

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Purpose namespaces a token. A secret issued for one purpose never
// redeems under another.
type Purpose string

const (
	PurposeEmailVerify   Purpose = "email-verify"
	PurposeInvite        Purpose = "invite"
	PurposePasswordReset Purpose = "password-reset"
)

// ErrNotFound covers unknown, expired and already-redeemed secrets; the
// three are indistinguishable to the caller.
var ErrNotFound = errors.New("token not found or expired")

const storeTimeout = 3 * time.Second

// Manager stores only the one-way hash of each secret, keyed under a
// purpose-qualified namespace with a TTL. The raw secret exists solely
// in the return value of Issue.
type Manager struct {
	client *redis.Client
	logger *zap.Logger
}

// NewManager creates an ephemeral token manager.
func NewManager(client *redis.Client, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{client: client, logger: logger}
}

// Issue generates a random secret, stores subjectID under its hashed,
// purpose-qualified key with the given TTL, and returns the raw secret
// for the caller to embed in an email link.
func (m *Manager) Issue(ctx context.Context, subjectID string, purpose Purpose, ttl time.Duration) (string, error) {
	raw, err := generateSecret()
	if err != nil {
		return "", err
	}
	ctx, cancel := context.WithTimeout(ctx, storeTimeout)
	defer cancel()
	if err := m.client.Set(ctx, key(purpose, Hash(raw)), subjectID, ttl).Err(); err != nil {
		return "", fmt.Errorf("store token: %w", err)
	}
	return raw, nil
}

// Redeem consumes the secret and returns the subject it was issued for.
// GETDEL makes redemption atomic: under concurrent attempts with the
// same secret, exactly one succeeds.
func (m *Manager) Redeem(ctx context.Context, rawSecret string, purpose Purpose) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, storeTimeout)
	defer cancel()
	subject, err := m.client.GetDel(ctx, key(purpose, Hash(rawSecret))).Result()
	if err == redis.Nil {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("redeem token: %w", err)
	}
	return subject, nil
}

// Hash returns the hex SHA-256 of a raw secret, the only form ever
// persisted.
func Hash(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

func key(purpose Purpose, hash string) string {
	return "token:" + string(purpose) + ":" + hash
}

func generateSecret() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate secret: %w", err)
	}
	return hex.EncodeToString(buf), nil
}
