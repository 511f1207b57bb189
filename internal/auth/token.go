package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// ErrInvalidToken covers malformed signatures and expired TTLs alike.
// Callers must not be able to tell which, so the validity window leaks nothing.
var ErrInvalidToken = errors.New("invalid or expired token")

// Claims holds session JWT claims.
type Claims struct {
	UserID uuid.UUID `json:"user_id"`
	Email  string    `json:"email"`
	jwt.RegisteredClaims
}

// TokenCodec signs and verifies session credentials. Access and refresh
// tokens are signed with independent secrets: a token issued for one
// purpose never verifies under the other.
type TokenCodec struct {
	accessSecret  []byte
	refreshSecret []byte
	accessTTL     time.Duration
	refreshTTL    time.Duration
}

// NewTokenCodec creates a codec for the two session credential kinds.
func NewTokenCodec(accessSecret, refreshSecret string, accessTTL, refreshTTL time.Duration) *TokenCodec {
	return &TokenCodec{
		accessSecret:  []byte(accessSecret),
		refreshSecret: []byte(refreshSecret),
		accessTTL:     accessTTL,
		refreshTTL:    refreshTTL,
	}
}

// RefreshTTL returns the refresh token lifetime, which also bounds the
// revocation store entry.
func (c *TokenCodec) RefreshTTL() time.Duration {
	return c.refreshTTL
}

// SignAccess creates a short-lived access token for the user.
func (c *TokenCodec) SignAccess(userID uuid.UUID, email string) (string, error) {
	return sign(userID, email, c.accessSecret, c.accessTTL)
}

// SignRefresh creates a long-lived refresh token for the user.
func (c *TokenCodec) SignRefresh(userID uuid.UUID, email string) (string, error) {
	return sign(userID, email, c.refreshSecret, c.refreshTTL)
}

// VerifyAccess parses and validates an access token.
func (c *TokenCodec) VerifyAccess(token string) (*Claims, error) {
	return verify(token, c.accessSecret)
}

// VerifyRefresh parses and validates a refresh token.
func (c *TokenCodec) VerifyRefresh(token string) (*Claims, error) {
	return verify(token, c.refreshSecret)
}

func sign(userID uuid.UUID, email string, secret []byte, ttl time.Duration) (string, error) {
	claims := Claims{
		UserID: userID,
		Email:  email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID.String(),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ID:        uuid.New().String(),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(secret)
}

func verify(tokenString string, secret []byte) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return secret, nil
	})
	if err != nil {
		return nil, ErrInvalidToken
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
