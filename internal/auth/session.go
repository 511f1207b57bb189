package auth

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/linkforge/backend/internal/models"
	"github.com/linkforge/backend/pkg/utils"
)

// Session errors surfaced to handlers. Both map to a generic 401; the
// distinction is for logs and tests only.
var (
	ErrInvalidCredentials  = errors.New("invalid email or password")
	ErrInvalidRefreshToken = errors.New("invalid refresh token")
)

// dummyHash is compared against when the email does not resolve to a
// user, so a missing account costs the same as a wrong password.
const dummyHash = "$2a$10$N9qo8uLOickgx2ZMRZoMyeIjZAgcfl7p92ldGxad68LJZdL17lhWy"

// UserStore is the subset of user persistence the session manager needs.
type UserStore interface {
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
}

// TokenPair is the session credential pair returned by login and refresh.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

// SessionManager orchestrates login, refresh and logout. At most one
// refresh token is live per user: every successful login or refresh
// overwrites the revocation-store slot, invalidating the prior session.
type SessionManager struct {
	users  UserStore
	codec  *TokenCodec
	store  *RefreshTokenStore
	logger *zap.Logger
}

// NewSessionManager creates a session manager.
func NewSessionManager(users UserStore, codec *TokenCodec, store *RefreshTokenStore, logger *zap.Logger) *SessionManager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SessionManager{users: users, codec: codec, store: store, logger: logger}
}

// Login verifies credentials and issues a fresh token pair. The refresh
// token is recorded in the revocation store before the pair is returned;
// if that write fails the login fails, so tokens that cannot be recorded
// are never issued.
func (m *SessionManager) Login(ctx context.Context, email, password string) (*TokenPair, error) {
	user, err := m.users.GetByEmail(ctx, email)
	if err != nil || user == nil {
		utils.CheckPassword(password, dummyHash)
		return nil, ErrInvalidCredentials
	}
	if user.State != models.StateActive || user.Password == "" {
		utils.CheckPassword(password, dummyHash)
		return nil, ErrInvalidCredentials
	}
	if !utils.CheckPassword(password, user.Password) {
		return nil, ErrInvalidCredentials
	}

	pair, err := m.issue(user)
	if err != nil {
		return nil, err
	}
	if err := m.store.Save(ctx, user.ID, pair.RefreshToken, m.codec.RefreshTTL()); err != nil {
		return nil, err
	}
	return pair, nil
}

// Refresh rotates the session. The user identity comes exclusively from
// the verified refresh-token signature, never from client-supplied
// input. The rotation is atomic per user: a concurrent refresh that
// presents the now-superseded token fails.
func (m *SessionManager) Refresh(ctx context.Context, presented string) (*TokenPair, error) {
	claims, err := m.codec.VerifyRefresh(presented)
	if err != nil {
		return nil, ErrInvalidRefreshToken
	}

	user, err := m.users.GetByID(ctx, claims.UserID)
	if err != nil || user == nil || user.State != models.StateActive {
		return nil, ErrInvalidRefreshToken
	}

	pair, err := m.issue(user)
	if err != nil {
		return nil, err
	}
	err = m.store.Rotate(ctx, user.ID, presented, pair.RefreshToken, m.codec.RefreshTTL())
	switch {
	case err == nil:
		return pair, nil
	case errors.Is(err, ErrNoSession), errors.Is(err, ErrTokenConflict):
		m.logger.Info("refresh rejected", zap.String("user_id", user.ID.String()), zap.Error(err))
		return nil, ErrInvalidRefreshToken
	default:
		return nil, err
	}
}

// Logout deletes the stored refresh token. Idempotent.
func (m *SessionManager) Logout(ctx context.Context, userID uuid.UUID) error {
	return m.store.Delete(ctx, userID)
}

func (m *SessionManager) issue(user *models.User) (*TokenPair, error) {
	access, err := m.codec.SignAccess(user.ID, user.Email)
	if err != nil {
		return nil, err
	}
	refresh, err := m.codec.SignRefresh(user.ID, user.Email)
	if err != nil {
		return nil, err
	}
	return &TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}
