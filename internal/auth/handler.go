package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/linkforge/backend/internal/gateway"
	"github.com/linkforge/backend/internal/models"
	"github.com/linkforge/backend/internal/tokens"
	"github.com/linkforge/backend/pkg/queue"
	"github.com/linkforge/backend/pkg/response"
	"github.com/linkforge/backend/pkg/utils"
)

// UserRepository is the user persistence the auth handlers need.
type UserRepository interface {
	UserStore
	Create(ctx context.Context, user *models.User) error
	SetVerified(ctx context.Context, id uuid.UUID) error
	UpdatePassword(ctx context.Context, id uuid.UUID, passwordHash string) error
}

// HandlerConfig holds TTLs and link building settings for auth flows.
type HandlerConfig struct {
	VerifyTTL     time.Duration
	ResetTTL      time.Duration
	PublicBaseURL string
}

// Handler handles auth HTTP endpoints.
type Handler struct {
	repo     UserRepository
	sessions *SessionManager
	tokens   *tokens.Manager
	queue    *queue.Queue
	cfg      HandlerConfig
	logger   *zap.Logger
}

// NewHandler creates an auth handler.
func NewHandler(repo UserRepository, sessions *SessionManager, tm *tokens.Manager, q *queue.Queue, cfg HandlerConfig, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{repo: repo, sessions: sessions, tokens: tm, queue: q, cfg: cfg, logger: logger}
}

// RegisterRequest is the body for POST /auth/register.
type RegisterRequest struct {
	Email     string `json:"email" binding:"required,email"`
	Username  string `json:"username"`
	Password  string `json:"password" binding:"required,min=8"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

// LoginRequest is the body for POST /auth/login.
type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// RefreshRequest is the body for POST /auth/refresh.
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
}

// Register handles POST /auth/register. A verification token is issued
// and mailed out-of-band; mail failure never rolls back registration.
func (h *Handler) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}

	hash, err := utils.HashPassword(req.Password)
	if err != nil {
		response.Internal(c, "failed to hash password")
		return
	}

	user := &models.User{
		Email:     req.Email,
		Username:  req.Username,
		Password:  hash,
		FirstName: req.FirstName,
		LastName:  req.LastName,
	}
	if err := h.repo.Create(c.Request.Context(), user); err != nil {
		if errors.Is(err, models.ErrConflict) {
			response.Conflict(c, "user already exists")
			return
		}
		response.Internal(c, "failed to create user")
		return
	}

	h.sendVerification(c.Request.Context(), user)
	response.Created(c, user.ToPublic())
}

// Login handles POST /auth/login.
func (h *Handler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}

	pair, err := h.sessions.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, ErrInvalidCredentials) {
			response.Unauthorized(c, "invalid email or password")
			return
		}
		h.logger.Error("login failed", zap.Error(err))
		response.ServiceUnavailable(c, "login temporarily unavailable")
		return
	}
	response.OK(c, pair)
}

// Refresh handles POST /auth/refresh. The principal is resolved from
// the presented refresh token's verified signature.
func (h *Handler) Refresh(c *gin.Context) {
	var req RefreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}

	pair, err := h.sessions.Refresh(c.Request.Context(), req.RefreshToken)
	if err != nil {
		if errors.Is(err, ErrInvalidRefreshToken) {
			response.Unauthorized(c, "invalid refresh token")
			return
		}
		h.logger.Error("refresh failed", zap.Error(err))
		response.ServiceUnavailable(c, "refresh temporarily unavailable")
		return
	}
	response.OK(c, pair)
}

// Logout handles POST /auth/logout.
func (h *Handler) Logout(c *gin.Context) {
	principal := gateway.MustPrincipal(c)
	if err := h.sessions.Logout(c.Request.Context(), principal.ID); err != nil {
		h.logger.Error("logout failed", zap.Error(err), zap.String("user_id", principal.ID.String()))
		response.ServiceUnavailable(c, "logout temporarily unavailable")
		return
	}
	response.OK(c, gin.H{"message": "logged out"})
}

// VerifyEmail handles GET /auth/verify-email?token=...
// Redemption is single-use: a second attempt with the same token fails.
func (h *Handler) VerifyEmail(c *gin.Context) {
	raw := c.Query("token")
	if raw == "" {
		response.BadRequest(c, "token required")
		return
	}

	subject, err := h.tokens.Redeem(c.Request.Context(), raw, tokens.PurposeEmailVerify)
	if err != nil {
		response.BadRequest(c, "invalid or expired token")
		return
	}
	userID, err := uuid.Parse(subject)
	if err != nil {
		response.BadRequest(c, "invalid or expired token")
		return
	}
	if err := h.repo.SetVerified(c.Request.Context(), userID); err != nil {
		response.Internal(c, "failed to verify email")
		return
	}
	response.OK(c, gin.H{"message": "email verified"})
}

// ForgotPassword handles POST /auth/forgot-password. The response is
// identical whether or not the email exists.
func (h *Handler) ForgotPassword(c *gin.Context) {
	var req struct {
		Email string `json:"email" binding:"required,email"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}

	user, err := h.repo.GetByEmail(c.Request.Context(), req.Email)
	if err == nil && user != nil {
		raw, err := h.tokens.Issue(c.Request.Context(), user.ID.String(), tokens.PurposePasswordReset, h.cfg.ResetTTL)
		if err != nil {
			h.logger.Error("issue reset token failed", zap.Error(err))
		} else {
			h.enqueueEmail(c.Request.Context(), queue.JobTypeResetPassword, user.Email, raw,
				fmt.Sprintf("%s/auth/reset-password?token=%s", h.cfg.PublicBaseURL, raw))
		}
	}
	response.OK(c, gin.H{"message": "password reset link sent if the account exists"})
}

// ResetPassword handles POST /auth/reset-password.
func (h *Handler) ResetPassword(c *gin.Context) {
	var req struct {
		Token       string `json:"token" binding:"required"`
		NewPassword string `json:"new_password" binding:"required,min=8"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}

	subject, err := h.tokens.Redeem(c.Request.Context(), req.Token, tokens.PurposePasswordReset)
	if err != nil {
		response.BadRequest(c, "invalid or expired token")
		return
	}
	userID, err := uuid.Parse(subject)
	if err != nil {
		response.BadRequest(c, "invalid or expired token")
		return
	}

	hash, err := utils.HashPassword(req.NewPassword)
	if err != nil {
		response.Internal(c, "failed to hash password")
		return
	}
	if err := h.repo.UpdatePassword(c.Request.Context(), userID, hash); err != nil {
		response.Internal(c, "failed to reset password")
		return
	}
	// A fresh password invalidates the current session.
	if err := h.sessions.Logout(c.Request.Context(), userID); err != nil {
		h.logger.Warn("session revoke after reset failed", zap.Error(err), zap.String("user_id", userID.String()))
	}
	response.OK(c, gin.H{"message": "password reset"})
}

// ResendVerification handles POST /auth/resend-verification.
func (h *Handler) ResendVerification(c *gin.Context) {
	principal := gateway.MustPrincipal(c)
	user, err := h.repo.GetByID(c.Request.Context(), principal.ID)
	if err != nil || user == nil {
		response.NotFound(c, "user not found")
		return
	}
	if user.Verified {
		response.BadRequest(c, "email already verified")
		return
	}
	h.sendVerification(c.Request.Context(), user)
	response.OK(c, gin.H{"message": "verification email sent"})
}

func (h *Handler) sendVerification(ctx context.Context, user *models.User) {
	raw, err := h.tokens.Issue(ctx, user.ID.String(), tokens.PurposeEmailVerify, h.cfg.VerifyTTL)
	if err != nil {
		h.logger.Error("issue verification token failed", zap.Error(err), zap.String("user_id", user.ID.String()))
		return
	}
	h.enqueueEmail(ctx, queue.JobTypeVerifyEmail, user.Email, raw,
		fmt.Sprintf("%s/auth/verify-email?token=%s", h.cfg.PublicBaseURL, raw))
}

func (h *Handler) enqueueEmail(ctx context.Context, jobType queue.JobType, recipient, token, link string) {
	err := h.queue.EnqueueEmail(ctx, jobType, queue.EmailPayload{
		Recipient: recipient,
		Token:     token,
		Link:      link,
	})
	if err != nil {
		// The token is already issued and independently redeemable; a
		// failed enqueue is logged, not propagated.
		h.logger.Error("enqueue email failed", zap.Error(err), zap.String("type", string(jobType)))
	}
}
