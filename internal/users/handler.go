package users

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/linkforge/backend/internal/gateway"
	"github.com/linkforge/backend/internal/models"
	"github.com/linkforge/backend/pkg/response"
	"github.com/linkforge/backend/pkg/utils"
)

// Handler handles user profile HTTP endpoints.
type Handler struct {
	repo   *Repository
	logger *zap.Logger
}

// NewHandler creates a users handler.
func NewHandler(repo *Repository, logger *zap.Logger) *Handler {
	return &Handler{repo: repo, logger: logger}
}

// UpdateProfileRequest is the body for PATCH /users/me.
type UpdateProfileRequest struct {
	FirstName  string `json:"first_name"`
	LastName   string `json:"last_name"`
	Username   string `json:"username"`
	ProfileURL string `json:"profile_url"`
}

// ChangePasswordRequest is the body for POST /users/me/password.
type ChangePasswordRequest struct {
	OldPassword string `json:"old_password" binding:"required"`
	NewPassword string `json:"new_password" binding:"required,min=8"`
}

// Me handles GET /users/me.
func (h *Handler) Me(c *gin.Context) {
	principal := gateway.MustPrincipal(c)
	user, err := h.repo.GetByID(c.Request.Context(), principal.ID)
	if err != nil || user == nil {
		response.NotFound(c, "user not found")
		return
	}
	response.OK(c, user.ToPublic())
}

// Update handles PATCH /users/me.
func (h *Handler) Update(c *gin.Context) {
	principal := gateway.MustPrincipal(c)
	var req UpdateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}

	user, err := h.repo.GetByID(c.Request.Context(), principal.ID)
	if err != nil || user == nil {
		response.NotFound(c, "user not found")
		return
	}
	if req.FirstName != "" {
		user.FirstName = req.FirstName
	}
	if req.LastName != "" {
		user.LastName = req.LastName
	}
	if req.Username != "" {
		user.Username = req.Username
	}
	if req.ProfileURL != "" {
		user.ProfileURL = req.ProfileURL
	}

	if err := h.repo.UpdateProfile(c.Request.Context(), user); err != nil {
		if err == models.ErrConflict {
			response.Conflict(c, "username already taken")
			return
		}
		response.Internal(c, "failed to update profile")
		return
	}
	response.OK(c, user.ToPublic())
}

// ChangePassword handles POST /users/me/password.
func (h *Handler) ChangePassword(c *gin.Context) {
	principal := gateway.MustPrincipal(c)
	var req ChangePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}

	user, err := h.repo.GetByID(c.Request.Context(), principal.ID)
	if err != nil || user == nil {
		response.NotFound(c, "user not found")
		return
	}
	if !utils.CheckPassword(req.OldPassword, user.Password) {
		response.BadRequest(c, "password does not match")
		return
	}

	hash, err := utils.HashPassword(req.NewPassword)
	if err != nil {
		response.Internal(c, "failed to hash password")
		return
	}
	if err := h.repo.UpdatePassword(c.Request.Context(), principal.ID, hash); err != nil {
		response.Internal(c, "failed to change password")
		return
	}
	response.OK(c, gin.H{"message": "password changed"})
}

// Retire handles DELETE /users/me. The account is retired, not deleted.
func (h *Handler) Retire(c *gin.Context) {
	principal := gateway.MustPrincipal(c)
	if err := h.repo.Retire(c.Request.Context(), principal.ID); err != nil {
		response.Internal(c, "failed to retire account")
		return
	}
	h.logger.Info("user retired", zap.String("user_id", principal.ID.String()))
	response.NoContent(c)
}
