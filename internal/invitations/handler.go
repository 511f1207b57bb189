package invitations

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
	"github.com/linkforge/backend/internal/organizations"
	"github.com/linkforge/backend/internal/rbac"
	"github.com/linkforge/backend/internal/tokens"
	"github.com/linkforge/backend/pkg/queue"
	"github.com/linkforge/backend/pkg/response"
)

// HandlerConfig holds invitation TTL and link building settings.
type HandlerConfig struct {
	InviteTTL     time.Duration
	PublicBaseURL string
}

// Handler handles invitation HTTP endpoints.
type Handler struct {
	repo      *Repository
	orgs      *organizations.Repository
	evaluator *rbac.Evaluator
	tokens    *tokens.Manager
	queue     *queue.Queue
	cfg       HandlerConfig
	logger    *zap.Logger
}

// NewHandler creates an invitations handler.
func NewHandler(repo *Repository, orgs *organizations.Repository, evaluator *rbac.Evaluator,
	tm *tokens.Manager, q *queue.Queue, cfg HandlerConfig, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{repo: repo, orgs: orgs, evaluator: evaluator, tokens: tm, queue: q, cfg: cfg, logger: logger}
}

// CreateRequest is the body for POST /orgs/:orgID/invitations.
type CreateRequest struct {
	Email  string     `json:"email" binding:"required,email"`
	RoleID *uuid.UUID `json:"role_id"`
}

// AcceptRequest is the body for POST /invitations/accept.
type AcceptRequest struct {
	Token string `json:"token" binding:"required"`
}

// Create handles POST /orgs/:orgID/invitations. Requires manageUsers.
// The raw secret goes to the mail queue once; only its hash persists.
func (h *Handler) Create(c *gin.Context) {
	orgID, allowed := h.requireManageUsers(c)
	if !allowed {
		return
	}

	var req CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}

	if req.RoleID != nil {
		role, err := h.orgs.GetRoleInOrg(c.Request.Context(), *req.RoleID, orgID)
		if err != nil {
			response.Internal(c, "failed to resolve role")
			return
		}
		if role == nil {
			response.BadRequest(c, "role does not belong to this organization")
			return
		}
	}

	principal := gateway.MustPrincipal(c)
	inv := &models.Invitation{
		ID:             uuid.New(),
		OrganizationID: orgID,
		RoleID:         req.RoleID,
		Email:          req.Email,
		InvitedBy:      principal.ID,
		ExpiresAt:      time.Now().Add(h.cfg.InviteTTL),
	}

	raw, err := h.tokens.Issue(c.Request.Context(), inv.ID.String(), tokens.PurposeInvite, h.cfg.InviteTTL)
	if err != nil {
		h.logger.Error("issue invitation token failed", zap.Error(err))
		response.ServiceUnavailable(c, "invitations temporarily unavailable")
		return
	}
	inv.TokenHash = tokens.Hash(raw)

	if err := h.repo.Create(c.Request.Context(), inv); err != nil {
		if errors.Is(err, models.ErrConflict) {
			response.Conflict(c, "invitation already exists")
			return
		}
		response.Internal(c, "failed to create invitation")
		return
	}

	h.enqueueInviteEmail(c.Request.Context(), inv.Email, raw)
	response.Created(c, inv)
}

// List handles GET /orgs/:orgID/invitations. Requires manageUsers.
func (h *Handler) List(c *gin.Context) {
	orgID, allowed := h.requireManageUsers(c)
	if !allowed {
		return
	}
	list, err := h.repo.ListByOrg(c.Request.Context(), orgID)
	if err != nil {
		response.Internal(c, "failed to list invitations")
		return
	}
	response.OK(c, list)
}

// Accept handles POST /invitations/accept. Redeeming the secret is
// single-use and the status transition is conditional, so the same
// invitation can never admit two users or the same user twice. The
// repository commits the status flip and the membership together.
func (h *Handler) Accept(c *gin.Context) {
	principal := gateway.MustPrincipal(c)
	var req AcceptRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}

	subject, err := h.tokens.Redeem(c.Request.Context(), req.Token, tokens.PurposeInvite)
	if err != nil {
		response.BadRequest(c, "invalid or expired invitation")
		return
	}
	invID, err := uuid.Parse(subject)
	if err != nil {
		response.BadRequest(c, "invalid or expired invitation")
		return
	}

	inv, err := h.repo.Accept(c.Request.Context(), invID, principal.ID)
	if err != nil {
		if errors.Is(err, ErrAlreadyConsumed) {
			response.BadRequest(c, "invalid or expired invitation")
			return
		}
		if errors.Is(err, models.ErrConflict) {
			response.Conflict(c, "already a member of this organization")
			return
		}
		response.Internal(c, "failed to accept invitation")
		return
	}

	h.logger.Info("invitation accepted",
		zap.String("invitation_id", inv.ID.String()),
		zap.String("org_id", inv.OrganizationID.String()),
		zap.String("user_id", principal.ID.String()))
	response.OK(c, gin.H{"organization_id": inv.OrganizationID})
}

// Revoke handles DELETE /orgs/:orgID/invitations/:invitationID. Requires
// manageUsers. Only pending invitations can be revoked.
func (h *Handler) Revoke(c *gin.Context) {
	orgID, allowed := h.requireManageUsers(c)
	if !allowed {
		return
	}
	invID, err := uuid.Parse(c.Param("invitationID"))
	if err != nil {
		response.BadRequest(c, "invalid invitation id")
		return
	}

	inv, err := h.repo.GetByID(c.Request.Context(), invID)
	if err != nil {
		response.Internal(c, "failed to load invitation")
		return
	}
	if inv == nil || inv.OrganizationID != orgID {
		response.NotFound(c, "invitation not found")
		return
	}

	if err := h.repo.Revoke(c.Request.Context(), invID); err != nil {
		if errors.Is(err, ErrAlreadyConsumed) {
			response.Conflict(c, "invitation is no longer pending")
			return
		}
		response.Internal(c, "failed to revoke invitation")
		return
	}
	response.NoContent(c)
}

func (h *Handler) requireManageUsers(c *gin.Context) (uuid.UUID, bool) {
	orgID, err := uuid.Parse(c.Param("orgID"))
	if err != nil {
		response.BadRequest(c, "invalid organization id")
		return uuid.Nil, false
	}
	principal := gateway.MustPrincipal(c)
	allowed, err := h.evaluator.CanPerform(c.Request.Context(), principal.ID, orgID, models.CapManageUsers)
	if err != nil {
		response.Internal(c, "failed to check permissions")
		return uuid.Nil, false
	}
	if !allowed {
		response.Forbidden(c, "insufficient permissions")
		return uuid.Nil, false
	}
	return orgID, true
}

func (h *Handler) enqueueInviteEmail(ctx context.Context, recipient, rawToken string) {
	err := h.queue.EnqueueEmail(ctx, queue.JobTypeInviteEmail, queue.EmailPayload{
		Recipient: recipient,
		Token:     rawToken,
		Link:      fmt.Sprintf("%s/invitations/accept?token=%s", h.cfg.PublicBaseURL, rawToken),
	})
	if err != nil {
		// The invitation stands and can be re-sent; mail delivery is
		// best-effort.
		h.logger.Error("enqueue invitation email failed", zap.Error(err), zap.String("recipient", recipient))
	}
}
