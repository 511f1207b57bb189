package organizations

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/linkforge/backend/internal/cache"
	"github.com/linkforge/backend/internal/gateway"
	"github.com/linkforge/backend/internal/models"
	"github.com/linkforge/backend/internal/rbac"
	"github.com/linkforge/backend/pkg/response"
)

// Handler handles organization, role and membership HTTP endpoints.
type Handler struct {
	repo      *Repository
	evaluator *rbac.Evaluator
	cache     *cache.Layer
	logger    *zap.Logger
}

// NewHandler creates an organizations handler.
func NewHandler(repo *Repository, evaluator *rbac.Evaluator, cacheLayer *cache.Layer, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{repo: repo, evaluator: evaluator, cache: cacheLayer, logger: logger}
}

// CreateRequest is the body for POST /orgs.
type CreateRequest struct {
	Name        string `json:"name" binding:"required,min=2,max=100"`
	Description string `json:"description"`
}

// UpdateRequest is the body for PATCH /orgs/:orgID.
type UpdateRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// RoleRequest is the body for POST /orgs/:orgID/roles.
type RoleRequest struct {
	Name        string             `json:"name" binding:"required,min=2,max=50"`
	Description string             `json:"description"`
	Permissions models.Permissions `json:"permissions" binding:"required"`
}

// MemberRequest is the body for POST /orgs/:orgID/members.
type MemberRequest struct {
	UserID uuid.UUID  `json:"user_id" binding:"required"`
	RoleID *uuid.UUID `json:"role_id"`
}

// MemberRoleRequest is the body for PATCH /orgs/:orgID/members/:userID.
type MemberRoleRequest struct {
	RoleID uuid.UUID `json:"role_id" binding:"required"`
}

var slugUnsafe = regexp.MustCompile(`[^a-z0-9]+`)

func slugify(name string) string {
	slug := slugUnsafe.ReplaceAllString(strings.ToLower(name), "-")
	return strings.Trim(slug, "-")
}

// Create handles POST /orgs. The creator becomes the Owner; organization,
// Owner role and membership are created in one transaction.
func (h *Handler) Create(c *gin.Context) {
	principal := gateway.MustPrincipal(c)
	var req CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}

	org := &models.Organization{
		Name:        req.Name,
		Slug:        slugify(req.Name),
		Description: req.Description,
	}
	if org.Slug == "" {
		response.BadRequest(c, "name must contain at least one alphanumeric character")
		return
	}

	if err := h.repo.CreateWithOwner(c.Request.Context(), org, principal.ID); err != nil {
		if errors.Is(err, models.ErrConflict) {
			response.Conflict(c, "organization name already taken")
			return
		}
		h.logger.Error("create organization failed", zap.Error(err))
		response.Internal(c, "failed to create organization")
		return
	}
	h.invalidateOrg(c, org.ID)
	response.Created(c, org)
}

// List handles GET /orgs: organizations the caller belongs to.
func (h *Handler) List(c *gin.Context) {
	principal := gateway.MustPrincipal(c)
	list, err := h.repo.ListForUser(c.Request.Context(), principal.ID)
	if err != nil {
		response.Internal(c, "failed to list organizations")
		return
	}
	response.OK(c, list)
}

// Get handles GET /orgs/:orgID. Membership is required; non-members see
// the same not-found as a nonexistent organization.
func (h *Handler) Get(c *gin.Context) {
	org, ok := h.requireMember(c)
	if !ok {
		return
	}
	response.OK(c, org)
}

// Update handles PATCH /orgs/:orgID. Requires manageOrganization.
func (h *Handler) Update(c *gin.Context) {
	org, ok := h.requireCapability(c, models.CapManageOrganization)
	if !ok {
		return
	}

	var req UpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	if req.Name != "" {
		org.Name = req.Name
	}
	if req.Description != "" {
		org.Description = req.Description
	}

	if err := h.repo.Update(c.Request.Context(), org); err != nil {
		response.Internal(c, "failed to update organization")
		return
	}
	h.invalidateOrg(c, org.ID)
	response.OK(c, org)
}

// Retire handles DELETE /orgs/:orgID. Requires manageOrganization.
func (h *Handler) Retire(c *gin.Context) {
	org, ok := h.requireCapability(c, models.CapManageOrganization)
	if !ok {
		return
	}
	if err := h.repo.Retire(c.Request.Context(), org.ID); err != nil {
		response.Internal(c, "failed to retire organization")
		return
	}
	h.invalidateOrg(c, org.ID)
	h.logger.Info("organization retired", zap.String("org_id", org.ID.String()))
	response.NoContent(c)
}

// CreateRole handles POST /orgs/:orgID/roles. Requires manageRoles.
func (h *Handler) CreateRole(c *gin.Context) {
	org, ok := h.requireCapability(c, models.CapManageRoles)
	if !ok {
		return
	}

	var req RoleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}

	role := &models.Role{
		OrganizationID: org.ID,
		Name:           req.Name,
		Description:    req.Description,
		Permissions:    req.Permissions,
	}
	if err := h.repo.CreateRole(c.Request.Context(), role); err != nil {
		if errors.Is(err, models.ErrConflict) {
			response.Conflict(c, "role name already exists in this organization")
			return
		}
		response.Internal(c, "failed to create role")
		return
	}
	h.invalidateOrg(c, org.ID)
	response.Created(c, role)
}

// ListRoles handles GET /orgs/:orgID/roles. Membership is enough to see
// the role catalog.
func (h *Handler) ListRoles(c *gin.Context) {
	org, ok := h.requireMember(c)
	if !ok {
		return
	}
	roles, err := h.repo.ListRoles(c.Request.Context(), org.ID)
	if err != nil {
		response.Internal(c, "failed to list roles")
		return
	}
	response.OK(c, roles)
}

// AddMember handles POST /orgs/:orgID/members. Requires manageUsers.
// The role, when given, must belong to this organization.
func (h *Handler) AddMember(c *gin.Context) {
	org, ok := h.requireCapability(c, models.CapManageUsers)
	if !ok {
		return
	}

	var req MemberRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}

	if req.RoleID != nil {
		role, err := h.repo.GetRoleInOrg(c.Request.Context(), *req.RoleID, org.ID)
		if err != nil {
			response.Internal(c, "failed to resolve role")
			return
		}
		if role == nil {
			response.BadRequest(c, "role does not belong to this organization")
			return
		}
	}

	if err := h.repo.AddMember(c.Request.Context(), org.ID, req.UserID, req.RoleID); err != nil {
		if errors.Is(err, models.ErrConflict) {
			response.Conflict(c, "user is already a member")
			return
		}
		response.Internal(c, "failed to add member")
		return
	}
	h.invalidateOrg(c, org.ID)
	response.Created(c, gin.H{"message": "member added"})
}

// ListMembers handles GET /orgs/:orgID/members.
func (h *Handler) ListMembers(c *gin.Context) {
	org, ok := h.requireMember(c)
	if !ok {
		return
	}
	members, err := h.repo.ListMembers(c.Request.Context(), org.ID)
	if err != nil {
		response.Internal(c, "failed to list members")
		return
	}
	response.OK(c, members)
}

// UpdateMemberRole handles PATCH /orgs/:orgID/members/:userID. Requires
// manageUsers; the new role must belong to this organization.
func (h *Handler) UpdateMemberRole(c *gin.Context) {
	org, ok := h.requireCapability(c, models.CapManageUsers)
	if !ok {
		return
	}
	userID, err := uuid.Parse(c.Param("userID"))
	if err != nil {
		response.BadRequest(c, "invalid user id")
		return
	}

	var req MemberRoleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}

	role, err := h.repo.GetRoleInOrg(c.Request.Context(), req.RoleID, org.ID)
	if err != nil {
		response.Internal(c, "failed to resolve role")
		return
	}
	if role == nil {
		response.BadRequest(c, "role does not belong to this organization")
		return
	}

	if err := h.repo.UpdateMemberRole(c.Request.Context(), org.ID, userID, req.RoleID); err != nil {
		response.NotFound(c, "member not found")
		return
	}
	h.invalidateOrg(c, org.ID)
	response.OK(c, gin.H{"message": "member role updated"})
}

// RemoveMember handles DELETE /orgs/:orgID/members/:userID. Requires
// manageUsers.
func (h *Handler) RemoveMember(c *gin.Context) {
	org, ok := h.requireCapability(c, models.CapManageUsers)
	if !ok {
		return
	}
	userID, err := uuid.Parse(c.Param("userID"))
	if err != nil {
		response.BadRequest(c, "invalid user id")
		return
	}
	if err := h.repo.RemoveMember(c.Request.Context(), org.ID, userID); err != nil {
		response.NotFound(c, "member not found")
		return
	}
	h.invalidateOrg(c, org.ID)
	response.NoContent(c)
}

// requireMember resolves the :orgID organization and checks membership.
// On failure it writes the response and returns ok=false.
func (h *Handler) requireMember(c *gin.Context) (*models.Organization, bool) {
	org, ok := h.resolveOrg(c)
	if !ok {
		return nil, false
	}
	principal := gateway.MustPrincipal(c)
	member, err := h.evaluator.IsMember(c.Request.Context(), principal.ID, org.ID)
	if err != nil {
		response.Internal(c, "failed to check membership")
		return nil, false
	}
	if !member {
		response.NotFound(c, "organization not found")
		return nil, false
	}
	return org, true
}

// requireCapability resolves the :orgID organization and checks the
// caller's role grants the capability.
func (h *Handler) requireCapability(c *gin.Context, capability models.Capability) (*models.Organization, bool) {
	org, ok := h.resolveOrg(c)
	if !ok {
		return nil, false
	}
	principal := gateway.MustPrincipal(c)
	allowed, err := h.evaluator.CanPerform(c.Request.Context(), principal.ID, org.ID, capability)
	if err != nil {
		response.Internal(c, "failed to check permissions")
		return nil, false
	}
	if !allowed {
		response.Forbidden(c, "insufficient permissions")
		return nil, false
	}
	return org, true
}

func (h *Handler) resolveOrg(c *gin.Context) (*models.Organization, bool) {
	orgID, err := uuid.Parse(c.Param("orgID"))
	if err != nil {
		response.BadRequest(c, "invalid organization id")
		return nil, false
	}
	org, err := h.repo.GetByID(c.Request.Context(), orgID)
	if err != nil {
		response.Internal(c, "failed to load organization")
		return nil, false
	}
	if org == nil {
		response.NotFound(c, "organization not found")
		return nil, false
	}
	return org, true
}

func (h *Handler) invalidateOrg(c *gin.Context, orgID uuid.UUID) {
	if h.cache == nil {
		return
	}
	h.cache.Invalidate(c.Request.Context(),
		fmt.Sprintf("/api/v1/orgs/%s", orgID),
		fmt.Sprintf("/api/v1/orgs/%s/roles", orgID),
		fmt.Sprintf("/api/v1/orgs/%s/members", orgID),
	)
}
