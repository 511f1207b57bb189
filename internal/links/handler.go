package links

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/linkforge/backend/internal/cache"
	"github.com/linkforge/backend/internal/gateway"
	"github.com/linkforge/backend/internal/models"
	"github.com/linkforge/backend/internal/rbac"
	"github.com/linkforge/backend/pkg/response"
)

const redirectTTL = 5 * time.Minute

// Handler handles link HTTP endpoints, including the public redirect.
type Handler struct {
	repo      *Repository
	evaluator *rbac.Evaluator
	cache     *cache.Layer
	logger    *zap.Logger
}

// NewHandler creates a links handler.
func NewHandler(repo *Repository, evaluator *rbac.Evaluator, cacheLayer *cache.Layer, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{repo: repo, evaluator: evaluator, cache: cacheLayer, logger: logger}
}

// CreateRequest is the body for POST /orgs/:orgID/links.
type CreateRequest struct {
	Slug        string     `json:"slug"`
	Description string     `json:"description"`
	Type        string     `json:"type"`
	TargetURL   string     `json:"target_url" binding:"required,url"`
	CampaignID  *uuid.UUID `json:"campaign_id"`
	Shielded    bool       `json:"shielded"`
}

// UpdateRequest is the body for PATCH /orgs/:orgID/links/:linkID.
type UpdateRequest struct {
	Description *string    `json:"description"`
	TargetURL   *string    `json:"target_url"`
	CampaignID  *uuid.UUID `json:"campaign_id"`
	Active      *bool      `json:"active"`
	Shielded    *bool      `json:"shielded"`
}

// Create handles POST /orgs/:orgID/links. Any member may create links;
// an omitted slug gets a random one.
func (h *Handler) Create(c *gin.Context) {
	orgID, ok := h.requireMember(c)
	if !ok {
		return
	}

	var req CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}

	linkType := models.LinkType(req.Type)
	if linkType == "" {
		linkType = models.LinkDirect
	}
	if linkType != models.LinkDirect && linkType != models.LinkLanding {
		response.BadRequest(c, "invalid link type")
		return
	}

	slug := req.Slug
	if slug == "" {
		var err error
		slug, err = randomSlug()
		if err != nil {
			response.Internal(c, "failed to generate slug")
			return
		}
	}

	principal := gateway.MustPrincipal(c)
	link := &models.Link{
		OrganizationID: orgID,
		CampaignID:     req.CampaignID,
		CreatedBy:      &principal.ID,
		Slug:           slug,
		Description:    req.Description,
		Type:           linkType,
		TargetURL:      req.TargetURL,
		Shielded:       req.Shielded,
	}
	if err := h.repo.Create(c.Request.Context(), link); err != nil {
		if errors.Is(err, models.ErrConflict) {
			response.Conflict(c, "slug already taken")
			return
		}
		response.Internal(c, "failed to create link")
		return
	}
	h.invalidate(c, link)
	response.Created(c, link)
}

// List handles GET /orgs/:orgID/links.
func (h *Handler) List(c *gin.Context) {
	orgID, ok := h.requireMember(c)
	if !ok {
		return
	}
	list, err := h.repo.ListByOrg(c.Request.Context(), orgID)
	if err != nil {
		response.Internal(c, "failed to list links")
		return
	}
	response.OK(c, list)
}

// Get handles GET /orgs/:orgID/links/:linkID.
func (h *Handler) Get(c *gin.Context) {
	link, ok := h.resolveLink(c)
	if !ok {
		return
	}
	response.OK(c, link)
}

// Update handles PATCH /orgs/:orgID/links/:linkID.
func (h *Handler) Update(c *gin.Context) {
	link, ok := h.resolveLink(c)
	if !ok {
		return
	}

	var req UpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	if req.Description != nil {
		link.Description = *req.Description
	}
	if req.TargetURL != nil {
		link.TargetURL = *req.TargetURL
	}
	if req.CampaignID != nil {
		link.CampaignID = req.CampaignID
	}
	if req.Active != nil {
		link.Active = *req.Active
	}
	if req.Shielded != nil {
		link.Shielded = *req.Shielded
	}

	if err := h.repo.Update(c.Request.Context(), link); err != nil {
		response.Internal(c, "failed to update link")
		return
	}
	h.invalidate(c, link)
	response.OK(c, link)
}

// Delete handles DELETE /orgs/:orgID/links/:linkID.
func (h *Handler) Delete(c *gin.Context) {
	link, ok := h.resolveLink(c)
	if !ok {
		return
	}
	if err := h.repo.Delete(c.Request.Context(), link.ID); err != nil {
		response.Internal(c, "failed to delete link")
		return
	}
	h.invalidate(c, link)
	response.NoContent(c)
}

// Redirect handles GET /l/:slug, the public hot path. Resolved targets
// are cached; a cached entry avoids the database entirely.
func (h *Handler) Redirect(c *gin.Context) {
	slug := c.Param("slug")
	key := redirectKey(slug)

	if data, err := h.cache.Get(c.Request.Context(), key); err == nil {
		var link models.Link
		if json.Unmarshal(data, &link) == nil {
			h.serveRedirect(c, &link)
			return
		}
	}

	link, err := h.repo.GetBySlug(c.Request.Context(), slug)
	if err != nil {
		h.logger.Error("redirect lookup failed", zap.String("slug", slug), zap.Error(err))
		response.ServiceUnavailable(c, "temporarily unavailable")
		return
	}
	if link == nil {
		response.NotFound(c, "link not found")
		return
	}
	if data, err := json.Marshal(link); err == nil {
		h.cache.Set(c.Request.Context(), key, data, redirectTTL)
	}
	h.serveRedirect(c, link)
}

func (h *Handler) serveRedirect(c *gin.Context, link *models.Link) {
	if link.Type == models.LinkLanding || link.TargetURL == "" {
		response.OK(c, link)
		return
	}
	if link.Shielded {
		// Shielded links interpose a confirmation page instead of an
		// immediate redirect.
		response.OK(c, gin.H{"target_url": link.TargetURL, "shielded": true})
		return
	}
	c.Redirect(http.StatusFound, link.TargetURL)
}

func (h *Handler) requireMember(c *gin.Context) (uuid.UUID, bool) {
	orgID, err := uuid.Parse(c.Param("orgID"))
	if err != nil {
		response.BadRequest(c, "invalid organization id")
		return uuid.Nil, false
	}
	principal := gateway.MustPrincipal(c)
	member, err := h.evaluator.IsMember(c.Request.Context(), principal.ID, orgID)
	if err != nil {
		response.Internal(c, "failed to check membership")
		return uuid.Nil, false
	}
	if !member {
		response.NotFound(c, "organization not found")
		return uuid.Nil, false
	}
	return orgID, true
}

// resolveLink loads :linkID and verifies it belongs to :orgID with the
// caller a member.
func (h *Handler) resolveLink(c *gin.Context) (*models.Link, bool) {
	orgID, ok := h.requireMember(c)
	if !ok {
		return nil, false
	}
	linkID, err := uuid.Parse(c.Param("linkID"))
	if err != nil {
		response.BadRequest(c, "invalid link id")
		return nil, false
	}
	link, err := h.repo.GetByID(c.Request.Context(), linkID)
	if err != nil {
		response.Internal(c, "failed to load link")
		return nil, false
	}
	if link == nil || link.OrganizationID != orgID {
		response.NotFound(c, "link not found")
		return nil, false
	}
	return link, true
}

func (h *Handler) invalidate(c *gin.Context, link *models.Link) {
	h.cache.Invalidate(c.Request.Context(),
		redirectKey(link.Slug),
		fmt.Sprintf("/api/v1/orgs/%s/links", link.OrganizationID),
	)
}

func redirectKey(slug string) string {
	return "link:" + slug
}

func randomSlug() (string, error) {
	buf := make([]byte, 4)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
