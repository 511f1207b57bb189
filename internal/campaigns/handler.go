package campaigns

import (
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/linkforge/backend/internal/cache"
	"github.com/linkforge/backend/internal/gateway"
	"github.com/linkforge/backend/internal/models"
	"github.com/linkforge/backend/internal/rbac"
	"github.com/linkforge/backend/pkg/response"
)

// Handler handles campaign HTTP endpoints.
type Handler struct {
	repo      *Repository
	evaluator *rbac.Evaluator
	cache     *cache.Layer
	logger    *zap.Logger
}

// NewHandler creates a campaigns handler.
func NewHandler(repo *Repository, evaluator *rbac.Evaluator, cacheLayer *cache.Layer, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{repo: repo, evaluator: evaluator, cache: cacheLayer, logger: logger}
}

// CampaignRequest is the body for campaign create and update.
type CampaignRequest struct {
	Name        string `json:"name" binding:"required,min=2,max=100"`
	Description string `json:"description"`
}

// Create handles POST /orgs/:orgID/campaigns.
func (h *Handler) Create(c *gin.Context) {
	orgID, ok := h.requireMember(c)
	if !ok {
		return
	}
	var req CampaignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}

	campaign := &models.Campaign{
		OrganizationID: orgID,
		Name:           req.Name,
		Description:    req.Description,
	}
	if err := h.repo.Create(c.Request.Context(), campaign); err != nil {
		response.Internal(c, "failed to create campaign")
		return
	}
	h.invalidate(c, orgID)
	response.Created(c, campaign)
}

// List handles GET /orgs/:orgID/campaigns.
func (h *Handler) List(c *gin.Context) {
	orgID, ok := h.requireMember(c)
	if !ok {
		return
	}
	list, err := h.repo.ListByOrg(c.Request.Context(), orgID)
	if err != nil {
		response.Internal(c, "failed to list campaigns")
		return
	}
	response.OK(c, list)
}

// Get handles GET /orgs/:orgID/campaigns/:campaignID.
func (h *Handler) Get(c *gin.Context) {
	campaign, ok := h.resolveCampaign(c)
	if !ok {
		return
	}
	response.OK(c, campaign)
}

// Update handles PATCH /orgs/:orgID/campaigns/:campaignID.
func (h *Handler) Update(c *gin.Context) {
	campaign, ok := h.resolveCampaign(c)
	if !ok {
		return
	}
	var req CampaignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	campaign.Name = req.Name
	campaign.Description = req.Description

	if err := h.repo.Update(c.Request.Context(), campaign); err != nil {
		response.Internal(c, "failed to update campaign")
		return
	}
	h.invalidate(c, campaign.OrganizationID)
	response.OK(c, campaign)
}

// Delete handles DELETE /orgs/:orgID/campaigns/:campaignID.
func (h *Handler) Delete(c *gin.Context) {
	campaign, ok := h.resolveCampaign(c)
	if !ok {
		return
	}
	if err := h.repo.Delete(c.Request.Context(), campaign.ID); err != nil {
		response.Internal(c, "failed to delete campaign")
		return
	}
	h.invalidate(c, campaign.OrganizationID)
	response.NoContent(c)
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

func (h *Handler) resolveCampaign(c *gin.Context) (*models.Campaign, bool) {
	orgID, ok := h.requireMember(c)
	if !ok {
		return nil, false
	}
	campaignID, err := uuid.Parse(c.Param("campaignID"))
	if err != nil {
		response.BadRequest(c, "invalid campaign id")
		return nil, false
	}
	campaign, err := h.repo.GetByID(c.Request.Context(), campaignID)
	if err != nil {
		response.Internal(c, "failed to load campaign")
		return nil, false
	}
	if campaign == nil || campaign.OrganizationID != orgID {
		response.NotFound(c, "campaign not found")
		return nil, false
	}
	return campaign, true
}

func (h *Handler) invalidate(c *gin.Context, orgID uuid.UUID) {
	h.cache.Invalidate(c.Request.Context(),
		fmt.Sprintf("/api/v1/orgs/%s/campaigns", orgID),
	)
}
