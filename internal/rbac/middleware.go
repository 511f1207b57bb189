package rbac

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/linkforge/backend/internal/gateway"
	"github.com/linkforge/backend/pkg/response"
)

// RequireMember returns middleware that rejects callers who are not
// members of the :orgID organization. It must run before any response
// caching so a cached entry is only ever served to a caller who passed
// the membership check on this request. Non-members get the same
// not-found as a nonexistent organization.
func RequireMember(e *Evaluator) gin.HandlerFunc {
	return func(c *gin.Context) {
		orgID, err := uuid.Parse(c.Param("orgID"))
		if err != nil {
			response.BadRequest(c, "invalid organization id")
			c.Abort()
			return
		}
		principal := gateway.MustPrincipal(c)
		member, err := e.IsMember(c.Request.Context(), principal.ID, orgID)
		if err != nil {
			response.Internal(c, "failed to check membership")
			c.Abort()
			return
		}
		if !member {
			response.NotFound(c, "organization not found")
			c.Abort()
			return
		}
		c.Next()
	}
}
