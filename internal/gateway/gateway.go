// Package gateway resolves the request principal from the bearer token
// and attaches it to the request context for downstream checks.
package gateway

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/linkforge/backend/pkg/response"
)

// Principal is the authenticated identity attached to a request.
type Principal struct {
	ID    uuid.UUID
	Email string
}

// VerifyFunc validates an access token and returns the principal it
// carries.
type VerifyFunc func(token string) (Principal, error)

const contextPrincipal = "auth_principal"

// Options marks a route public. Public routes pass through without a
// token; a valid token still attaches the principal so handlers can
// personalize if they want.
type Options struct {
	Public bool
}

// Gateway authenticates requests using access-token verification.
type Gateway struct {
	verify VerifyFunc
}

// New creates an auth gateway.
func New(verify VerifyFunc) *Gateway {
	return &Gateway{verify: verify}
}

// Middleware returns the per-route authentication middleware. Protected
// routes without a valid, unexpired, correctly signed access token are
// rejected with a generic authentication error.
func (g *Gateway) Middleware(opts Options) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := bearerToken(c)
		if !ok {
			if opts.Public {
				c.Next()
				return
			}
			response.Unauthorized(c, "missing authorization header")
			c.Abort()
			return
		}

		principal, err := g.verify(token)
		if err != nil {
			if opts.Public {
				c.Next()
				return
			}
			response.Unauthorized(c, "invalid or expired token")
			c.Abort()
			return
		}

		c.Set(contextPrincipal, principal)
		c.Next()
	}
}

// PrincipalFrom returns the request principal, if one was attached.
func PrincipalFrom(c *gin.Context) (Principal, bool) {
	v, ok := c.Get(contextPrincipal)
	if !ok {
		return Principal{}, false
	}
	p, ok := v.(Principal)
	return p, ok
}

// MustPrincipal returns the request principal; only for handlers behind
// a protected route.
func MustPrincipal(c *gin.Context) Principal {
	return c.MustGet(contextPrincipal).(Principal)
}

func bearerToken(c *gin.Context) (string, bool) {
	header := c.GetHeader("Authorization")
	if header == "" {
		return "", false
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || parts[0] != "Bearer" {
		return "", false
	}
	return parts[1], true
}
