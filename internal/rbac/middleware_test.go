package rbac

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/linkforge/backend/internal/cache"
	"github.com/linkforge/backend/internal/gateway"
	"github.com/linkforge/backend/internal/models"
)

// newMembershipRouter wires the production middleware order for a cached
// org-scoped read: gateway, membership check, cache, handler. The bearer
// token is the caller's user id.
func newMembershipRouter(t *testing.T, store *fakeStore) (*gin.Engine, *int) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	layer := cache.New(client, cache.Config{Prefix: "cache:", DefaultTTL: time.Minute, LocalTTL: time.Minute}, nil)

	gw := gateway.New(func(token string) (gateway.Principal, error) {
		id, err := uuid.Parse(token)
		if err != nil {
			return gateway.Principal{}, err
		}
		return gateway.Principal{ID: id}, nil
	})

	hits := 0
	router := gin.New()
	router.GET("/orgs/:orgID/members",
		gw.Middleware(gateway.Options{}),
		RequireMember(NewEvaluator(store, nil)),
		cache.Middleware(layer, cache.Options{}),
		func(c *gin.Context) {
			hits++
			c.JSON(http.StatusOK, gin.H{"members": []string{"alice", "bob"}})
		})
	return router, &hits
}

func getAs(router *gin.Engine, path string, userID uuid.UUID) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	req.Header.Set("Authorization", "Bearer "+userID.String())
	router.ServeHTTP(w, req)
	return w
}

func TestRequireMemberGuardsCachedReads(t *testing.T) {
	member, outsider, orgID := uuid.New(), uuid.New(), uuid.New()
	store := &fakeStore{
		memberships: map[string]*models.Membership{
			membershipKey(member, orgID): {UserID: member, OrganizationID: orgID},
		},
	}
	router, hits := newMembershipRouter(t, store)
	path := "/orgs/" + orgID.String() + "/members"

	// A member primes the cache; a repeat read is served from it.
	w := getAs(router, path, member)
	require.Equal(t, http.StatusOK, w.Code)
	w = getAs(router, path, member)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1, *hits)

	// A non-member must not be served the cached entry: the membership
	// check runs before the cache and rejects the request outright.
	w = getAs(router, path, outsider)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.NotContains(t, w.Body.String(), "alice")
	assert.Equal(t, 1, *hits)
}

func TestRequireMemberRejectsBadOrgID(t *testing.T) {
	store := &fakeStore{memberships: map[string]*models.Membership{}}
	router, hits := newMembershipRouter(t, store)

	w := getAs(router, "/orgs/not-a-uuid/members", uuid.New())
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, 0, *hits)
}
