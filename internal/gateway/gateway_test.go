package gateway

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRouter(valid string, principal Principal) *gin.Engine {
	gin.SetMode(gin.TestMode)
	gw := New(func(token string) (Principal, error) {
		if token == valid {
			return principal, nil
		}
		return Principal{}, errors.New("bad token")
	})

	router := gin.New()
	router.GET("/protected", gw.Middleware(Options{}), func(c *gin.Context) {
		p := MustPrincipal(c)
		c.JSON(http.StatusOK, gin.H{"user_id": p.ID})
	})
	router.GET("/public", gw.Middleware(Options{Public: true}), func(c *gin.Context) {
		if p, ok := PrincipalFrom(c); ok {
			c.JSON(http.StatusOK, gin.H{"user_id": p.ID})
			return
		}
		c.JSON(http.StatusOK, gin.H{"anonymous": true})
	})
	return router
}

func doRequest(router *gin.Engine, path, authHeader string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}
	router.ServeHTTP(w, req)
	return w
}

func TestProtectedRejectsMissingHeader(t *testing.T) {
	router := newTestRouter("good", Principal{ID: uuid.New()})
	w := doRequest(router, "/protected", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestProtectedRejectsMalformedHeader(t *testing.T) {
	router := newTestRouter("good", Principal{ID: uuid.New()})
	w := doRequest(router, "/protected", "Token abc")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestProtectedRejectsInvalidToken(t *testing.T) {
	router := newTestRouter("good", Principal{ID: uuid.New()})
	w := doRequest(router, "/protected", "Bearer bad")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestProtectedAttachesPrincipal(t *testing.T) {
	id := uuid.New()
	router := newTestRouter("good", Principal{ID: id, Email: "a@b.com"})
	w := doRequest(router, "/protected", "Bearer good")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), id.String())
}

func TestPublicAllowsAnonymous(t *testing.T) {
	router := newTestRouter("good", Principal{ID: uuid.New()})
	w := doRequest(router, "/public", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "anonymous")
}

func TestPublicIgnoresInvalidToken(t *testing.T) {
	router := newTestRouter("good", Principal{ID: uuid.New()})
	w := doRequest(router, "/public", "Bearer bad")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "anonymous")
}

func TestPublicAttachesValidPrincipal(t *testing.T) {
	id := uuid.New()
	router := newTestRouter("good", Principal{ID: id})
	w := doRequest(router, "/public", "Bearer good")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), id.String())
}
