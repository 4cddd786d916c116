package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(OrgID())
	r.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"org_id": OrgIDFromGin(c)})
	})
	return r
}

func TestOrgIDMissingHeader(t *testing.T) {
	r := setupRouter()

	req, _ := http.NewRequest("GET", "/ping", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "X-Org-ID")
}

func TestOrgIDMalformedHeader(t *testing.T) {
	r := setupRouter()

	req, _ := http.NewRequest("GET", "/ping", nil)
	req.Header.Set("X-Org-ID", "not-a-uuid")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestOrgIDThreadsTenantThroughContext(t *testing.T) {
	gin.SetMode(gin.TestMode)
	orgID := uuid.New()

	var fromCtx uuid.UUID
	var fromGin uuid.UUID
	r := gin.New()
	r.Use(OrgID())
	r.GET("/ping", func(c *gin.Context) {
		fromGin = OrgIDFromGin(c)
		fromCtx, _ = OrgIDFromContext(c.Request.Context())
		c.Status(http.StatusOK)
	})

	req, _ := http.NewRequest("GET", "/ping", nil)
	req.Header.Set("X-Org-ID", orgID.String())
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, orgID, fromGin)
	assert.Equal(t, orgID, fromCtx)
}

func TestOrgIDFromContextMissing(t *testing.T) {
	_, ok := OrgIDFromContext(context.Background())
	assert.False(t, ok)
}

func TestCORSPreflight(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(CORS())

	req, _ := http.NewRequest("OPTIONS", "/anything", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Access-Control-Allow-Headers"), "X-Org-ID")
}

func TestRecoveryTurnsPanicInto500(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(Recovery())
	r.GET("/boom", func(c *gin.Context) {
		panic("kaboom")
	})

	req, _ := http.NewRequest("GET", "/boom", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), "internal server error")
}
