package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/train4best-api/internal/models"
	"github.com/noah-isme/train4best-api/internal/service"
	appErrors "github.com/noah-isme/train4best-api/pkg/errors"
	"github.com/noah-isme/train4best-api/pkg/middleware/requestid"
	"github.com/noah-isme/train4best-api/pkg/response"
)

type stubResolver map[string]*models.AuthContext

func (s stubResolver) ResolveAuthContext(token string) (*models.AuthContext, error) {
	if authCtx, ok := s[token]; ok {
		return authCtx, nil
	}
	return nil, appErrors.Clone(appErrors.ErrUnauthorized, "invalid token")
}

var testResolver = stubResolver{
	"admin-token":  {UserID: "u-admin", Email: "admin@example.com", Role: models.RoleAdmin},
	"member-token": {UserID: "u-member", Email: "member@example.com", Role: models.RoleParticipant},
}

func serve(router *gin.Engine, method, path, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestOptionalJWT(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	var seen *models.AuthContext
	router.GET("/", OptionalJWT(testResolver), func(c *gin.Context) {
		seen = AuthContext(c)
		c.Status(http.StatusNoContent)
	})

	rec := serve(router, http.MethodGet, "/", "member-token")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	require.NotNil(t, seen)
	assert.Equal(t, "u-member", seen.UserID)

	rec = serve(router, http.MethodGet, "/", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Nil(t, seen)
}

func TestOptionalJWTRejectsPresentButInvalidCredentials(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	called := false
	router.GET("/", OptionalJWT(testResolver), func(c *gin.Context) {
		called = true
		c.Status(http.StatusNoContent)
	})

	rec := serve(router, http.MethodGet, "/", "expired-token")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), appErrors.ErrUnauthorized.Code)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Basic abc")
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	assert.False(t, called)
}

func TestJWTRequiresToken(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.GET("/", JWT(testResolver), func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})

	assert.Equal(t, http.StatusUnauthorized, serve(router, http.MethodGet, "/", "").Code)
	assert.Equal(t, http.StatusUnauthorized, serve(router, http.MethodGet, "/", "garbage").Code)
	assert.Equal(t, http.StatusNoContent, serve(router, http.MethodGet, "/", "member-token").Code)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Basic abc")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRequireRoles(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.GET("/admin", JWT(testResolver), RequireRoles(models.RoleAdmin, models.RoleSuperAdmin), func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})
	router.GET("/users/:id", JWT(testResolver), RBAC(string(models.RoleAdmin), "SELF"), func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})
	router.GET("/open", RBAC(string(models.RoleAdmin)), func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})

	assert.Equal(t, http.StatusNoContent, serve(router, http.MethodGet, "/admin", "admin-token").Code)
	assert.Equal(t, http.StatusForbidden, serve(router, http.MethodGet, "/admin", "member-token").Code)
	assert.Equal(t, http.StatusNoContent, serve(router, http.MethodGet, "/users/u-member", "member-token").Code)
	assert.Equal(t, http.StatusForbidden, serve(router, http.MethodGet, "/users/u-other", "member-token").Code)
	assert.Equal(t, http.StatusUnauthorized, serve(router, http.MethodGet, "/open", "").Code)
}

type auditRecorder struct {
	logs []*models.AuditLog
	err  error
}

func (a *auditRecorder) CreateAuditLog(ctx context.Context, log *models.AuditLog) error {
	a.logs = append(a.logs, log)
	return a.err
}

func TestAuditRecordsSuccessfulRequests(t *testing.T) {
	gin.SetMode(gin.TestMode)
	audit := &auditRecorder{}
	router := gin.New()
	router.GET("/ok", JWT(testResolver), Audit(audit, models.AuditActionExportDownload, "exports"), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})
	router.GET("/fail", Audit(audit, models.AuditActionExportDownload, "exports"), func(c *gin.Context) {
		c.Status(http.StatusForbidden)
	})

	serve(router, http.MethodGet, "/ok", "admin-token")
	serve(router, http.MethodGet, "/fail", "")

	require.Len(t, audit.logs, 1)
	assert.Equal(t, models.AuditActionExportDownload, audit.logs[0].Action)
	require.NotNil(t, audit.logs[0].UserID)
	assert.Equal(t, "u-admin", *audit.logs[0].UserID)

	audit.err = errors.New("db down")
	assert.Equal(t, http.StatusOK, serve(router, http.MethodGet, "/ok", "admin-token").Code)
}

func TestMetricsMiddlewareUsesRoutePattern(t *testing.T) {
	gin.SetMode(gin.TestMode)
	metrics := service.NewMetricsService()
	router := gin.New()
	router.Use(Metrics(metrics))
	router.GET("/classes/:id", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	serve(router, http.MethodGet, "/classes/abc", "")

	families, err := metrics.Registry().Gather()
	require.NoError(t, err)
	found := false
	for _, family := range families {
		for _, metric := range family.GetMetric() {
			for _, label := range metric.GetLabel() {
				if label.GetName() == "path" && label.GetValue() == "/classes/:id" {
					found = true
				}
			}
		}
	}
	assert.True(t, found)
}

func TestResponseMeta(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(requestid.Middleware(), WithResponseMeta())
	router.GET("/cached", func(c *gin.Context) {
		SetCacheHit(c, true)
		response.JSON(c, http.StatusOK, "ok", nil, ExtractMeta(c))
	})

	req := httptest.NewRequest(http.MethodGet, "/cached", nil)
	req.Header.Set("X-Request-ID", "req-123")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"request_id":"req-123"`)
	assert.Contains(t, rec.Body.String(), `"cache_hit":true`)
}

func TestExtractMetaEmpty(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(WithResponseMeta())
	var meta map[string]interface{}
	router.GET("/", func(c *gin.Context) {
		meta = ExtractMeta(c)
		c.Status(http.StatusNoContent)
	})

	serve(router, http.MethodGet, "/", "")
	assert.Nil(t, meta)
}
