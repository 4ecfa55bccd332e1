package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/train4best-api/internal/models"
	appErrors "github.com/noah-isme/train4best-api/pkg/errors"
	"github.com/noah-isme/train4best-api/pkg/response"
)

// ContextAuthKey is the gin context key storing the resolved *models.AuthContext.
const ContextAuthKey = "authContext"

// TokenResolver turns a bearer token into the caller's auth context.
type TokenResolver interface {
	ResolveAuthContext(token string) (*models.AuthContext, error)
}

// JWT protects routes by requiring a valid access token.
func JWT(resolver TokenResolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.GetHeader("Authorization") == "" {
			response.Error(c, appErrors.ErrUnauthorized)
			c.Abort()
			return
		}
		authenticate(c, resolver)
	}
}

// OptionalJWT lets requests without an Authorization header through anonymously. A header
// that is present must carry a valid token; stale or malformed credentials get 401 instead
// of silently falling back to anonymous access.
func OptionalJWT(resolver TokenResolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		if strings.TrimSpace(c.GetHeader("Authorization")) == "" {
			c.Next()
			return
		}
		authenticate(c, resolver)
	}
}

func authenticate(c *gin.Context, resolver TokenResolver) {
	token, ok := bearerToken(c.GetHeader("Authorization"))
	if !ok {
		response.Error(c, appErrors.Clone(appErrors.ErrUnauthorized, "invalid authorization header"))
		c.Abort()
		return
	}

	authCtx, err := resolver.ResolveAuthContext(token)
	if err != nil {
		response.Error(c, err)
		c.Abort()
		return
	}

	c.Set(ContextAuthKey, authCtx)
	c.Next()
}

// AuthContext returns the caller resolved by JWT or OptionalJWT, or nil for anonymous requests.
func AuthContext(c *gin.Context) *models.AuthContext {
	value, exists := c.Get(ContextAuthKey)
	if !exists {
		return nil
	}
	authCtx, _ := value.(*models.AuthContext)
	return authCtx
}

func bearerToken(header string) (string, bool) {
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", false
	}
	token := strings.TrimSpace(parts[1])
	return token, token != ""
}
