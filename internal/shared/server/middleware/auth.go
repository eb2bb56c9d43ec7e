package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"resumeflow-backend/internal/shared/auth"
	"resumeflow-backend/internal/shared/server/respond"
)

const (
	userIDKey    = "userId"
	userTokenKey = "userToken"
)

// Auth validates bearer tokens and stores identity in context. The raw
// token is kept alongside the user ID because queue payloads carry it for
// worker-side storage access.
func Auth(verifier *auth.Verifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Method == http.MethodOptions {
			c.Status(http.StatusNoContent)
			return
		}

		header := strings.TrimSpace(c.GetHeader("Authorization"))
		if header == "" || !strings.HasPrefix(header, "Bearer ") {
			respond.Error(c, http.StatusUnauthorized, "unauthorized", "missing or invalid token", nil)
			return
		}
		token := strings.TrimSpace(strings.TrimPrefix(header, "Bearer"))
		if token == "" {
			respond.Error(c, http.StatusUnauthorized, "unauthorized", "missing or invalid token", nil)
			return
		}

		claims, err := verifier.Verify(token)
		if err != nil {
			respond.Error(c, http.StatusUnauthorized, "unauthorized", "missing or invalid token", nil)
			return
		}

		c.Set(userIDKey, claims.Subject)
		c.Set(userTokenKey, token)
		c.Next()
	}
}

// UserIDFromContext fetches the user ID set by the auth middleware.
func UserIDFromContext(c *gin.Context) string {
	if c == nil {
		return ""
	}
	val, _ := c.Get(userIDKey)
	if id, ok := val.(string); ok {
		return id
	}
	return ""
}

// UserTokenFromContext fetches the raw bearer token set by the auth middleware.
func UserTokenFromContext(c *gin.Context) string {
	if c == nil {
		return ""
	}
	val, _ := c.Get(userTokenKey)
	if tok, ok := val.(string); ok {
		return tok
	}
	return ""
}
