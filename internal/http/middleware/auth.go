// README: Firebase ID-token auth middleware and caller accessors.
package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"evconnect/internal/infra"
)

const (
	ctxUIDKey  = "auth.uid"
	ctxRoleKey = "auth.role"
)

// Auth verifies the bearer token and stores the caller's uid and role claim
// on the gin context.
func Auth(verifier infra.TokenVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		raw, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || strings.TrimSpace(raw) == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
			return
		}
		token, err := verifier.VerifyIDToken(c.Request.Context(), strings.TrimSpace(raw))
		if err != nil || token == nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}
		c.Set(ctxUIDKey, token.UID)
		if role, ok := token.Claims["role"].(string); ok {
			c.Set(ctxRoleKey, role)
		}
		c.Next()
	}
}

// RequireRole rejects callers whose role claim differs from role.
func RequireRole(role string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if CallerRole(c) != role {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "forbidden: " + role + " role required"})
			return
		}
		c.Next()
	}
}

func CallerUID(c *gin.Context) string {
	return c.GetString(ctxUIDKey)
}

func CallerRole(c *gin.Context) string {
	return c.GetString(ctxRoleKey)
}
