package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"visatrack/internal/shared/server/respond"
)

const (
	userIDKey    = "userId"
	userEmailKey = "userEmail"
)

// UserCheck validates that a bearer identity refers to a real, active user.
// A nil check means the headers are trusted as-is.
type UserCheck func(ctx context.Context, userID string) error

// Auth reads the bearer identity headers and stores them in the request
// context. The scheme is deliberately simple: the bearer token is the user ID
// and X-User-Email carries the account email. Auth endpoints and the signed
// storage endpoint are exempt.
func Auth(check UserCheck) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Method == http.MethodOptions {
			c.Status(http.StatusNoContent)
			return
		}

		path := c.Request.URL.Path
		if isPublicPath(path) {
			c.Next()
			return
		}

		authHeader := strings.TrimSpace(c.GetHeader("Authorization"))
		if authHeader == "" || !strings.HasPrefix(authHeader, "Bearer ") {
			respond.Error(c, http.StatusUnauthorized, "UNAUTHORIZED", "Missing identity", nil)
			return
		}

		userID := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer"))
		if userID == "" {
			respond.Error(c, http.StatusUnauthorized, "UNAUTHORIZED", "Missing identity", nil)
			return
		}

		if check != nil {
			if err := check(c.Request.Context(), userID); err != nil {
				respond.Error(c, http.StatusUnauthorized, "UNAUTHORIZED", "Unknown or disabled account", nil)
				return
			}
		}

		c.Set(userIDKey, userID)
		if email := strings.TrimSpace(c.GetHeader("X-User-Email")); email != "" {
			c.Set(userEmailKey, strings.ToLower(email))
		}
		c.Next()
	}
}

func isPublicPath(path string) bool {
	switch {
	case strings.HasPrefix(path, "/api/auth/"):
		return true
	case path == "/api/health":
		return true
	case path == "/metrics":
		return true
	case strings.HasPrefix(path, "/storage/"):
		return true
	default:
		return false
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

// UserEmailFromContext fetches the user email set by the auth middleware.
func UserEmailFromContext(c *gin.Context) string {
	if c == nil {
		return ""
	}
	val, _ := c.Get(userEmailKey)
	if email, ok := val.(string); ok {
		return email
	}
	return ""
}
