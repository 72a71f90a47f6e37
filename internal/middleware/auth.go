// Package middleware provides the gin middlewares of the HTTP surface.
package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/soumnemishra/collaborative-drawing-platform/internal/domain"
	"github.com/soumnemishra/collaborative-drawing-platform/internal/service"
)

// ContextUserKey is where the authenticated guest user is stored on the
// gin context.
const ContextUserKey = "user"

// Auth validates the guest session token and puts the reconstructed user
// on the context. The token comes from the Authorization header, or from
// the "token" query parameter for websocket upgrades (browsers cannot set
// headers on those).
func Auth(tokens *service.TokenService) gin.HandlerFunc {
	if tokens == nil {
		panic("TokenService cannot be nil for Auth middleware")
	}

	return func(c *gin.Context) {
		tokenStr := extractToken(c)
		if tokenStr == "" {
			logrus.Warn("Auth middleware: missing token")
			c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication token is required"})
			c.Abort()
			return
		}

		user, err := tokens.Validate(tokenStr)
		if err != nil {
			logrus.WithError(err).Warn("Auth middleware: invalid token")
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid or expired token"})
			c.Abort()
			return
		}

		c.Set(ContextUserKey, user)
		logrus.WithField("user_id", user.ID).Debug("Auth middleware: user authenticated")
		c.Next()
	}
}

// UserFromContext returns the authenticated user set by Auth.
func UserFromContext(c *gin.Context) (domain.User, bool) {
	value, exists := c.Get(ContextUserKey)
	if !exists {
		return domain.User{}, false
	}
	user, ok := value.(domain.User)
	return user, ok
}

func extractToken(c *gin.Context) string {
	authHeader := c.GetHeader("Authorization")
	if authHeader != "" {
		parts := strings.Split(authHeader, " ")
		if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
			return parts[1]
		}
		return ""
	}
	return c.Query("token")
}
