package middleware

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/soumnemishra/collaborative-drawing-platform/internal/repository"
)

// RateLimit limits requests per client IP using a redis counter with a
// sliding expiry window.
func RateLimit(cache repository.CacheRepository, maxRequests int, window time.Duration) gin.HandlerFunc {
	if cache == nil {
		panic("cache repository cannot be nil for RateLimit middleware")
	}
	if maxRequests <= 0 {
		panic("maxRequests must be positive for RateLimit middleware")
	}
	if window <= 0 {
		panic("window duration must be positive for RateLimit middleware")
	}

	return func(c *gin.Context) {
		count, err := cache.IncrementWindow(c.Request.Context(), c.ClientIP(), window)
		if err != nil {
			// Fail open: a cache outage should not block the API.
			logrus.WithError(err).Error("RateLimit: counter increment failed")
			c.Next()
			return
		}
		if count > int64(maxRequests) {
			c.JSON(http.StatusTooManyRequests, gin.H{"error": "too many requests"})
			c.Abort()
			return
		}
		c.Next()
	}
}
