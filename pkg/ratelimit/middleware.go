package ratelimit

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/storefront-service/payment_service/pkg/metrics"
)

// KeyFunc derives the limiter key from the request.
type KeyFunc func(*gin.Context) string

// Middleware enforces limiter on every request it wraps. Limiter
// errors fail open: checkout must stay reachable when Redis is down.
func Middleware(limiter Limiter, keyFunc KeyFunc, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := keyFunc(c)
		if key == "" {
			logger.Warn("Rate limit key empty, skipping check")
			c.Next()
			return
		}

		allowed, err := limiter.Allow(c.Request.Context(), key)
		if err != nil {
			logger.Error("Rate limiter unavailable, failing open",
				zap.String("key", key),
				zap.Error(err))
			c.Next()
			return
		}

		if !allowed {
			logger.Warn("Request over rate limit",
				zap.String("key", key),
				zap.String("endpoint", c.FullPath()),
				zap.String("method", c.Request.Method))
			metrics.RecordRateLimitHit(c.FullPath(), c.ClientIP())

			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"code":    "RATE_LIMIT_EXCEEDED",
				"message": "Too many requests, please try again later",
			})
			return
		}

		if remaining, err := limiter.GetRemaining(c.Request.Context(), key); err == nil {
			c.Header("X-RateLimit-Remaining", strconv.FormatInt(remaining, 10))
		}

		c.Next()
	}
}

// IPKeyFunc keys the limit by client IP.
func IPKeyFunc(c *gin.Context) string {
	return c.ClientIP()
}
