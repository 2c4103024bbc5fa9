package middleware

import (
	"crypto/subtle"
	"net/http"
	"runtime/debug"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/storefront-service/payment_service/pkg/logger"
	"github.com/storefront-service/payment_service/pkg/metrics"
)

// RequestID tags every request with an ID and echoes it back. Caller
// supplied IDs are kept so the storefront can correlate, except
// oversized ones which get replaced.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader("X-Request-ID")
		if requestID == "" || len(requestID) > 128 {
			requestID = uuid.New().String()
		}
		c.Set("request_id", requestID)
		c.Header("X-Request-ID", requestID)
		c.Next()
	}
}

// Logger writes one structured line per request after the handler
// chain finishes. Server errors log at error level, client errors at
// warn, the rest at info.
func Logger(log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		if raw := c.Request.URL.RawQuery; raw != "" {
			path = path + "?" + raw
		}

		requestLogger := log.ForRequest(c.GetString("request_id"), c.Request.Method, path)

		c.Next()

		status := c.Writer.Status()
		fields := []interface{}{
			"status_code", status,
			"latency", time.Since(start),
			"client_ip", c.ClientIP(),
			"user_agent", c.Request.UserAgent(),
			"response_size", c.Writer.Size(),
		}

		switch {
		case status >= http.StatusInternalServerError:
			requestLogger.Errorw("HTTP request", fields...)
		case status >= http.StatusBadRequest:
			requestLogger.Warnw("HTTP request", fields...)
		default:
			requestLogger.Infow("HTTP request", fields...)
		}
	}
}

// Metrics records request counts and latency per route. The route template
// is used instead of the raw path so payment and session IDs do not blow up
// label cardinality.
func Metrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		endpoint := c.FullPath()
		if endpoint == "" {
			endpoint = "unmatched"
		}
		metrics.RecordHTTPRequest(
			c.Request.Method,
			endpoint,
			strconv.Itoa(c.Writer.Status()),
			time.Since(start).Seconds(),
		)
	}
}

// Recovery converts handler panics into a 500 with the request ID, so
// a single bad webhook payload cannot take the worker thread down with
// an unhandled panic.
func Recovery(log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if err := recover(); err != nil {
				requestID := c.GetString("request_id")
				log.ForRequest(requestID, c.Request.Method, c.Request.URL.Path).
					Errorw("Handler panicked",
						"error", err,
						"stack", string(debug.Stack()),
					)

				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
					"error":      "Internal server error",
					"request_id": requestID,
				})
			}
		}()
		c.Next()
	}
}

// CORS restricts cross-origin access to the configured storefront
// origins and answers preflight requests.
func CORS(allowedOrigins []string) gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")

		if originAllowed(allowedOrigins, origin) {
			c.Header("Access-Control-Allow-Origin", origin)
		}

		c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization, X-Request-ID, X-Admin-Token")
		c.Header("Access-Control-Expose-Headers", "X-Request-ID")
		c.Header("Access-Control-Allow-Credentials", "true")
		c.Header("Access-Control-Max-Age", "3600")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusOK)
			return
		}

		c.Next()
	}
}

func originAllowed(allowed []string, origin string) bool {
	for _, candidate := range allowed {
		if candidate == "*" || candidate == origin {
			return true
		}
	}
	return false
}

// RateLimiter hands out one token bucket per client IP.
type RateLimiter struct {
	mu     sync.RWMutex
	perIP  map[string]*rate.Limiter
	perMin int
	burst  int
}

// NewRateLimiter creates a limiter pool allowing requestsPerMinute per
// IP, with burst capacity equal to the rate.
func NewRateLimiter(requestsPerMinute int) *RateLimiter {
	return &RateLimiter{
		perIP:  make(map[string]*rate.Limiter),
		perMin: requestsPerMinute,
		burst:  requestsPerMinute,
	}
}

// GetLimiter returns the bucket for ip, creating it on first sight.
func (rl *RateLimiter) GetLimiter(ip string) *rate.Limiter {
	rl.mu.RLock()
	limiter, ok := rl.perIP[ip]
	rl.mu.RUnlock()
	if ok {
		return limiter
	}

	rl.mu.Lock()
	defer rl.mu.Unlock()
	if limiter, ok = rl.perIP[ip]; !ok {
		limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(rl.perMin)), rl.burst)
		rl.perIP[ip] = limiter
	}
	return limiter
}

// RateLimit rejects requests over the per-IP budget. This is the
// process-local backstop; the checkout route adds the Redis limiter on
// top so the budget holds across replicas.
func RateLimit(requestsPerMinute int) gin.HandlerFunc {
	limiter := NewRateLimiter(requestsPerMinute)

	return func(c *gin.Context) {
		ip := c.ClientIP()
		if !limiter.GetLimiter(ip).Allow() {
			endpoint := c.FullPath()
			if endpoint == "" {
				endpoint = c.Request.URL.Path
			}
			metrics.RecordRateLimitHit(endpoint, ip)
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error":      "Rate limit exceeded",
				"request_id": c.GetString("request_id"),
			})
			return
		}
		c.Next()
	}
}

// SecurityHeaders sets the standard browser hardening headers. The
// no-store directive keeps payment responses out of shared caches.
func SecurityHeaders() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("X-Frame-Options", "DENY")
		c.Header("X-XSS-Protection", "1; mode=block")
		c.Header("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		c.Header("Referrer-Policy", "strict-origin-when-cross-origin")
		c.Header("Content-Security-Policy", "default-src 'self'")
		c.Header("Cache-Control", "no-store")
		c.Next()
	}
}

// AdminAuth gates the admin analytics endpoints behind a shared token. A
// missing configured token fails closed.
func AdminAuth(adminToken string, log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if adminToken == "" {
			log.Warnw("Admin endpoint hit but no admin token configured",
				"path", c.Request.URL.Path)
			metrics.RecordAdminAuthAttempt("unconfigured")
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error":      "Admin access is not configured",
				"request_id": c.GetString("request_id"),
			})
			return
		}

		provided := c.GetHeader("X-Admin-Token")
		if provided == "" {
			metrics.RecordAdminAuthAttempt("missing")
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error":      "Admin token required",
				"request_id": c.GetString("request_id"),
			})
			return
		}

		if subtle.ConstantTimeCompare([]byte(provided), []byte(adminToken)) != 1 {
			log.Warnw("Invalid admin token",
				"path", c.Request.URL.Path,
				"client_ip", c.ClientIP())
			metrics.RecordAdminAuthAttempt("invalid")
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error":      "Invalid admin token",
				"request_id": c.GetString("request_id"),
			})
			return
		}

		metrics.RecordAdminAuthAttempt("success")
		c.Next()
	}
}
