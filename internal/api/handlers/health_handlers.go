package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/storefront-service/payment_service/pkg/health"
	"github.com/storefront-service/payment_service/pkg/logger"
	"github.com/storefront-service/payment_service/pkg/version"
)

// HealthHandler handles health check endpoints
type HealthHandler struct {
	checker *health.HealthChecker
	logger  *logger.Logger
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(checker *health.HealthChecker, logger *logger.Logger) *HealthHandler {
	return &HealthHandler{
		checker: checker,
		logger:  logger,
	}
}

var startTime = time.Now()

// Health runs all registered health checks
// @Summary Get application health status
// @Description Runs health checks on Redis, the payment providers and the reconciliation worker
// @Tags health
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Failure 503 {object} map[string]interface{}
// @Router /health [get]
func (h *HealthHandler) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
	defer cancel()

	status, checks := h.checker.Check(ctx)

	response := gin.H{
		"status":    status,
		"timestamp": time.Now(),
		"version":   version.Short(),
		"uptime":    time.Since(startTime).String(),
		"checks":    checks,
	}

	// Degraded still serves traffic; only fully unhealthy flips the status code.
	statusCode := http.StatusOK
	if status == health.StatusUnhealthy {
		statusCode = http.StatusServiceUnavailable
	}

	c.JSON(statusCode, response)
}

// Ready checks if the service is ready to accept traffic
// @Summary Get application readiness status
// @Description Reports whether the service should receive traffic
// @Tags health
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Failure 503 {object} map[string]interface{}
// @Router /health/ready [get]
func (h *HealthHandler) Ready(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	status, checks := h.checker.Check(ctx)

	ready := status != health.StatusUnhealthy
	state := "ready"
	if !ready {
		state = "not_ready"
	}

	response := gin.H{
		"status":    state,
		"timestamp": time.Now(),
		"checks":    checks,
	}

	statusCode := http.StatusOK
	if !ready {
		statusCode = http.StatusServiceUnavailable
	}

	c.JSON(statusCode, response)
}

// Live checks if the process is alive
// @Summary Get application liveness status
// @Description Simple liveness check for container orchestration
// @Tags health
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Router /health/live [get]
func (h *HealthHandler) Live(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "alive",
		"timestamp": time.Now(),
		"uptime":    time.Since(startTime).String(),
	})
}

// Version reports build information
// @Summary Get build version
// @Description Returns the service version, commit and build date
// @Tags health
// @Produce json
// @Success 200 {object} version.Info
// @Router /version [get]
func (h *HealthHandler) Version(c *gin.Context) {
	c.JSON(http.StatusOK, version.Get())
}

// Metrics adapts the Prometheus scrape handler to gin.
func Metrics() gin.HandlerFunc {
	h := promhttp.Handler()
	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}
