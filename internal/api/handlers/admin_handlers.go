package handlers

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	adapter "github.com/storefront-service/payment_service/internal/adapters/analytics"
	"github.com/storefront-service/payment_service/internal/domain/entities"
	"github.com/storefront-service/payment_service/pkg/logger"
)

// AnalyticsService exposes the analytics proxy operations
type AnalyticsService interface {
	GetSummary(ctx context.Context, window string) (*entities.AnalyticsSummary, error)
	ListEvents(ctx context.Context, params adapter.ListEventsParams) ([]entities.AnalyticsEvent, error)
}

// AdminHandlers contains the admin analytics proxy handlers. Routes using
// these sit behind the admin token middleware.
type AdminHandlers struct {
	analyticsService AnalyticsService
	logger           *logger.Logger
}

// NewAdminHandlers creates new admin handlers
func NewAdminHandlers(analyticsService AnalyticsService, logger *logger.Logger) *AdminHandlers {
	return &AdminHandlers{
		analyticsService: analyticsService,
		logger:           logger,
	}
}

// GetAnalyticsSummary proxies the sales summary from the analytics backend
// @Summary Get sales summary
// @Description Returns order counts, revenue and success rate for the requested window (24h, 7d or 30d)
// @Tags admin
// @Produce json
// @Param window query string false "Aggregation window" default(7d)
// @Success 200 {object} entities.AnalyticsSummary
// @Failure 400 {object} entities.ErrorResponse "Unknown window"
// @Failure 401 {object} entities.ErrorResponse "Missing or invalid admin token"
// @Failure 503 {object} entities.ErrorResponse "Analytics backend not configured"
// @Security AdminToken
// @Router /admin/analytics/summary [get]
func (h *AdminHandlers) GetAnalyticsSummary(c *gin.Context) {
	window := c.Query("window")

	summary, err := h.analyticsService.GetSummary(c.Request.Context(), window)
	if err != nil {
		h.logger.Errorw("Failed to fetch analytics summary",
			"window", window,
			"error", err,
			"request_id", getRequestID(c))
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, summary)
}

// ListAnalyticsEvents proxies raw events from the analytics backend
// @Summary List analytics events
// @Description Returns recent analytics events, optionally filtered by name and start time
// @Tags admin
// @Produce json
// @Param name query string false "Event name filter"
// @Param limit query int false "Maximum events to return" default(100)
// @Param since query string false "RFC3339 lower bound on event time"
// @Success 200 {object} map[string]interface{}
// @Failure 400 {object} entities.ErrorResponse "Invalid since timestamp"
// @Failure 401 {object} entities.ErrorResponse "Missing or invalid admin token"
// @Failure 503 {object} entities.ErrorResponse "Analytics backend not configured"
// @Security AdminToken
// @Router /admin/analytics/events [get]
func (h *AdminHandlers) ListAnalyticsEvents(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))

	params := adapter.ListEventsParams{
		Name:  c.Query("name"),
		Limit: limit,
	}

	if since := c.Query("since"); since != "" {
		parsed, err := time.Parse(time.RFC3339, since)
		if err != nil {
			respondBadRequest(c, "Invalid since timestamp, expected RFC3339", map[string]interface{}{"error": err.Error()})
			return
		}
		params.Since = parsed
	}

	events, err := h.analyticsService.ListEvents(c.Request.Context(), params)
	if err != nil {
		h.logger.Errorw("Failed to list analytics events",
			"name", params.Name,
			"error", err,
			"request_id", getRequestID(c))
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"events": events,
		"count":  len(events),
	})
}
