package analytics

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	adapter "github.com/storefront-service/payment_service/internal/adapters/analytics"
	"github.com/storefront-service/payment_service/internal/domain/entities"
	"github.com/storefront-service/payment_service/pkg/errors"
)

// Validated summary windows. The backend rejects anything else, so the
// check happens here where it can come back as a 400 instead of a proxied 5xx.
var allowedWindows = map[string]bool{
	"24h": true,
	"7d":  true,
	"30d": true,
}

// Service fronts the analytics backend for the admin endpoints
type Service struct {
	backend Backend
	logger  *zap.Logger
}

// Backend interface for the analytics API
type Backend interface {
	Enabled() bool
	GetSummary(ctx context.Context, window string) (*entities.AnalyticsSummary, error)
	ListEvents(ctx context.Context, params adapter.ListEventsParams) ([]entities.AnalyticsEvent, error)
}

// NewService creates a new analytics service
func NewService(backend Backend, logger *zap.Logger) *Service {
	return &Service{
		backend: backend,
		logger:  logger,
	}
}

// GetSummary returns the aggregated order metrics for a window
func (s *Service) GetSummary(ctx context.Context, window string) (*entities.AnalyticsSummary, error) {
	if window == "" {
		window = "7d"
	}
	if !allowedWindows[window] {
		return nil, errors.ValidationError(fmt.Sprintf("invalid window %q, expected one of 24h, 7d, 30d", window))
	}
	if !s.backend.Enabled() {
		return nil, errors.ServiceUnavailable("analytics")
	}

	summary, err := s.backend.GetSummary(ctx, window)
	if err != nil {
		s.logger.Error("Failed to fetch analytics summary",
			zap.String("window", window),
			zap.Error(err))
		return nil, fmt.Errorf("failed to fetch analytics summary: %w", err)
	}
	return summary, nil
}

// ListEvents returns recent order events, optionally filtered by name
func (s *Service) ListEvents(ctx context.Context, params adapter.ListEventsParams) ([]entities.AnalyticsEvent, error) {
	if !s.backend.Enabled() {
		return nil, errors.ServiceUnavailable("analytics")
	}
	if params.Limit <= 0 || params.Limit > 500 {
		params.Limit = 100
	}

	events, err := s.backend.ListEvents(ctx, params)
	if err != nil {
		s.logger.Error("Failed to list analytics events",
			zap.String("name", params.Name),
			zap.Error(err))
		return nil, fmt.Errorf("failed to list analytics events: %w", err)
	}
	return events, nil
}
