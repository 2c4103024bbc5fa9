package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	adapter "github.com/storefront-service/payment_service/internal/adapters/analytics"
	"github.com/storefront-service/payment_service/internal/domain/entities"
	svcerrors "github.com/storefront-service/payment_service/pkg/errors"
	"github.com/storefront-service/payment_service/pkg/logger"
)

type MockAnalyticsService struct {
	mock.Mock
}

func (m *MockAnalyticsService) GetSummary(ctx context.Context, window string) (*entities.AnalyticsSummary, error) {
	args := m.Called(ctx, window)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.AnalyticsSummary), args.Error(1)
}

func (m *MockAnalyticsService) ListEvents(ctx context.Context, params adapter.ListEventsParams) ([]entities.AnalyticsEvent, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]entities.AnalyticsEvent), args.Error(1)
}

func newAdminTestRouter(t *testing.T, svc AnalyticsService) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	handler := NewAdminHandlers(svc, logger.NewLogger(zaptest.NewLogger(t)))

	router := gin.New()
	router.GET("/api/v1/admin/analytics/summary", handler.GetAnalyticsSummary)
	router.GET("/api/v1/admin/analytics/events", handler.ListAnalyticsEvents)
	return router
}

func TestGetAnalyticsSummaryHandler_Success(t *testing.T) {
	svc := new(MockAnalyticsService)
	router := newAdminTestRouter(t, svc)

	svc.On("GetSummary", mock.Anything, "24h").
		Return(&entities.AnalyticsSummary{
			Window:       "24h",
			TotalOrders:  42,
			TotalRevenue: decimal.RequireFromString("1099.58"),
			Currency:     "USD",
			SuccessRate:  0.93,
			GeneratedAt:  time.Now(),
		}, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/admin/analytics/summary?window=24h", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var resp entities.AnalyticsSummary
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, int64(42), resp.TotalOrders)
	assert.Equal(t, "24h", resp.Window)
	svc.AssertExpectations(t)
}

func TestGetAnalyticsSummaryHandler_UnknownWindow(t *testing.T) {
	svc := new(MockAnalyticsService)
	router := newAdminTestRouter(t, svc)

	svc.On("GetSummary", mock.Anything, "90d").
		Return(nil, svcerrors.ValidationError(`invalid window "90d", expected one of 24h, 7d, 30d`))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/admin/analytics/summary?window=90d", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), string(svcerrors.ErrCodeValidation))
	svc.AssertExpectations(t)
}

func TestGetAnalyticsSummaryHandler_BackendUnavailable(t *testing.T) {
	svc := new(MockAnalyticsService)
	router := newAdminTestRouter(t, svc)

	svc.On("GetSummary", mock.Anything, "").
		Return(nil, svcerrors.ServiceUnavailable("analytics"))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/admin/analytics/summary", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	svc.AssertExpectations(t)
}

func TestListAnalyticsEventsHandler_ForwardsFilters(t *testing.T) {
	svc := new(MockAnalyticsService)
	router := newAdminTestRouter(t, svc)

	since, err := time.Parse(time.RFC3339, "2024-01-15T00:00:00Z")
	require.NoError(t, err)

	svc.On("ListEvents", mock.Anything, adapter.ListEventsParams{
		Name:  entities.AnalyticsPaymentSucceeded,
		Limit: 25,
		Since: since,
	}).Return([]entities.AnalyticsEvent{
		{Name: entities.AnalyticsPaymentSucceeded, OccurredAt: since.Add(time.Hour)},
		{Name: entities.AnalyticsPaymentSucceeded, OccurredAt: since.Add(2 * time.Hour)},
	}, nil)

	req := httptest.NewRequest(http.MethodGet,
		"/api/v1/admin/analytics/events?name=payment_succeeded&limit=25&since=2024-01-15T00:00:00Z", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, float64(2), resp["count"])
	svc.AssertExpectations(t)
}

func TestListAnalyticsEventsHandler_BadSinceTimestamp(t *testing.T) {
	svc := new(MockAnalyticsService)
	router := newAdminTestRouter(t, svc)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/admin/analytics/events?since=yesterday", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "RFC3339")
	svc.AssertNotCalled(t, "ListEvents", mock.Anything, mock.Anything)
}
