package analytics

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/storefront-service/payment_service/internal/domain/entities"
)

func TestClient_RecordEvent(t *testing.T) {
	logger := zaptest.NewLogger(t)

	var received entities.AnalyticsEvent
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "POST", r.Method)
		assert.Equal(t, "/v1/events", r.URL.Path)
		assert.Equal(t, "Bearer svc-token", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		w.WriteHeader(http.StatusAccepted)
	}))
	defer server.Close()

	client := NewClient(Config{BaseURL: server.URL, ServiceToken: "svc-token"}, logger)

	err := client.RecordEvent(context.Background(), entities.AnalyticsEvent{
		Name:       entities.AnalyticsPaymentSucceeded,
		Properties: map[string]interface{}{"order_number": "ORD-20240115-a1b2c3d4"},
	})

	require.NoError(t, err)
	assert.Equal(t, entities.AnalyticsPaymentSucceeded, received.Name)
	assert.False(t, received.OccurredAt.IsZero(), "client should stamp missing timestamps")
}

func TestClient_RecordEventDisabled(t *testing.T) {
	logger := zaptest.NewLogger(t)
	client := NewClient(Config{}, logger)

	assert.False(t, client.Enabled())
	assert.NoError(t, client.RecordEvent(context.Background(), entities.AnalyticsEvent{Name: "checkout_started"}))
}

func TestClient_GetSummary(t *testing.T) {
	logger := zaptest.NewLogger(t)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "GET", r.Method)
		assert.Equal(t, "/v1/summary", r.URL.Path)
		assert.Equal(t, "7d", r.URL.Query().Get("window"))

		summary := entities.AnalyticsSummary{
			Window:       "7d",
			TotalOrders:  42,
			TotalRevenue: decimal.NewFromInt(109158),
			Currency:     "USD",
			SuccessRate:  0.93,
		}
		json.NewEncoder(w).Encode(summary)
	}))
	defer server.Close()

	client := NewClient(Config{BaseURL: server.URL}, logger)

	summary, err := client.GetSummary(context.Background(), "7d")

	require.NoError(t, err)
	assert.Equal(t, int64(42), summary.TotalOrders)
	assert.True(t, summary.TotalRevenue.Equal(decimal.NewFromInt(109158)))
}

func TestClient_GetSummaryRetriesTransientErrors(t *testing.T) {
	logger := zaptest.NewLogger(t)

	callCount := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		callCount++
		if callCount < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		json.NewEncoder(w).Encode(entities.AnalyticsSummary{Window: "24h", TotalOrders: 7})
	}))
	defer server.Close()

	client := NewClient(Config{BaseURL: server.URL}, logger)

	summary, err := client.GetSummary(context.Background(), "24h")

	require.NoError(t, err)
	assert.Equal(t, 3, callCount)
	assert.Equal(t, int64(7), summary.TotalOrders)
}

func TestClient_ClientErrorsNotRetried(t *testing.T) {
	logger := zaptest.NewLogger(t)

	callCount := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		callCount++
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer server.Close()

	client := NewClient(Config{BaseURL: server.URL}, logger)

	_, err := client.GetSummary(context.Background(), "24h")

	assert.Error(t, err)
	assert.Equal(t, 1, callCount)
}

func TestClient_ListEvents(t *testing.T) {
	logger := zaptest.NewLogger(t)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/events", r.URL.Path)
		assert.Equal(t, "payment_succeeded", r.URL.Query().Get("name"))
		assert.Equal(t, "25", r.URL.Query().Get("limit"))

		json.NewEncoder(w).Encode(eventsResponse{Events: []entities.AnalyticsEvent{
			{Name: "payment_succeeded", OccurredAt: time.Now().UTC()},
			{Name: "payment_succeeded", OccurredAt: time.Now().UTC()},
		}})
	}))
	defer server.Close()

	client := NewClient(Config{BaseURL: server.URL}, logger)

	events, err := client.ListEvents(context.Background(), ListEventsParams{Name: "payment_succeeded", Limit: 25})

	require.NoError(t, err)
	assert.Len(t, events, 2)
}
