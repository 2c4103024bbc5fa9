package entities

import (
	"time"

	"github.com/shopspring/decimal"
)

// Analytics event names recorded against the backend analytics service
const (
	AnalyticsCheckoutStarted  = "checkout_started"
	AnalyticsPaymentSucceeded = "payment_succeeded"
	AnalyticsPaymentFailed    = "payment_failed"
	AnalyticsReconciliation   = "reconciliation_run"
)

// AnalyticsEvent is a single event pushed to the analytics backend
type AnalyticsEvent struct {
	Name       string                 `json:"name"`
	OccurredAt time.Time              `json:"occurred_at"`
	Properties map[string]interface{} `json:"properties,omitempty"`
}

// ProductStat is one row of the sales breakdown
type ProductStat struct {
	Name     string          `json:"name"`
	Quantity int64           `json:"quantity"`
	Revenue  decimal.Decimal `json:"revenue"`
}

// AnalyticsSummary is the admin dashboard aggregate from the analytics
// backend
type AnalyticsSummary struct {
	Window       string          `json:"window"`
	TotalOrders  int64           `json:"total_orders"`
	TotalRevenue decimal.Decimal `json:"total_revenue"`
	Currency     string          `json:"currency"`
	SuccessRate  float64         `json:"success_rate"`
	TopProducts  []ProductStat   `json:"top_products,omitempty"`
	GeneratedAt  time.Time       `json:"generated_at"`
}
