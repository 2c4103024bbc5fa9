package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP server metrics.
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payment_http_requests_total",
			Help: "HTTP requests served, by route and status",
		},
		[]string{"method", "endpoint", "status_code"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "payment_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint"},
	)

	// Webhook metrics
	WebhookVerificationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payment_webhook_verifications_total",
			Help: "Total number of webhook verification attempts",
		},
		[]string{"provider", "result"}, // result: accepted, stale, invalid_signature, malformed
	)

	WebhookEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payment_webhook_events_total",
			Help: "Total number of processed webhook events",
		},
		[]string{"provider", "event_type", "status"}, // status: processed, duplicate, skipped
	)

	// Checkout metrics
	CheckoutSessionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payment_checkout_sessions_total",
			Help: "Total number of checkout sessions created",
		},
		[]string{"provider", "status", "currency"},
	)

	PaymentAmount = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "payment_amount_minor_units",
			Help:    "Payment amounts in provider minor units",
			Buckets: []float64{100, 500, 1000, 5000, 10000, 50000, 100000, 500000, 1000000},
		},
		[]string{"provider", "currency"},
	)

	// Outbound call metrics.
	ExternalAPICallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payment_external_api_calls_total",
			Help: "Calls made to provider and analytics APIs",
		},
		[]string{"service", "endpoint", "status_code"},
	)

	ExternalAPICallDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "payment_external_api_call_duration_seconds",
			Help:    "Latency of outbound API calls in seconds",
			Buckets: []float64{0.1, 0.5, 1.0, 2.0, 5.0, 10.0, 30.0},
		},
		[]string{"service", "endpoint"},
	)

	CircuitBreakerStateGauge = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "payment_circuit_breaker_state",
			Help: "Provider client breaker state (0=closed, 1=open, 2=half-open)",
		},
		[]string{"service"},
	)

	// Cache metrics
	RedisOperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "payment_redis_operation_duration_seconds",
			Help:    "Redis command latency in seconds",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1},
		},
		[]string{"operation"},
	)

	// Admission metrics.
	RateLimitHitsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payment_rate_limit_hits_total",
			Help: "Requests rejected by the rate limiter",
		},
		[]string{"endpoint", "ip"},
	)

	AdminAuthAttemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payment_admin_auth_attempts_total",
			Help: "Total number of admin token checks",
		},
		[]string{"result"}, // success, failed
	)

	// Reconciliation metrics
	ReconciliationRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payment_reconciliation_runs_total",
			Help: "Total number of reconciliation runs",
		},
		[]string{"status"}, // completed, failed
	)

	ReconciliationPaymentsScanned = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "payment_reconciliation_payments_scanned_total",
			Help: "Total number of payments inspected during reconciliation",
		},
	)
)

// RecordHTTPRequest counts one served request and observes its latency.
func RecordHTTPRequest(method, endpoint, statusCode string, duration float64) {
	HTTPRequestsTotal.WithLabelValues(method, endpoint, statusCode).Inc()
	HTTPRequestDuration.WithLabelValues(method, endpoint).Observe(duration)
}

// RecordWebhookVerification records the outcome of a webhook verification
func RecordWebhookVerification(provider, result string) {
	WebhookVerificationsTotal.WithLabelValues(provider, result).Inc()
}

// RecordWebhookEvent records a processed webhook event
func RecordWebhookEvent(provider, eventType, status string) {
	WebhookEventsTotal.WithLabelValues(provider, eventType, status).Inc()
}

// RecordCheckoutSession records checkout session metrics
func RecordCheckoutSession(provider, status, currency string, amountMinor float64) {
	CheckoutSessionsTotal.WithLabelValues(provider, status, currency).Inc()
	if amountMinor > 0 {
		PaymentAmount.WithLabelValues(provider, currency).Observe(amountMinor)
	}
}

// RecordExternalAPICall counts one outbound call and observes its latency.
func RecordExternalAPICall(service, endpoint, statusCode string, duration float64) {
	ExternalAPICallsTotal.WithLabelValues(service, endpoint, statusCode).Inc()
	ExternalAPICallDuration.WithLabelValues(service, endpoint).Observe(duration)
}

// UpdateCircuitBreakerState publishes the numeric breaker state for service.
func UpdateCircuitBreakerState(service string, state float64) {
	CircuitBreakerStateGauge.WithLabelValues(service).Set(state)
}

// RecordRedisOperation observes the latency of one Redis command.
func RecordRedisOperation(operation string, duration float64) {
	RedisOperationDuration.WithLabelValues(operation).Observe(duration)
}

// RecordRateLimitHit counts a request rejected by the rate limiter.
func RecordRateLimitHit(endpoint, ip string) {
	RateLimitHitsTotal.WithLabelValues(endpoint, ip).Inc()
}

// RecordAdminAuthAttempt records an admin token check
func RecordAdminAuthAttempt(result string) {
	AdminAuthAttemptsTotal.WithLabelValues(result).Inc()
}

// RecordReconciliationRun records a reconciliation run outcome
func RecordReconciliationRun(status string, paymentsScanned int) {
	ReconciliationRunsTotal.WithLabelValues(status).Inc()
	ReconciliationPaymentsScanned.Add(float64(paymentsScanned))
}
