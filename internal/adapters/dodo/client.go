package dodo

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/storefront-service/payment_service/pkg/metrics"
)

const (
	// Default timeouts and limits
	defaultTimeout    = 30 * time.Second
	maxRetries        = 3
	baseBackoff       = 1 * time.Second
	maxBackoff        = 16 * time.Second
	jitterRange       = 0.1 // 10% jitter
	defaultRetryAfter = 5 * time.Second
	maxRetryAfter     = 60 * time.Second

	// Dodo API rate limits (requests per minute) - conservative defaults
	dodoRateLimitRPM = 120
	rateLimitBurst   = 10
)

// Config represents Dodo Payments API configuration
type Config struct {
	APIKey         string
	BaseURL        string // Dodo API base URL
	Environment    string // test or production
	Timeout        time.Duration
	RateLimitRPM   int // Requests per minute (0 = use default)
	RateLimitBurst int // Burst capacity (0 = use default)
}

// Client represents a Dodo Payments API client
type Client struct {
	config         Config
	httpClient     *http.Client
	circuitBreaker *gobreaker.CircuitBreaker
	rateLimiter    *time.Ticker
	requestTokens  chan struct{}
	logger         *zap.Logger
}

// NewClient creates a new Dodo Payments API client
func NewClient(config Config, logger *zap.Logger) *Client {
	if config.Timeout == 0 {
		config.Timeout = defaultTimeout
	}

	// Set default rate limits if not provided
	if config.RateLimitRPM == 0 {
		config.RateLimitRPM = dodoRateLimitRPM
	}
	if config.RateLimitBurst == 0 {
		config.RateLimitBurst = rateLimitBurst
	}

	if config.BaseURL == "" {
		if config.Environment == "production" {
			config.BaseURL = "https://live.dodopayments.com"
		} else {
			config.BaseURL = "https://test.dodopayments.com"
		}
	}
	config.BaseURL = strings.TrimRight(config.BaseURL, "/")

	httpClient := &http.Client{
		Timeout: config.Timeout,
		Transport: &http.Transport{
			TLSClientConfig: &tls.Config{
				MinVersion: tls.VersionTLS12,
			},
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 10,
			IdleConnTimeout:     90 * time.Second,
		},
	}

	// Initialize rate limiter
	rateLimiter := time.NewTicker(time.Minute / time.Duration(config.RateLimitRPM))
	requestTokens := make(chan struct{}, config.RateLimitBurst)

	// Fill initial burst capacity
	for i := 0; i < config.RateLimitBurst; i++ {
		requestTokens <- struct{}{}
	}

	// Token replenishment goroutine
	go func() {
		for range rateLimiter.C {
			select {
			case requestTokens <- struct{}{}:
			default:
				// Channel is full, skip this token
			}
		}
	}()

	st := gobreaker.Settings{
		Name:        "DodoPaymentsAPI",
		MaxRequests: 5,
		Interval:    10 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures > 5
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.Info("Circuit breaker state changed",
				zap.String("name", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
			metrics.UpdateCircuitBreakerState("dodo", breakerStateValue(to))
		},
	}

	circuitBreaker := gobreaker.NewCircuitBreaker(st)

	return &Client{
		config:         config,
		httpClient:     httpClient,
		circuitBreaker: circuitBreaker,
		rateLimiter:    rateLimiter,
		requestTokens:  requestTokens,
		logger:         logger,
	}
}

// CreateCheckoutSession creates a hosted checkout session for a cart
func (c *Client) CreateCheckoutSession(ctx context.Context, req CheckoutSessionRequest) (*CheckoutSessionResponse, error) {
	c.logger.Info("Creating Dodo checkout session",
		zap.Int("cart_items", len(req.ProductCart)),
		zap.String("customer_email", req.Customer.Email))

	var response CheckoutSessionResponse
	_, err := c.circuitBreaker.Execute(func() (interface{}, error) {
		return &response, c.doRequestWithRetry(ctx, "POST", "/checkouts", req, &response)
	})

	if err != nil {
		c.logger.Error("Failed to create Dodo checkout session",
			zap.String("customer_email", req.Customer.Email),
			zap.Error(err))
		return nil, fmt.Errorf("create checkout session failed: %w", err)
	}

	c.logger.Info("Created Dodo checkout session successfully",
		zap.String("session_id", response.SessionID))

	return &response, nil
}

// GetPayment retrieves payment details by ID
func (c *Client) GetPayment(ctx context.Context, paymentID string) (*Payment, error) {
	c.logger.Info("Getting Dodo payment details", zap.String("payment_id", paymentID))

	var response Payment
	endpoint := "/payments/" + url.PathEscape(paymentID)
	_, err := c.circuitBreaker.Execute(func() (interface{}, error) {
		return &response, c.doRequestWithRetry(ctx, "GET", endpoint, nil, &response)
	})

	if err != nil {
		c.logger.Error("Failed to get Dodo payment details",
			zap.String("payment_id", paymentID),
			zap.Error(err))
		return nil, fmt.Errorf("get payment failed: %w", err)
	}

	c.logger.Info("Got Dodo payment details successfully",
		zap.String("payment_id", paymentID),
		zap.String("status", response.Status))

	return &response, nil
}

// ListPayments retrieves payments matching the given filters
func (c *Client) ListPayments(ctx context.Context, params ListPaymentsParams) ([]Payment, error) {
	c.logger.Info("Listing Dodo payments",
		zap.String("status", params.Status),
		zap.Int("page_size", params.PageSize))

	query := url.Values{}
	if params.PageSize > 0 {
		query.Set("page_size", strconv.Itoa(params.PageSize))
	}
	if params.PageNumber > 0 {
		query.Set("page_number", strconv.Itoa(params.PageNumber))
	}
	if params.Status != "" {
		query.Set("status", params.Status)
	}
	if !params.CreatedAtGTE.IsZero() {
		query.Set("created_at_gte", params.CreatedAtGTE.UTC().Format(time.RFC3339))
	}

	endpoint := "/payments"
	if encoded := query.Encode(); encoded != "" {
		endpoint += "?" + encoded
	}

	var response ListPaymentsResponse
	_, err := c.circuitBreaker.Execute(func() (interface{}, error) {
		return &response, c.doRequestWithRetry(ctx, "GET", endpoint, nil, &response)
	})

	if err != nil {
		c.logger.Error("Failed to list Dodo payments", zap.Error(err))
		return nil, fmt.Errorf("list payments failed: %w", err)
	}

	c.logger.Info("Listed Dodo payments successfully", zap.Int("count", len(response.Items)))

	return response.Items, nil
}

// GetHealth probes the API with a minimal authenticated request
func (c *Client) GetHealth(ctx context.Context) error {
	var response ListPaymentsResponse
	_, err := c.circuitBreaker.Execute(func() (interface{}, error) {
		return &response, c.doRequestWithRetry(ctx, "GET", "/payments?page_size=1", nil, &response)
	})
	if err != nil {
		return fmt.Errorf("dodo health probe failed: %w", err)
	}
	return nil
}

// doRequestWithRetry performs an HTTP request with exponential backoff retry
func (c *Client) doRequestWithRetry(ctx context.Context, method, endpoint string, body, response interface{}) error {
	var lastErr error

	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			backoff := calculateBackoff(attempt)
			c.logger.Info("Retrying Dodo API request",
				zap.Int("attempt", attempt),
				zap.Duration("backoff", backoff))

			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		// Acquire rate limit token
		select {
		case <-c.requestTokens:
			// Token acquired, proceed
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(c.config.Timeout):
			return fmt.Errorf("rate limit token acquisition timeout")
		}

		err := c.doRequest(ctx, method, endpoint, body, response)
		if err == nil {
			return nil
		}

		lastErr = err

		// Check if error is retryable
		if !isRetryableError(err) {
			c.logger.Warn("Non-retryable error encountered",
				zap.Error(err))
			return err
		}

		c.logger.Warn("Retryable error encountered",
			zap.Error(err),
			zap.Int("attempt", attempt))
	}

	return fmt.Errorf("max retries exceeded: %w", lastErr)
}

// doRequest performs a single HTTP request
func (c *Client) doRequest(ctx context.Context, method, endpoint string, body, response interface{}) error {
	fullURL := c.config.BaseURL + endpoint

	var reqBody io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		reqBody = bytes.NewReader(jsonData)
	}

	req, err := http.NewRequestWithContext(ctx, method, fullURL, reqBody)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	// Set headers
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	// Dodo API authentication
	if c.config.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.config.APIKey)
	}

	c.logger.Debug("Sending Dodo API request",
		zap.String("method", method),
		zap.String("url", fullURL))

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		metrics.RecordExternalAPICall("dodo", endpoint, "error", time.Since(start).Seconds())
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	metrics.RecordExternalAPICall("dodo", endpoint, strconv.Itoa(resp.StatusCode), time.Since(start).Seconds())

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	c.logger.Debug("Received Dodo API response",
		zap.Int("status_code", resp.StatusCode),
		zap.Int("body_size", len(respBody)))

	// Check for error responses
	if resp.StatusCode >= 400 {
		var apiErr ErrorResponse
		if err := json.Unmarshal(respBody, &apiErr); err == nil && apiErr.Message != "" {
			apiErr.Code = resp.StatusCode

			// Handle rate limiting specifically
			if resp.StatusCode == http.StatusTooManyRequests {
				if retryAfter := resp.Header.Get("Retry-After"); retryAfter != "" {
					if seconds, err := strconv.Atoi(retryAfter); err == nil {
						c.logger.Warn("Rate limited by Dodo API",
							zap.Int("retry_after_seconds", seconds),
							zap.String("endpoint", endpoint))
					}
				}
			}

			return &apiErr
		}
		return fmt.Errorf("API error: status %d, body: %s", resp.StatusCode, string(respBody))
	}

	// Parse response if a response object is provided
	if response != nil && len(respBody) > 0 {
		if err := json.Unmarshal(respBody, response); err != nil {
			return fmt.Errorf("failed to unmarshal response: %w", err)
		}
	}

	return nil
}

// Close gracefully shuts down the client and cleans up resources
func (c *Client) Close() error {
	if c.rateLimiter != nil {
		c.rateLimiter.Stop()
	}
	c.logger.Info("Dodo client closed")
	return nil
}

// BreakerState returns the current circuit breaker state name
func (c *Client) BreakerState() string {
	return c.circuitBreaker.State().String()
}

// BreakerCounts returns circuit breaker counters for health reporting
func (c *Client) BreakerCounts() map[string]interface{} {
	counts := c.circuitBreaker.Counts()
	return map[string]interface{}{
		"requests_total":        counts.Requests,
		"consecutive_successes": counts.ConsecutiveSuccesses,
		"consecutive_failures":  counts.ConsecutiveFailures,
		"total_successes":       counts.TotalSuccesses,
		"total_failures":        counts.TotalFailures,
	}
}

// GetMetrics returns circuit breaker and client metrics for monitoring
func (c *Client) GetMetrics() map[string]interface{} {
	counts := c.circuitBreaker.Counts()
	return map[string]interface{}{
		"circuit_breaker_state":         c.circuitBreaker.State().String(),
		"requests_total":                counts.Requests,
		"consecutive_successes":         counts.ConsecutiveSuccesses,
		"consecutive_failures":          counts.ConsecutiveFailures,
		"total_successes":               counts.TotalSuccesses,
		"total_failures":                counts.TotalFailures,
		"rate_limiter_tokens_available": len(c.requestTokens),
		"rate_limiter_burst_capacity":   cap(c.requestTokens),
		"client_timeout_seconds":        c.config.Timeout.Seconds(),
		"environment":                   c.config.Environment,
	}
}

// calculateBackoff calculates exponential backoff with jitter
func calculateBackoff(attempt int) time.Duration {
	// Calculate exponential backoff: baseBackoff * 2^(attempt-1)
	backoff := float64(baseBackoff) * math.Pow(2, float64(attempt-1))

	// Apply max backoff limit
	if backoff > float64(maxBackoff) {
		backoff = float64(maxBackoff)
	}

	// Add jitter (±10%)
	jitter := backoff * jitterRange * (2*getRandomFloat() - 1)
	backoff += jitter

	return time.Duration(backoff)
}

// getRandomFloat returns a random float between 0 and 1
func getRandomFloat() float64 {
	return float64(time.Now().UnixNano()%1000) / 1000.0
}

func breakerStateValue(state gobreaker.State) float64 {
	switch state {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	default:
		return 2
	}
}

// isRetryableError determines if an error should trigger a retry
func isRetryableError(err error) bool {
	if err == nil {
		return false
	}

	// Check for Dodo API errors
	if apiErr, ok := err.(*ErrorResponse); ok {
		// Retry on rate limits and server errors
		switch apiErr.Code {
		case http.StatusTooManyRequests:
			return true // Rate limited, worth retrying after backoff
		case http.StatusInternalServerError, http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
			return true // Server errors, worth retrying
		case http.StatusRequestTimeout:
			return true // Request timeout, worth retrying
		default:
			return false // Client errors (4xx except 429) should not be retried
		}
	}

	// Retry on network errors and timeouts
	errStr := strings.ToLower(err.Error())
	return strings.Contains(errStr, "timeout") ||
		strings.Contains(errStr, "deadline exceeded") ||
		strings.Contains(errStr, "context deadline exceeded") ||
		strings.Contains(errStr, "connection refused") ||
		strings.Contains(errStr, "connection reset") ||
		strings.Contains(errStr, "connection closed") ||
		strings.Contains(errStr, "eof") ||
		strings.Contains(errStr, "temporary failure") ||
		strings.Contains(errStr, "network is unreachable") ||
		strings.Contains(errStr, "no such host")
}
