package analytics

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/storefront-service/payment_service/internal/domain/entities"
	"github.com/storefront-service/payment_service/pkg/metrics"
	"github.com/storefront-service/payment_service/pkg/retry"
	"github.com/storefront-service/payment_service/pkg/tracing"
)

const defaultTimeout = 10 * time.Second

// Config represents analytics service configuration
type Config struct {
	BaseURL      string
	ServiceToken string
	Timeout      time.Duration
}

// Client is a lightweight HTTP client for the storefront analytics service.
// With no base URL configured the client is disabled and every write becomes
// a no-op; payment processing never depends on analytics being up.
type Client struct {
	config      Config
	httpClient  *http.Client
	retryConfig retry.RetryConfig
	logger      *zap.Logger
}

// ListEventsParams filters an event listing request
type ListEventsParams struct {
	Name  string
	Limit int
	Since time.Time
}

type eventsResponse struct {
	Events []entities.AnalyticsEvent `json:"events"`
}

// NewClient creates a new analytics client
func NewClient(config Config, logger *zap.Logger) *Client {
	if config.Timeout == 0 {
		config.Timeout = defaultTimeout
	}
	config.BaseURL = strings.TrimRight(config.BaseURL, "/")

	return &Client{
		config:      config,
		httpClient:  &http.Client{Timeout: config.Timeout},
		retryConfig: retry.DefaultConfig(),
		logger:      logger,
	}
}

// Enabled reports whether an analytics backend is configured
func (c *Client) Enabled() bool {
	return c.config.BaseURL != ""
}

// RecordEvent submits a single event. Best effort: one attempt, errors are
// returned for the caller to log and move on.
func (c *Client) RecordEvent(ctx context.Context, event entities.AnalyticsEvent) error {
	if !c.Enabled() {
		c.logger.Debug("Analytics disabled, dropping event", zap.String("event", event.Name))
		return nil
	}

	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}

	if err := c.doJSON(ctx, http.MethodPost, "/v1/events", event, nil); err != nil {
		return fmt.Errorf("record event %s failed: %w", event.Name, err)
	}

	return nil
}

// GetSummary retrieves the aggregated order summary for a time window
func (c *Client) GetSummary(ctx context.Context, window string) (*entities.AnalyticsSummary, error) {
	if !c.Enabled() {
		return nil, fmt.Errorf("analytics backend is not configured")
	}

	endpoint := "/v1/summary"
	if window != "" {
		endpoint += "?window=" + url.QueryEscape(window)
	}

	var summary entities.AnalyticsSummary
	err := retry.WithExponentialBackoff(ctx, c.retryConfig, func() error {
		return c.doJSON(ctx, http.MethodGet, endpoint, nil, &summary)
	}, retry.IsTemporaryError)
	if err != nil {
		return nil, fmt.Errorf("get summary failed: %w", err)
	}

	return &summary, nil
}

// ListEvents retrieves recorded events matching the given filters
func (c *Client) ListEvents(ctx context.Context, params ListEventsParams) ([]entities.AnalyticsEvent, error) {
	if !c.Enabled() {
		return nil, fmt.Errorf("analytics backend is not configured")
	}

	query := url.Values{}
	if params.Name != "" {
		query.Set("name", params.Name)
	}
	if params.Limit > 0 {
		query.Set("limit", strconv.Itoa(params.Limit))
	}
	if !params.Since.IsZero() {
		query.Set("since", params.Since.UTC().Format(time.RFC3339))
	}

	endpoint := "/v1/events"
	if encoded := query.Encode(); encoded != "" {
		endpoint += "?" + encoded
	}

	var response eventsResponse
	err := retry.WithExponentialBackoff(ctx, c.retryConfig, func() error {
		return c.doJSON(ctx, http.MethodGet, endpoint, nil, &response)
	}, retry.IsTemporaryError)
	if err != nil {
		return nil, fmt.Errorf("list events failed: %w", err)
	}

	return response.Events, nil
}

func (c *Client) doJSON(ctx context.Context, method, endpoint string, body, out interface{}) error {
	var reqBody io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		reqBody = bytes.NewReader(jsonData)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.config.BaseURL+endpoint, reqBody)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.config.ServiceToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.config.ServiceToken)
	}
	tracing.InjectTraceContext(ctx, req.Header)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		metrics.RecordExternalAPICall("analytics", endpoint, "error", time.Since(start).Seconds())
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	metrics.RecordExternalAPICall("analytics", endpoint, strconv.Itoa(resp.StatusCode), time.Since(start).Seconds())

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode >= 400 {
		// Status text lands in the error string so the retry predicate can
		// recognize transient failures.
		return fmt.Errorf("analytics API error: status %d %s", resp.StatusCode, strings.ToLower(http.StatusText(resp.StatusCode)))
	}

	if out != nil && len(respBody) > 0 {
		if err := json.Unmarshal(respBody, out); err != nil {
			return fmt.Errorf("failed to unmarshal response: %w", err)
		}
	}

	return nil
}
