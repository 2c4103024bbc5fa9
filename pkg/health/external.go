package health

import (
	"context"
	"fmt"
	"net/http"
	"time"
)

const (
	defaultProbeTimeout = 10 * time.Second
	slowResponseAfter   = 5 * time.Second
)

// ExternalAPIChecker probes a payment provider's public health endpoint
// over HTTP. Client-side status codes report degraded rather than
// unhealthy, since those usually mean the endpoint moved rather than
// the provider being down.
type ExternalAPIChecker struct {
	name      string
	healthURL string
	client    *http.Client
	timeout   time.Duration
}

// NewExternalAPIChecker creates a probe for the given provider health URL.
func NewExternalAPIChecker(name, healthURL string, timeout time.Duration) *ExternalAPIChecker {
	if timeout <= 0 {
		timeout = defaultProbeTimeout
	}

	return &ExternalAPIChecker{
		name:      name,
		healthURL: healthURL,
		client:    &http.Client{Timeout: timeout},
		timeout:   timeout,
	}
}

// Check issues a GET against the health URL and classifies the response.
func (c *ExternalAPIChecker) Check(ctx context.Context) CheckResult {
	start := time.Now()

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.healthURL, nil)
	if err != nil {
		return NewUnhealthyResult(c.name, err).WithDuration(time.Since(start))
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return NewUnhealthyResult(c.name, err).WithDuration(time.Since(start))
	}
	resp.Body.Close()

	elapsed := time.Since(start)

	return c.classify(resp.StatusCode, elapsed).
		WithDuration(elapsed).
		WithMetadata("status_code", resp.StatusCode).
		WithMetadata("endpoint", c.healthURL)
}

// classify folds status code and latency into a result. A slow answer
// counts as degraded no matter what the provider returned.
func (c *ExternalAPIChecker) classify(statusCode int, elapsed time.Duration) CheckResult {
	switch {
	case elapsed > slowResponseAfter:
		return NewCheckResult(c.name, StatusDegraded, "slow response time", nil)
	case statusCode >= 200 && statusCode < 300:
		return NewHealthyResult(c.name, "api reachable")
	case statusCode >= 500:
		return NewCheckResult(c.name, StatusUnhealthy, fmt.Sprintf("api returned %d", statusCode), nil)
	default:
		return NewCheckResult(c.name, StatusDegraded, fmt.Sprintf("api returned %d", statusCode), nil)
	}
}

// Name returns the provider name.
func (c *ExternalAPIChecker) Name() string {
	return c.name
}
