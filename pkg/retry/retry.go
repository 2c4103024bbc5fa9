// Package retry implements bounded exponential backoff for calls to
// external services.
package retry

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// RetryConfig bounds the retry loop.
type RetryConfig struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	Multiplier  float64
}

// DefaultConfig suits short HTTP calls: three attempts starting at
// 100ms and doubling.
func DefaultConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts: 3,
		BaseDelay:   100 * time.Millisecond,
		MaxDelay:    30 * time.Second,
		Multiplier:  2.0,
	}
}

// RetryableFunc is the operation under retry.
type RetryableFunc func() error

// IsRetryableFunc reports whether an error is worth another attempt.
type IsRetryableFunc func(error) bool

// WithExponentialBackoff runs fn up to MaxAttempts times, sleeping
// between attempts with exponential backoff. It stops early when fn
// succeeds, when isRetryable rejects the error, or when ctx is done.
func WithExponentialBackoff(ctx context.Context, config RetryConfig, fn RetryableFunc, isRetryable IsRetryableFunc) error {
	delay := config.BaseDelay
	var lastErr error

	for attempt := 1; attempt <= config.MaxAttempts; attempt++ {
		lastErr = fn()
		if lastErr == nil {
			return nil
		}

		if !isRetryable(lastErr) {
			return fmt.Errorf("non-retryable error: %w", lastErr)
		}

		if attempt == config.MaxAttempts {
			break
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("retry cancelled by context: %w", ctx.Err())
		case <-time.After(delay):
		}

		delay = time.Duration(float64(delay) * config.Multiplier)
		if delay > config.MaxDelay {
			delay = config.MaxDelay
		}
	}

	return fmt.Errorf("max retry attempts (%d) exceeded: %w", config.MaxAttempts, lastErr)
}

// transientMarkers are substrings of transport and HTTP errors that
// justify another attempt. The analytics client lowers status text
// into its error strings so the 5xx and 429 names match here.
var transientMarkers = []string{
	"timeout",
	"connection refused",
	"connection reset",
	"network is unreachable",
	"no route to host",
	"temporary failure",
	"service unavailable",
	"bad gateway",
	"gateway timeout",
	"internal server error",
	"too many requests",
	"rate limited",
}

// IsTemporaryError reports whether err looks transient.
func IsTemporaryError(err error) bool {
	if err == nil {
		return false
	}

	msg := err.Error()
	for _, marker := range transientMarkers {
		if strings.Contains(msg, marker) {
			return true
		}
	}

	return false
}
