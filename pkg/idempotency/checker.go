package idempotency

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"time"
)

const (
	// DefaultEventTTL is the minimum lifetime of a webhook dedup marker.
	// It must outlive the verifier's freshness window or a replay could
	// land after the marker expires but inside the window.
	DefaultEventTTL = 10 * time.Minute

	// MaxEventTTL caps dedup marker lifetime (24 hours)
	MaxEventTTL = 24 * time.Hour
)

// EventKey builds the cache key under which a provider event ID is marked
// as processed.
func EventKey(provider, eventID string) string {
	return fmt.Sprintf("webhook:event:%s:%s", provider, eventID)
}

// ValidateEventID validates a provider-assigned event identifier
func ValidateEventID(id string) error {
	if id == "" {
		return fmt.Errorf("event id cannot be empty")
	}

	if len(id) > 255 {
		return fmt.Errorf("event id must not exceed 255 characters")
	}

	for _, c := range id {
		if !((c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') ||
			(c >= '0' && c <= '9') || c == '-' || c == '_') {
			return fmt.Errorf("event id contains invalid character: %c", c)
		}
	}

	return nil
}

// EventTTL derives the dedup marker lifetime from the freshness window:
// twice the window, floored at DefaultEventTTL and capped at MaxEventTTL.
func EventTTL(window time.Duration) time.Duration {
	ttl := 2 * window
	if ttl < DefaultEventTTL {
		ttl = DefaultEventTTL
	}
	if ttl > MaxEventTTL {
		ttl = MaxEventTTL
	}
	return ttl
}

// HashPayload creates a SHA-256 hash of the raw payload. Stored with the
// dedup marker so a redelivery with the same ID but different body can be
// told apart from a plain retry.
func HashPayload(body []byte) string {
	hash := sha256.Sum256(body)
	return hex.EncodeToString(hash[:])
}

// ReadBody reads a request body with a size cap
func ReadBody(body io.ReadCloser, maxSize int64) ([]byte, error) {
	if maxSize == 0 {
		maxSize = 10 << 20 // 10MB default
	}

	limitedReader := io.LimitReader(body, maxSize)
	bodyBytes, err := io.ReadAll(limitedReader)
	if err != nil {
		return nil, fmt.Errorf("failed to read request body: %w", err)
	}

	return bodyBytes, nil
}
