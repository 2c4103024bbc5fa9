package payments

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"time"

	"go.uber.org/zap"

	"github.com/storefront-service/payment_service/internal/domain/entities"
	"github.com/storefront-service/payment_service/pkg/errors"
	"github.com/storefront-service/payment_service/pkg/idempotency"
	"github.com/storefront-service/payment_service/pkg/metrics"
)

// Service runs the pipeline for verified webhook events: deduplicate,
// dispatch on event type, update the session snapshot, then notify the
// customer and the analytics backend best effort.
type Service struct {
	dedup     DedupStore
	sessions  SessionStore
	mailer    Mailer
	analytics AnalyticsRecorder
	window    time.Duration
	logger    *zap.Logger
	now       func() time.Time
}

// DedupStore interface for atomic event markers
type DedupStore interface {
	SetNX(ctx context.Context, key string, value interface{}, ttl time.Duration) (bool, error)
}

// SessionStore interface for checkout session snapshots
type SessionStore interface {
	GetSession(ctx context.Context, sessionID string) (*entities.SessionSnapshot, error)
	UpdateSnapshot(ctx context.Context, snapshot *entities.SessionSnapshot) error
}

// Mailer interface for customer payment notifications
type Mailer interface {
	SendPaymentConfirmation(ctx context.Context, n entities.PaymentNotification) error
	SendPaymentFailure(ctx context.Context, n entities.PaymentNotification) error
}

// AnalyticsRecorder interface for best-effort order event reporting
type AnalyticsRecorder interface {
	RecordEvent(ctx context.Context, event entities.AnalyticsEvent) error
}

// ProcessResult reports what the pipeline did with a verified event
type ProcessResult struct {
	EventID        string `json:"event_id"`
	Type           string `json:"type"`
	Duplicate      bool   `json:"duplicate"`
	Handled        bool   `json:"handled"`
	TrackingNumber string `json:"tracking_number,omitempty"`
}

// NewService creates a new payments service. The freshness window must match
// the verifier's so dedup markers outlive the replay window.
func NewService(
	dedup DedupStore,
	sessions SessionStore,
	mailer Mailer,
	analytics AnalyticsRecorder,
	freshnessWindow time.Duration,
	logger *zap.Logger,
) *Service {
	return &Service{
		dedup:     dedup,
		sessions:  sessions,
		mailer:    mailer,
		analytics: analytics,
		window:    freshnessWindow,
		logger:    logger,
		now:       time.Now,
	}
}

// ProcessEvent handles a webhook event whose signature and freshness have
// already been verified. Redeliveries of an already-processed event ID are
// acknowledged without re-running business actions.
func (s *Service) ProcessEvent(ctx context.Context, provider entities.PaymentProvider, event *entities.WebhookEvent) (*ProcessResult, error) {
	if err := idempotency.ValidateEventID(event.ID); err != nil {
		metrics.RecordWebhookEvent(string(provider), event.Type, "invalid_id")
		return nil, errors.Wrap(err, errors.ErrCodeInvalidInput, "invalid webhook event id")
	}

	result := &ProcessResult{EventID: event.ID, Type: event.Type}

	created, err := s.dedup.SetNX(ctx,
		idempotency.EventKey(string(provider), event.ID),
		idempotency.HashPayload(event.RawBody),
		idempotency.EventTTL(s.window))
	if err != nil {
		// Fail open: better to risk reprocessing one delivery than to
		// drop a paid order because Redis is down.
		s.logger.Warn("Webhook deduplication unavailable, processing anyway",
			zap.String("event_id", event.ID),
			zap.Error(err))
	} else if !created {
		s.logger.Info("Duplicate webhook event acknowledged",
			zap.String("event_id", event.ID),
			zap.String("type", event.Type))
		metrics.RecordWebhookEvent(string(provider), event.Type, "duplicate")
		result.Duplicate = true
		return result, nil
	}

	s.logger.Info("Processing webhook event",
		zap.String("event_id", event.ID),
		zap.String("type", event.Type),
		zap.String("provider", string(provider)))

	switch event.Type {
	case entities.EventPaymentSucceeded:
		result.TrackingNumber = s.handlePaymentSucceeded(ctx, event)
		result.Handled = true
	case entities.EventPaymentFailed:
		s.handlePaymentFailed(ctx, event)
		result.Handled = true
	case entities.EventPaymentProcessing:
		s.updateSessionStatus(ctx, event, entities.PaymentStatusProcessing, "")
		result.Handled = true
	case entities.EventRefundSucceeded:
		s.updateSessionStatus(ctx, event, entities.PaymentStatusRefunded, "")
		result.Handled = true
	default:
		// Unknown types are acknowledged so the provider stops retrying;
		// the dedup marker stands in case the type is handled later.
		s.logger.Warn("Unhandled webhook event type",
			zap.String("event_id", event.ID),
			zap.String("type", event.Type))
		metrics.RecordWebhookEvent(string(provider), event.Type, "ignored")
		return result, nil
	}

	metrics.RecordWebhookEvent(string(provider), event.Type, "processed")
	return result, nil
}

func (s *Service) handlePaymentSucceeded(ctx context.Context, event *entities.WebhookEvent) string {
	data := event.PaymentData()
	trackingNumber := generateTrackingNumber()

	snapshot := s.updateSessionStatus(ctx, event, entities.PaymentStatusSucceeded, trackingNumber)

	notification := s.buildNotification(data, snapshot)
	notification.TrackingNumber = trackingNumber

	if notification.CustomerEmail != "" {
		if err := s.mailer.SendPaymentConfirmation(ctx, notification); err != nil {
			s.logger.Warn("Failed to send payment confirmation email",
				zap.String("order_number", notification.OrderNumber),
				zap.Error(err))
		}
	} else {
		s.logger.Warn("No customer email for payment confirmation",
			zap.String("event_id", event.ID),
			zap.String("payment_id", data.PaymentID))
	}

	s.recordAnalytics(ctx, entities.AnalyticsPaymentSucceeded, map[string]interface{}{
		"order_number": notification.OrderNumber,
		"payment_id":   data.PaymentID,
		"amount_minor": notification.AmountMinor,
		"currency":     notification.Currency,
	})

	s.logger.Info("Payment succeeded",
		zap.String("event_id", event.ID),
		zap.String("payment_id", data.PaymentID),
		zap.String("order_number", notification.OrderNumber),
		zap.String("tracking_number", trackingNumber))

	return trackingNumber
}

func (s *Service) handlePaymentFailed(ctx context.Context, event *entities.WebhookEvent) {
	data := event.PaymentData()

	snapshot := s.updateSessionStatus(ctx, event, entities.PaymentStatusFailed, "")

	notification := s.buildNotification(data, snapshot)
	if notification.CustomerEmail != "" {
		if err := s.mailer.SendPaymentFailure(ctx, notification); err != nil {
			s.logger.Warn("Failed to send payment failure email",
				zap.String("order_number", notification.OrderNumber),
				zap.Error(err))
		}
	}

	s.recordAnalytics(ctx, entities.AnalyticsPaymentFailed, map[string]interface{}{
		"order_number":   notification.OrderNumber,
		"payment_id":     data.PaymentID,
		"failure_reason": data.FailureReason,
	})

	s.logger.Info("Payment failed",
		zap.String("event_id", event.ID),
		zap.String("payment_id", data.PaymentID),
		zap.String("reason", data.FailureReason))
}

// updateSessionStatus moves the checkout snapshot to the new status and
// returns it. Sessions age out of the cache, so a missing snapshot is logged
// and skipped rather than treated as an error.
func (s *Service) updateSessionStatus(ctx context.Context, event *entities.WebhookEvent, status entities.PaymentStatus, trackingNumber string) *entities.SessionSnapshot {
	data := event.PaymentData()
	if data.SessionID == "" {
		s.logger.Warn("Webhook event carries no session id",
			zap.String("event_id", event.ID),
			zap.String("type", event.Type))
		return nil
	}

	snapshot, err := s.sessions.GetSession(ctx, data.SessionID)
	if err != nil {
		s.logger.Warn("No session snapshot for webhook event",
			zap.String("event_id", event.ID),
			zap.String("session_id", data.SessionID),
			zap.Error(err))
		return nil
	}

	snapshot.Status = status
	if data.PaymentID != "" {
		snapshot.PaymentID = data.PaymentID
	}
	if trackingNumber != "" {
		snapshot.TrackingNumber = trackingNumber
	}
	if err := s.sessions.UpdateSnapshot(ctx, snapshot); err != nil {
		s.logger.Error("Failed to update session snapshot",
			zap.String("session_id", data.SessionID),
			zap.Error(err))
		return snapshot
	}

	s.logger.Info("Session snapshot updated",
		zap.String("session_id", data.SessionID),
		zap.String("status", string(status)))
	return snapshot
}

// buildNotification merges event data with the snapshot; the event wins
// where both carry a value.
func (s *Service) buildNotification(data entities.PaymentEventData, snapshot *entities.SessionSnapshot) entities.PaymentNotification {
	n := entities.PaymentNotification{
		OrderNumber:   data.OrderNumber,
		CustomerEmail: data.CustomerEmail,
		CustomerName:  data.CustomerName,
		AmountMinor:   data.AmountMinor,
		Currency:      data.Currency,
		FailureReason: data.FailureReason,
	}
	if snapshot == nil {
		return n
	}
	if n.OrderNumber == "" {
		n.OrderNumber = snapshot.OrderNumber
	}
	if n.CustomerEmail == "" {
		n.CustomerEmail = snapshot.CustomerEmail
	}
	if n.CustomerName == "" {
		n.CustomerName = snapshot.CustomerName
	}
	if n.AmountMinor == 0 {
		n.AmountMinor = snapshot.AmountMinor
	}
	if n.Currency == "" {
		n.Currency = snapshot.Currency
	}
	return n
}

func (s *Service) recordAnalytics(ctx context.Context, name string, props map[string]interface{}) {
	if s.analytics == nil {
		return
	}
	err := s.analytics.RecordEvent(ctx, entities.AnalyticsEvent{
		Name:       name,
		OccurredAt: s.now(),
		Properties: props,
	})
	if err != nil {
		s.logger.Warn("Failed to record analytics event",
			zap.String("event", name),
			zap.Error(err))
	}
}

// generateTrackingNumber builds a shipment reference, e.g. TRK-482915306741.
func generateTrackingNumber() string {
	limit := big.NewInt(1_000_000_000_000)
	n, err := rand.Int(rand.Reader, limit)
	if err != nil {
		n = big.NewInt(time.Now().UnixNano() % 1_000_000_000_000)
	}
	return fmt.Sprintf("TRK-%012d", n)
}
