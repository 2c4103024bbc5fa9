package payments

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/storefront-service/payment_service/internal/domain/entities"
	svcerrors "github.com/storefront-service/payment_service/pkg/errors"
)

// MockDedupStore is a mock implementation of DedupStore
type MockDedupStore struct {
	mock.Mock
}

func (m *MockDedupStore) SetNX(ctx context.Context, key string, value interface{}, ttl time.Duration) (bool, error) {
	args := m.Called(ctx, key, value, ttl)
	return args.Bool(0), args.Error(1)
}

// MockSessionStore is a mock implementation of SessionStore
type MockSessionStore struct {
	mock.Mock
}

func (m *MockSessionStore) GetSession(ctx context.Context, sessionID string) (*entities.SessionSnapshot, error) {
	args := m.Called(ctx, sessionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.SessionSnapshot), args.Error(1)
}

func (m *MockSessionStore) UpdateSnapshot(ctx context.Context, snapshot *entities.SessionSnapshot) error {
	args := m.Called(ctx, snapshot)
	return args.Error(0)
}

// MockMailer is a mock implementation of Mailer
type MockMailer struct {
	mock.Mock
}

func (m *MockMailer) SendPaymentConfirmation(ctx context.Context, n entities.PaymentNotification) error {
	args := m.Called(ctx, n)
	return args.Error(0)
}

func (m *MockMailer) SendPaymentFailure(ctx context.Context, n entities.PaymentNotification) error {
	args := m.Called(ctx, n)
	return args.Error(0)
}

// MockAnalyticsRecorder is a mock implementation of AnalyticsRecorder
type MockAnalyticsRecorder struct {
	mock.Mock
}

func (m *MockAnalyticsRecorder) RecordEvent(ctx context.Context, event entities.AnalyticsEvent) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

func newTestService(t *testing.T, dedup *MockDedupStore, sessions *MockSessionStore, mailer *MockMailer, analytics *MockAnalyticsRecorder) *Service {
	svc := NewService(dedup, sessions, mailer, analytics, 3*time.Minute, zaptest.NewLogger(t))
	svc.now = func() time.Time {
		return time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC)
	}
	return svc
}

func succeededEvent() *entities.WebhookEvent {
	return &entities.WebhookEvent{
		ID:   "evt_abc123",
		Type: entities.EventPaymentSucceeded,
		Data: map[string]interface{}{
			"payment_id":     "pay_789",
			"session_id":     "cs_test_123",
			"order_number":   "ORD-20240115-K7KQJRAE",
			"amount":         float64(6448),
			"currency":       "USD",
			"customer_email": "jane@example.com",
			"customer_name":  "Jane",
		},
		RawBody: []byte(`{"type":"payment.succeeded"}`),
	}
}

func pendingSnapshot() *entities.SessionSnapshot {
	return &entities.SessionSnapshot{
		SessionID:     "cs_test_123",
		OrderNumber:   "ORD-20240115-K7KQJRAE",
		Provider:      entities.ProviderDodo,
		AmountMinor:   6448,
		Currency:      "USD",
		CustomerEmail: "jane@example.com",
		CustomerName:  "Jane",
		Status:        entities.PaymentStatusPending,
	}
}

func TestProcessEvent_PaymentSucceeded(t *testing.T) {
	dedup := new(MockDedupStore)
	sessions := new(MockSessionStore)
	mailer := new(MockMailer)
	analytics := new(MockAnalyticsRecorder)
	svc := newTestService(t, dedup, sessions, mailer, analytics)

	ctx := context.Background()
	// Freshness window is 3 minutes; the marker TTL is floored at 10.
	dedup.On("SetNX", ctx, "webhook:event:dodo:evt_abc123", mock.AnythingOfType("string"), 10*time.Minute).
		Return(true, nil)
	sessions.On("GetSession", ctx, "cs_test_123").Return(pendingSnapshot(), nil)

	var updated *entities.SessionSnapshot
	sessions.On("UpdateSnapshot", ctx, mock.AnythingOfType("*entities.SessionSnapshot")).
		Run(func(args mock.Arguments) {
			updated = args.Get(1).(*entities.SessionSnapshot)
		}).
		Return(nil)

	var sent entities.PaymentNotification
	mailer.On("SendPaymentConfirmation", ctx, mock.AnythingOfType("entities.PaymentNotification")).
		Run(func(args mock.Arguments) {
			sent = args.Get(1).(entities.PaymentNotification)
		}).
		Return(nil)

	var recorded entities.AnalyticsEvent
	analytics.On("RecordEvent", ctx, mock.AnythingOfType("entities.AnalyticsEvent")).
		Run(func(args mock.Arguments) {
			recorded = args.Get(1).(entities.AnalyticsEvent)
		}).
		Return(nil)

	result, err := svc.ProcessEvent(ctx, entities.ProviderDodo, succeededEvent())
	require.NoError(t, err)

	assert.True(t, result.Handled)
	assert.False(t, result.Duplicate)
	assert.Regexp(t, `^TRK-\d{12}$`, result.TrackingNumber)

	require.NotNil(t, updated)
	assert.Equal(t, entities.PaymentStatusSucceeded, updated.Status)
	assert.Equal(t, "pay_789", updated.PaymentID)
	assert.Equal(t, result.TrackingNumber, updated.TrackingNumber)

	assert.Equal(t, "jane@example.com", sent.CustomerEmail)
	assert.Equal(t, "ORD-20240115-K7KQJRAE", sent.OrderNumber)
	assert.Equal(t, int64(6448), sent.AmountMinor)
	assert.Equal(t, result.TrackingNumber, sent.TrackingNumber)

	assert.Equal(t, entities.AnalyticsPaymentSucceeded, recorded.Name)
	assert.Equal(t, "pay_789", recorded.Properties["payment_id"])

	dedup.AssertExpectations(t)
	sessions.AssertExpectations(t)
	mailer.AssertExpectations(t)
	analytics.AssertExpectations(t)
}

func TestProcessEvent_DuplicateAcknowledgedWithoutReprocessing(t *testing.T) {
	dedup := new(MockDedupStore)
	sessions := new(MockSessionStore)
	mailer := new(MockMailer)
	svc := newTestService(t, dedup, sessions, mailer, new(MockAnalyticsRecorder))

	ctx := context.Background()
	dedup.On("SetNX", ctx, mock.Anything, mock.Anything, mock.Anything).Return(false, nil)

	result, err := svc.ProcessEvent(ctx, entities.ProviderDodo, succeededEvent())
	require.NoError(t, err)

	assert.True(t, result.Duplicate)
	assert.False(t, result.Handled)
	assert.Empty(t, result.TrackingNumber)
	sessions.AssertNotCalled(t, "GetSession", mock.Anything, mock.Anything)
	mailer.AssertNotCalled(t, "SendPaymentConfirmation", mock.Anything, mock.Anything)
}

func TestProcessEvent_DedupOutageFailsOpen(t *testing.T) {
	dedup := new(MockDedupStore)
	sessions := new(MockSessionStore)
	mailer := new(MockMailer)
	analytics := new(MockAnalyticsRecorder)
	svc := newTestService(t, dedup, sessions, mailer, analytics)

	ctx := context.Background()
	dedup.On("SetNX", ctx, mock.Anything, mock.Anything, mock.Anything).
		Return(false, errors.New("redis: connection refused"))
	sessions.On("GetSession", ctx, "cs_test_123").Return(pendingSnapshot(), nil)
	sessions.On("UpdateSnapshot", ctx, mock.Anything).Return(nil)
	mailer.On("SendPaymentConfirmation", ctx, mock.Anything).Return(nil)
	analytics.On("RecordEvent", ctx, mock.Anything).Return(nil)

	result, err := svc.ProcessEvent(ctx, entities.ProviderDodo, succeededEvent())
	require.NoError(t, err)

	assert.True(t, result.Handled)
	assert.False(t, result.Duplicate)
	mailer.AssertCalled(t, "SendPaymentConfirmation", ctx, mock.Anything)
}

func TestProcessEvent_InvalidEventID(t *testing.T) {
	dedup := new(MockDedupStore)
	svc := newTestService(t, dedup, new(MockSessionStore), new(MockMailer), new(MockAnalyticsRecorder))

	event := succeededEvent()
	event.ID = "evt abc<script>"

	_, err := svc.ProcessEvent(context.Background(), entities.ProviderDodo, event)
	require.Error(t, err)

	var svcErr *svcerrors.ServiceError
	require.True(t, errors.As(err, &svcErr))
	assert.Equal(t, svcerrors.ErrCodeInvalidInput, svcErr.Code)
	dedup.AssertNotCalled(t, "SetNX", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestProcessEvent_PaymentFailed(t *testing.T) {
	dedup := new(MockDedupStore)
	sessions := new(MockSessionStore)
	mailer := new(MockMailer)
	analytics := new(MockAnalyticsRecorder)
	svc := newTestService(t, dedup, sessions, mailer, analytics)

	ctx := context.Background()
	event := &entities.WebhookEvent{
		ID:   "evt_fail_1",
		Type: entities.EventPaymentFailed,
		Data: map[string]interface{}{
			"payment_id":     "pay_790",
			"session_id":     "cs_test_123",
			"customer_email": "jane@example.com",
			"failure_reason": "card_declined",
		},
		RawBody: []byte(`{"type":"payment.failed"}`),
	}

	dedup.On("SetNX", ctx, "webhook:event:dodo:evt_fail_1", mock.Anything, mock.Anything).Return(true, nil)
	sessions.On("GetSession", ctx, "cs_test_123").Return(pendingSnapshot(), nil)

	var updated *entities.SessionSnapshot
	sessions.On("UpdateSnapshot", ctx, mock.Anything).
		Run(func(args mock.Arguments) {
			updated = args.Get(1).(*entities.SessionSnapshot)
		}).
		Return(nil)

	var sent entities.PaymentNotification
	mailer.On("SendPaymentFailure", ctx, mock.Anything).
		Run(func(args mock.Arguments) {
			sent = args.Get(1).(entities.PaymentNotification)
		}).
		Return(nil)
	analytics.On("RecordEvent", ctx, mock.Anything).Return(nil)

	result, err := svc.ProcessEvent(ctx, entities.ProviderDodo, event)
	require.NoError(t, err)

	assert.True(t, result.Handled)
	assert.Empty(t, result.TrackingNumber)
	assert.Equal(t, entities.PaymentStatusFailed, updated.Status)
	assert.Equal(t, "card_declined", sent.FailureReason)
	assert.Equal(t, "ORD-20240115-K7KQJRAE", sent.OrderNumber)
	mailer.AssertNotCalled(t, "SendPaymentConfirmation", mock.Anything, mock.Anything)
}

func TestProcessEvent_SnapshotFillsMissingEventFields(t *testing.T) {
	dedup := new(MockDedupStore)
	sessions := new(MockSessionStore)
	mailer := new(MockMailer)
	analytics := new(MockAnalyticsRecorder)
	svc := newTestService(t, dedup, sessions, mailer, analytics)

	ctx := context.Background()
	// Provider sends a minimal payload; the snapshot supplies the customer
	// and amount for the notification.
	event := &entities.WebhookEvent{
		ID:   "evt_min_1",
		Type: entities.EventPaymentSucceeded,
		Data: map[string]interface{}{
			"payment_id": "pay_791",
			"session_id": "cs_test_123",
		},
		RawBody: []byte(`{"type":"payment.succeeded"}`),
	}

	dedup.On("SetNX", ctx, mock.Anything, mock.Anything, mock.Anything).Return(true, nil)
	sessions.On("GetSession", ctx, "cs_test_123").Return(pendingSnapshot(), nil)
	sessions.On("UpdateSnapshot", ctx, mock.Anything).Return(nil)

	var sent entities.PaymentNotification
	mailer.On("SendPaymentConfirmation", ctx, mock.Anything).
		Run(func(args mock.Arguments) {
			sent = args.Get(1).(entities.PaymentNotification)
		}).
		Return(nil)
	analytics.On("RecordEvent", ctx, mock.Anything).Return(nil)

	_, err := svc.ProcessEvent(ctx, entities.ProviderDodo, event)
	require.NoError(t, err)

	assert.Equal(t, "jane@example.com", sent.CustomerEmail)
	assert.Equal(t, "ORD-20240115-K7KQJRAE", sent.OrderNumber)
	assert.Equal(t, int64(6448), sent.AmountMinor)
	assert.Equal(t, "USD", sent.Currency)
}

func TestProcessEvent_MissingSnapshotStillNotifies(t *testing.T) {
	dedup := new(MockDedupStore)
	sessions := new(MockSessionStore)
	mailer := new(MockMailer)
	analytics := new(MockAnalyticsRecorder)
	svc := newTestService(t, dedup, sessions, mailer, analytics)

	ctx := context.Background()
	dedup.On("SetNX", ctx, mock.Anything, mock.Anything, mock.Anything).Return(true, nil)
	sessions.On("GetSession", ctx, "cs_test_123").
		Return(nil, errors.New("checkout session not found"))
	mailer.On("SendPaymentConfirmation", ctx, mock.Anything).Return(nil)
	analytics.On("RecordEvent", ctx, mock.Anything).Return(nil)

	result, err := svc.ProcessEvent(ctx, entities.ProviderDodo, succeededEvent())
	require.NoError(t, err)

	assert.True(t, result.Handled)
	sessions.AssertNotCalled(t, "UpdateSnapshot", mock.Anything, mock.Anything)
	mailer.AssertCalled(t, "SendPaymentConfirmation", ctx, mock.Anything)
}

func TestProcessEvent_RefundSucceeded(t *testing.T) {
	dedup := new(MockDedupStore)
	sessions := new(MockSessionStore)
	mailer := new(MockMailer)
	svc := newTestService(t, dedup, sessions, mailer, new(MockAnalyticsRecorder))

	ctx := context.Background()
	event := &entities.WebhookEvent{
		ID:   "evt_refund_1",
		Type: entities.EventRefundSucceeded,
		Data: map[string]interface{}{
			"payment_id": "pay_789",
			"session_id": "cs_test_123",
		},
		RawBody: []byte(`{"type":"refund.succeeded"}`),
	}

	dedup.On("SetNX", ctx, mock.Anything, mock.Anything, mock.Anything).Return(true, nil)
	sessions.On("GetSession", ctx, "cs_test_123").Return(pendingSnapshot(), nil)

	var updated *entities.SessionSnapshot
	sessions.On("UpdateSnapshot", ctx, mock.Anything).
		Run(func(args mock.Arguments) {
			updated = args.Get(1).(*entities.SessionSnapshot)
		}).
		Return(nil)

	result, err := svc.ProcessEvent(ctx, entities.ProviderDodo, event)
	require.NoError(t, err)

	assert.True(t, result.Handled)
	assert.Equal(t, entities.PaymentStatusRefunded, updated.Status)
	mailer.AssertNotCalled(t, "SendPaymentConfirmation", mock.Anything, mock.Anything)
	mailer.AssertNotCalled(t, "SendPaymentFailure", mock.Anything, mock.Anything)
}

func TestProcessEvent_UnknownTypeAcknowledged(t *testing.T) {
	dedup := new(MockDedupStore)
	sessions := new(MockSessionStore)
	mailer := new(MockMailer)
	svc := newTestService(t, dedup, sessions, mailer, new(MockAnalyticsRecorder))

	ctx := context.Background()
	event := &entities.WebhookEvent{
		ID:      "evt_odd_1",
		Type:    "subscription.renewed",
		Data:    map[string]interface{}{},
		RawBody: []byte(`{"type":"subscription.renewed"}`),
	}

	dedup.On("SetNX", ctx, mock.Anything, mock.Anything, mock.Anything).Return(true, nil)

	result, err := svc.ProcessEvent(ctx, entities.ProviderDodo, event)
	require.NoError(t, err)

	assert.False(t, result.Handled)
	assert.False(t, result.Duplicate)
	sessions.AssertNotCalled(t, "GetSession", mock.Anything, mock.Anything)
	mailer.AssertNotCalled(t, "SendPaymentConfirmation", mock.Anything, mock.Anything)
}

func TestGenerateTrackingNumber(t *testing.T) {
	first := generateTrackingNumber()
	second := generateTrackingNumber()

	assert.Regexp(t, `^TRK-\d{12}$`, first)
	assert.Regexp(t, `^TRK-\d{12}$`, second)
	assert.NotEqual(t, first, second)
}
