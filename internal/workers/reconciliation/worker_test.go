package reconciliation

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/storefront-service/payment_service/internal/adapters/dodo"
	"github.com/storefront-service/payment_service/internal/domain/entities"
)

type MockPaymentLister struct {
	mock.Mock
}

func (m *MockPaymentLister) ListPayments(ctx context.Context, params dodo.ListPaymentsParams) ([]dodo.Payment, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]dodo.Payment), args.Error(1)
}

func (m *MockPaymentLister) GetPayment(ctx context.Context, paymentID string) (*dodo.Payment, error) {
	args := m.Called(ctx, paymentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*dodo.Payment), args.Error(1)
}

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

type MockAnalyticsRecorder struct {
	mock.Mock
}

func (m *MockAnalyticsRecorder) RecordEvent(ctx context.Context, event entities.AnalyticsEvent) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

func newTestWorker(t *testing.T) (*Worker, *MockPaymentLister, *MockSessionStore, *MockAnalyticsRecorder) {
	t.Helper()

	payments := new(MockPaymentLister)
	sessions := new(MockSessionStore)
	analytics := new(MockAnalyticsRecorder)

	worker, err := NewWorker(payments, sessions, analytics, DefaultConfig(), zaptest.NewLogger(t))
	require.NoError(t, err)

	return worker, payments, sessions, analytics
}

func TestRunReconciliation_ResolvedPaymentCorrectsSnapshot(t *testing.T) {
	worker, payments, sessions, analytics := newTestWorker(t)

	listed := []dodo.Payment{
		{PaymentID: "pay_done", Status: "succeeded"},
		{PaymentID: "pay_stuck", SessionID: "cs_stuck", Status: "processing"},
	}

	payments.On("ListPayments", mock.Anything, mock.AnythingOfType("dodo.ListPaymentsParams")).
		Return(listed, nil)
	payments.On("GetPayment", mock.Anything, "pay_stuck").
		Return(&dodo.Payment{PaymentID: "pay_stuck", SessionID: "cs_stuck", Status: "succeeded"}, nil)

	sessions.On("GetSession", mock.Anything, "cs_stuck").
		Return(&entities.SessionSnapshot{
			SessionID: "cs_stuck",
			Status:    entities.PaymentStatusProcessing,
		}, nil)

	var updated *entities.SessionSnapshot
	sessions.On("UpdateSnapshot", mock.Anything, mock.AnythingOfType("*entities.SessionSnapshot")).
		Run(func(args mock.Arguments) {
			updated = args.Get(1).(*entities.SessionSnapshot)
		}).
		Return(nil)

	analytics.On("RecordEvent", mock.Anything, mock.AnythingOfType("entities.AnalyticsEvent")).
		Return(nil)

	worker.runReconciliation()

	require.NotNil(t, updated)
	assert.Equal(t, entities.PaymentStatusSucceeded, updated.Status)
	assert.Equal(t, "pay_stuck", updated.PaymentID)

	status := worker.GetStatus()
	assert.Equal(t, 2, status["last_scanned"])
	assert.Equal(t, 1, status["last_resolved"])
	payments.AssertExpectations(t)
	sessions.AssertExpectations(t)
	analytics.AssertExpectations(t)
}

func TestRunReconciliation_StillPendingLeftAlone(t *testing.T) {
	worker, payments, sessions, analytics := newTestWorker(t)

	payments.On("ListPayments", mock.Anything, mock.Anything).
		Return([]dodo.Payment{
			{PaymentID: "pay_wait", SessionID: "cs_wait", Status: "processing"},
		}, nil)
	payments.On("GetPayment", mock.Anything, "pay_wait").
		Return(&dodo.Payment{PaymentID: "pay_wait", SessionID: "cs_wait", Status: "processing"}, nil)
	analytics.On("RecordEvent", mock.Anything, mock.Anything).Return(nil)

	worker.runReconciliation()

	sessions.AssertNotCalled(t, "GetSession", mock.Anything, mock.Anything)
	sessions.AssertNotCalled(t, "UpdateSnapshot", mock.Anything, mock.Anything)
}

func TestRunReconciliation_RecheckFailureSkipsPayment(t *testing.T) {
	worker, payments, sessions, analytics := newTestWorker(t)

	payments.On("ListPayments", mock.Anything, mock.Anything).
		Return([]dodo.Payment{
			{PaymentID: "pay_err", Status: "pending"},
		}, nil)
	payments.On("GetPayment", mock.Anything, "pay_err").
		Return(nil, errors.New("provider timeout"))
	analytics.On("RecordEvent", mock.Anything, mock.Anything).Return(nil)

	worker.runReconciliation()

	sessions.AssertNotCalled(t, "UpdateSnapshot", mock.Anything, mock.Anything)

	status := worker.GetStatus()
	assert.Equal(t, 1, status["last_scanned"])
	assert.Equal(t, 0, status["last_resolved"])
}

func TestRunReconciliation_ListFailureCountsAsFailedRun(t *testing.T) {
	worker, payments, _, analytics := newTestWorker(t)

	payments.On("ListPayments", mock.Anything, mock.Anything).
		Return(nil, errors.New("circuit open"))

	worker.runReconciliation()

	analytics.AssertNotCalled(t, "RecordEvent", mock.Anything, mock.Anything)

	status := worker.GetStatus()
	assert.Equal(t, int64(1), status["total_runs"])
	assert.Equal(t, int64(1), status["failed_runs"])
}

func TestRunReconciliation_NoSessionReferenceSkipsSnapshot(t *testing.T) {
	worker, payments, sessions, analytics := newTestWorker(t)

	payments.On("ListPayments", mock.Anything, mock.Anything).
		Return([]dodo.Payment{
			{PaymentID: "pay_orphan", Status: "processing"},
		}, nil)
	payments.On("GetPayment", mock.Anything, "pay_orphan").
		Return(&dodo.Payment{PaymentID: "pay_orphan", Status: "succeeded"}, nil)
	analytics.On("RecordEvent", mock.Anything, mock.Anything).Return(nil)

	worker.runReconciliation()

	sessions.AssertNotCalled(t, "GetSession", mock.Anything, mock.Anything)
}

func TestRunReconciliation_AnalyticsPayload(t *testing.T) {
	worker, payments, _, analytics := newTestWorker(t)

	payments.On("ListPayments", mock.Anything, mock.Anything).
		Return([]dodo.Payment{
			{PaymentID: "pay_1", Status: "succeeded"},
			{PaymentID: "pay_2", Status: "succeeded"},
			{PaymentID: "pay_3", Status: "failed"},
		}, nil)

	var recorded entities.AnalyticsEvent
	analytics.On("RecordEvent", mock.Anything, mock.AnythingOfType("entities.AnalyticsEvent")).
		Run(func(args mock.Arguments) {
			recorded = args.Get(1).(entities.AnalyticsEvent)
		}).
		Return(nil)

	worker.runReconciliation()

	assert.Equal(t, entities.AnalyticsReconciliation, recorded.Name)
	assert.Equal(t, 3, recorded.Properties["scanned"])
	assert.Equal(t, 0, recorded.Properties["rechecked"])

	byStatus, ok := recorded.Properties["by_status"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, 2, byStatus["succeeded"])
	assert.Equal(t, 1, byStatus["failed"])
}

func TestWorkerStartStop(t *testing.T) {
	worker, _, _, _ := newTestWorker(t)

	assert.False(t, worker.IsRunning())

	require.NoError(t, worker.Start())
	assert.True(t, worker.IsRunning())

	assert.Error(t, worker.Start())

	require.NoError(t, worker.Stop())
	assert.False(t, worker.IsRunning())

	assert.Error(t, worker.Stop())
}

func TestWorkerListWindow(t *testing.T) {
	worker, payments, _, analytics := newTestWorker(t)

	var params dodo.ListPaymentsParams
	payments.On("ListPayments", mock.Anything, mock.AnythingOfType("dodo.ListPaymentsParams")).
		Run(func(args mock.Arguments) {
			params = args.Get(1).(dodo.ListPaymentsParams)
		}).
		Return([]dodo.Payment{}, nil)
	analytics.On("RecordEvent", mock.Anything, mock.Anything).Return(nil)

	worker.runReconciliation()

	assert.Equal(t, 100, params.PageSize)
	// Lookback window: CreatedAtGTE sits about 24h behind now.
	expected := time.Now().Add(-24 * time.Hour)
	assert.WithinDuration(t, expected, params.CreatedAtGTE, time.Minute)
}

func TestMapPaymentStatus(t *testing.T) {
	tests := []struct {
		provider string
		want     entities.PaymentStatus
	}{
		{"succeeded", entities.PaymentStatusSucceeded},
		{"refunded", entities.PaymentStatusRefunded},
		{"failed", entities.PaymentStatusFailed},
		{"cancelled", entities.PaymentStatusFailed},
	}

	for _, tt := range tests {
		t.Run(tt.provider, func(t *testing.T) {
			assert.Equal(t, tt.want, mapPaymentStatus(tt.provider))
		})
	}
}
