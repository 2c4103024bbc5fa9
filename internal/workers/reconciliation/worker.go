package reconciliation

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/storefront-service/payment_service/internal/adapters/dodo"
	"github.com/storefront-service/payment_service/internal/domain/entities"
	"github.com/storefront-service/payment_service/pkg/metrics"
)

// PaymentLister reads payments back from the card processor
type PaymentLister interface {
	ListPayments(ctx context.Context, params dodo.ListPaymentsParams) ([]dodo.Payment, error)
	GetPayment(ctx context.Context, paymentID string) (*dodo.Payment, error)
}

// SessionStore reads and updates cached session snapshots
type SessionStore interface {
	GetSession(ctx context.Context, sessionID string) (*entities.SessionSnapshot, error)
	UpdateSnapshot(ctx context.Context, snapshot *entities.SessionSnapshot) error
}

// AnalyticsRecorder pushes reconciliation summaries to the analytics backend
type AnalyticsRecorder interface {
	RecordEvent(ctx context.Context, event entities.AnalyticsEvent) error
}

// Config controls the reconciliation schedule and scan window
type Config struct {
	// Schedule is a cron expression (default: every 10 minutes)
	Schedule string

	// Lookback bounds how far back the payment listing reaches
	Lookback time.Duration

	// PageSize caps a single listing request
	PageSize int

	// Timezone for the cron schedule
	Timezone string
}

// DefaultConfig returns a default configuration
func DefaultConfig() *Config {
	return &Config{
		Schedule: "*/10 * * * *",
		Lookback: 24 * time.Hour,
		PageSize: 100,
		Timezone: "UTC",
	}
}

// RunStats tracks reconciliation outcomes across runs
type RunStats struct {
	TotalRuns       int64         `json:"total_runs"`
	FailedRuns      int64         `json:"failed_runs"`
	LastScanned     int           `json:"last_scanned"`
	LastRechecked   int           `json:"last_rechecked"`
	LastResolved    int           `json:"last_resolved"`
	LastRunDuration time.Duration `json:"last_run_duration"`
}

// workerMetrics contains observability instruments
type workerMetrics struct {
	runsTotal       metric.Int64Counter
	paymentsScanned metric.Int64Counter
	runDuration     metric.Float64Histogram
}

// zapCronLogger wraps zap.Logger to implement cron's logger interface
type zapCronLogger struct {
	logger *zap.Logger
}

func (l *zapCronLogger) Printf(format string, args ...interface{}) {
	l.logger.Sugar().Infof(format, args...)
}

// Worker periodically cross-checks provider payments against cached session
// snapshots. Webhooks are the primary signal; reconciliation exists to catch
// deliveries that were lost or rejected, so it only corrects status drift.
// The webhook path owns notifications and tracking numbers.
type Worker struct {
	cron      *cron.Cron
	payments  PaymentLister
	sessions  SessionStore
	analytics AnalyticsRecorder
	config    *Config
	logger    *zap.Logger
	tracer    trace.Tracer
	metrics   *workerMetrics

	mu      sync.RWMutex
	running bool
	lastRun time.Time
	nextRun time.Time
	stats   RunStats
}

// NewWorker creates a reconciliation worker
func NewWorker(
	payments PaymentLister,
	sessions SessionStore,
	analytics AnalyticsRecorder,
	config *Config,
	logger *zap.Logger,
) (*Worker, error) {
	if config == nil {
		config = DefaultConfig()
	}

	location, err := time.LoadLocation(config.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid timezone %s: %w", config.Timezone, err)
	}

	cronLogger := &zapCronLogger{logger: logger}
	c := cron.New(cron.WithLocation(location), cron.WithLogger(cron.VerbosePrintfLogger(cronLogger)))

	meter := otel.Meter("reconciliation-worker")
	workerMetrics, err := initWorkerMetrics(meter)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize metrics: %w", err)
	}

	worker := &Worker{
		cron:      c,
		payments:  payments,
		sessions:  sessions,
		analytics: analytics,
		config:    config,
		logger:    logger,
		tracer:    otel.Tracer("reconciliation-worker"),
		metrics:   workerMetrics,
	}

	logger.Info("Reconciliation worker created",
		zap.String("schedule", config.Schedule),
		zap.Duration("lookback", config.Lookback),
	)

	return worker, nil
}

// Start begins scheduled reconciliation runs
func (w *Worker) Start() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.running {
		return fmt.Errorf("reconciliation worker is already running")
	}

	_, err := w.cron.AddFunc(w.config.Schedule, func() {
		w.runReconciliation()
	})
	if err != nil {
		return fmt.Errorf("failed to add cron job: %w", err)
	}

	w.cron.Start()
	w.running = true

	entries := w.cron.Entries()
	if len(entries) > 0 {
		w.nextRun = entries[0].Next
	}

	w.logger.Info("Reconciliation worker started",
		zap.String("schedule", w.config.Schedule),
		zap.Time("next_run", w.nextRun),
	)

	return nil
}

// Stop halts scheduled runs, waiting for an in-flight run to finish
func (w *Worker) Stop() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.running {
		return fmt.Errorf("reconciliation worker is not running")
	}

	ctx := w.cron.Stop()
	select {
	case <-ctx.Done():
		w.logger.Info("Reconciliation worker stopped gracefully")
	case <-time.After(30 * time.Second):
		w.logger.Warn("Reconciliation worker stop timed out")
	}

	w.running = false
	return nil
}

// IsRunning reports whether the worker is scheduled
func (w *Worker) IsRunning() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.running
}

// GetStatus returns the worker state for health reporting
func (w *Worker) GetStatus() map[string]interface{} {
	w.mu.RLock()
	defer w.mu.RUnlock()

	return map[string]interface{}{
		"schedule":      w.config.Schedule,
		"last_run":      w.lastRun,
		"next_run":      w.nextRun,
		"total_runs":    w.stats.TotalRuns,
		"failed_runs":   w.stats.FailedRuns,
		"last_scanned":  w.stats.LastScanned,
		"last_resolved": w.stats.LastResolved,
		"last_duration": w.stats.LastRunDuration.String(),
	}
}

// TriggerManualRun runs a reconciliation outside the schedule
func (w *Worker) TriggerManualRun() error {
	if !w.IsRunning() {
		return fmt.Errorf("reconciliation worker is not running")
	}

	go w.runReconciliation()
	return nil
}

// runReconciliation executes a single reconciliation pass
func (w *Worker) runReconciliation() {
	startTime := time.Now()
	ctx, span := w.tracer.Start(context.Background(), "reconciliation.run", trace.WithAttributes(
		attribute.String("schedule", w.config.Schedule),
	))
	defer span.End()

	w.mu.Lock()
	w.stats.TotalRuns++
	w.lastRun = startTime
	w.mu.Unlock()

	since := startTime.Add(-w.config.Lookback)
	w.logger.Info("Starting reconciliation run", zap.Time("since", since))

	payments, err := w.payments.ListPayments(ctx, dodo.ListPaymentsParams{
		PageSize:     w.config.PageSize,
		CreatedAtGTE: since,
	})
	if err != nil {
		w.logger.Error("Reconciliation listing failed", zap.Error(err))
		w.recordRunFailure(ctx, startTime)
		return
	}

	report := w.reconcilePayments(ctx, payments)

	w.mu.Lock()
	w.stats.LastScanned = report.scanned
	w.stats.LastRechecked = report.rechecked
	w.stats.LastResolved = report.resolved
	w.stats.LastRunDuration = time.Since(startTime)
	w.updateNextRunLocked()
	w.mu.Unlock()

	w.pushAnalytics(ctx, report)

	metrics.RecordReconciliationRun("success", report.scanned)
	w.metrics.runsTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("status", "success")))
	w.metrics.paymentsScanned.Add(ctx, int64(report.scanned))
	w.metrics.runDuration.Record(ctx, time.Since(startTime).Seconds())

	w.logger.Info("Reconciliation run completed",
		zap.Int("scanned", report.scanned),
		zap.Int("rechecked", report.rechecked),
		zap.Int("resolved", report.resolved),
		zap.Duration("duration", time.Since(startTime)),
	)
}

// runReport summarizes a single reconciliation pass
type runReport struct {
	scanned   int
	rechecked int
	resolved  int
	byStatus  map[string]int
}

// reconcilePayments tallies listed payments and re-checks the non-terminal
// ones against the provider's current state.
func (w *Worker) reconcilePayments(ctx context.Context, payments []dodo.Payment) runReport {
	report := runReport{
		scanned:  len(payments),
		byStatus: make(map[string]int),
	}

	for _, payment := range payments {
		report.byStatus[payment.Status]++

		if !isPendingStatus(payment.Status) {
			continue
		}
		report.rechecked++

		fresh, err := w.payments.GetPayment(ctx, payment.PaymentID)
		if err != nil {
			w.logger.Warn("Failed to re-check payment",
				zap.String("payment_id", payment.PaymentID),
				zap.Error(err))
			continue
		}

		if isPendingStatus(fresh.Status) {
			continue
		}
		report.resolved++

		w.syncSnapshot(ctx, fresh)
	}

	return report
}

// syncSnapshot corrects a session snapshot whose webhook never arrived
func (w *Worker) syncSnapshot(ctx context.Context, payment *dodo.Payment) {
	if payment.SessionID == "" {
		w.logger.Debug("Resolved payment carries no session reference",
			zap.String("payment_id", payment.PaymentID))
		return
	}

	snapshot, err := w.sessions.GetSession(ctx, payment.SessionID)
	if err != nil {
		w.logger.Debug("No snapshot for resolved payment",
			zap.String("payment_id", payment.PaymentID),
			zap.String("session_id", payment.SessionID))
		return
	}

	status := mapPaymentStatus(payment.Status)
	if snapshot.Status == status {
		return
	}

	w.logger.Info("Correcting session status from reconciliation",
		zap.String("session_id", payment.SessionID),
		zap.String("payment_id", payment.PaymentID),
		zap.String("from", string(snapshot.Status)),
		zap.String("to", string(status)))

	snapshot.Status = status
	snapshot.PaymentID = payment.PaymentID
	if err := w.sessions.UpdateSnapshot(ctx, snapshot); err != nil {
		w.logger.Error("Failed to update snapshot from reconciliation",
			zap.String("session_id", payment.SessionID),
			zap.Error(err))
	}
}

func (w *Worker) pushAnalytics(ctx context.Context, report runReport) {
	byStatus := make(map[string]interface{}, len(report.byStatus))
	for status, count := range report.byStatus {
		byStatus[status] = count
	}

	event := entities.AnalyticsEvent{
		Name:       entities.AnalyticsReconciliation,
		OccurredAt: time.Now().UTC(),
		Properties: map[string]interface{}{
			"scanned":   report.scanned,
			"rechecked": report.rechecked,
			"resolved":  report.resolved,
			"by_status": byStatus,
		},
	}

	if err := w.analytics.RecordEvent(ctx, event); err != nil {
		w.logger.Warn("Failed to push reconciliation analytics", zap.Error(err))
	}
}

func (w *Worker) recordRunFailure(ctx context.Context, startTime time.Time) {
	w.mu.Lock()
	w.stats.FailedRuns++
	w.stats.LastRunDuration = time.Since(startTime)
	w.updateNextRunLocked()
	w.mu.Unlock()

	metrics.RecordReconciliationRun("failed", 0)
	w.metrics.runsTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("status", "failed")))
	w.metrics.runDuration.Record(ctx, time.Since(startTime).Seconds())
}

func (w *Worker) updateNextRunLocked() {
	entries := w.cron.Entries()
	if len(entries) > 0 {
		w.nextRun = entries[0].Next
	}
}

func isPendingStatus(status string) bool {
	switch status {
	case dodo.PaymentStatusPending, dodo.PaymentStatusProcessing, dodo.PaymentStatusRequiresAction:
		return true
	}
	return false
}

// mapPaymentStatus translates provider payment status onto the session
// lifecycle. Anything terminal that is not success counts as failed.
func mapPaymentStatus(status string) entities.PaymentStatus {
	switch status {
	case dodo.PaymentStatusSucceeded:
		return entities.PaymentStatusSucceeded
	case dodo.PaymentStatusRefunded:
		return entities.PaymentStatusRefunded
	default:
		return entities.PaymentStatusFailed
	}
}

// initWorkerMetrics initializes OpenTelemetry metrics
func initWorkerMetrics(meter metric.Meter) (*workerMetrics, error) {
	runsTotal, err := meter.Int64Counter("reconciliation_runs_total",
		metric.WithDescription("Total number of reconciliation runs"))
	if err != nil {
		return nil, err
	}

	paymentsScanned, err := meter.Int64Counter("reconciliation_payments_scanned_total",
		metric.WithDescription("Total number of payments scanned by reconciliation"))
	if err != nil {
		return nil, err
	}

	runDuration, err := meter.Float64Histogram("reconciliation_run_duration_seconds",
		metric.WithDescription("Duration of reconciliation runs in seconds"))
	if err != nil {
		return nil, err
	}

	return &workerMetrics{
		runsTotal:       runsTotal,
		paymentsScanned: paymentsScanned,
		runDuration:     runDuration,
	}, nil
}
