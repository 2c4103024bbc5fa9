package checkout

import (
	"context"
	"encoding/base32"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/storefront-service/payment_service/internal/adapters/dodo"
	"github.com/storefront-service/payment_service/internal/adapters/razorpay"
	"github.com/storefront-service/payment_service/internal/domain/entities"
	"github.com/storefront-service/payment_service/pkg/errors"
	"github.com/storefront-service/payment_service/pkg/metrics"
)

// Service starts checkouts with the payment providers and keeps a
// TTL-bounded snapshot of each session for webhook correlation.
type Service struct {
	processor CardProcessor
	gateway   PopupGateway
	store     SnapshotStore
	analytics AnalyticsRecorder
	config    Config
	logger    *zap.Logger
	now       func() time.Time
}

// Config carries the checkout policy knobs
type Config struct {
	SupportedCurrencies []string
	SessionTTL          time.Duration
}

// CardProcessor interface for hosted checkout sessions
type CardProcessor interface {
	CreateCheckoutSession(ctx context.Context, req dodo.CheckoutSessionRequest) (*dodo.CheckoutSessionResponse, error)
}

// PopupGateway interface for popup-based gateway orders
type PopupGateway interface {
	CreateOrder(ctx context.Context, amountMinor int64, currency, receipt string, notes map[string]interface{}) (*razorpay.Order, error)
	VerifyCheckoutSignature(orderID, paymentID, signature string) bool
	KeyID() string
}

// SnapshotStore interface for session snapshot persistence
type SnapshotStore interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
}

// AnalyticsRecorder interface for best-effort order event reporting
type AnalyticsRecorder interface {
	RecordEvent(ctx context.Context, event entities.AnalyticsEvent) error
}

// NewService creates a new checkout service
func NewService(
	processor CardProcessor,
	gateway PopupGateway,
	store SnapshotStore,
	analytics AnalyticsRecorder,
	config Config,
	logger *zap.Logger,
) *Service {
	if config.SessionTTL <= 0 {
		config.SessionTTL = 24 * time.Hour
	}
	return &Service{
		processor: processor,
		gateway:   gateway,
		store:     store,
		analytics: analytics,
		config:    config,
		logger:    logger,
		now:       time.Now,
	}
}

// CreateSession starts a hosted checkout with the card processor and returns
// the URL the storefront redirects the customer to.
func (s *Service) CreateSession(ctx context.Context, req *entities.CreateCheckoutSessionRequest) (*entities.CheckoutSession, error) {
	currency := strings.ToUpper(req.Currency)
	if err := s.checkCurrency(currency); err != nil {
		return nil, err
	}

	total := req.Total()
	if !total.IsPositive() {
		return nil, errors.ValidationError("cart total must be positive")
	}

	orderNumber := s.generateOrderNumber()
	s.logger.Info("Creating checkout session",
		zap.String("order_number", orderNumber),
		zap.String("currency", currency),
		zap.String("amount", total.String()),
		zap.Int("items", len(req.Items)))

	cart := make([]dodo.ProductCartItem, 0, len(req.Items))
	for _, item := range req.Items {
		unitMinor := minorUnits(item.UnitPrice)
		cart = append(cart, dodo.ProductCartItem{
			ProductID: productID(item),
			Quantity:  item.Quantity,
			Amount:    &unitMinor,
		})
	}

	session, err := s.processor.CreateCheckoutSession(ctx, dodo.CheckoutSessionRequest{
		ProductCart: cart,
		Customer: dodo.CustomerRequest{
			Email: req.CustomerEmail,
			Name:  req.CustomerName,
		},
		ReturnURL: req.ReturnURL,
		Metadata: map[string]string{
			"order_number": orderNumber,
		},
	})
	if err != nil {
		s.logger.Error("Card processor rejected checkout session",
			zap.String("order_number", orderNumber),
			zap.Error(err))
		metrics.RecordCheckoutSession("dodo", "rejected", currency, 0)
		return nil, fmt.Errorf("failed to create checkout session: %w", err)
	}

	now := s.now()
	snapshot := &entities.SessionSnapshot{
		SessionID:     session.SessionID,
		OrderNumber:   orderNumber,
		Provider:      entities.ProviderDodo,
		AmountMinor:   minorUnits(total),
		Currency:      currency,
		CustomerEmail: req.CustomerEmail,
		CustomerName:  req.CustomerName,
		Status:        entities.PaymentStatusPending,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.saveSnapshot(ctx, snapshot); err != nil {
		// The checkout exists upstream; losing the snapshot only degrades
		// webhook correlation, so the session is still returned.
		s.logger.Error("Failed to store session snapshot",
			zap.String("session_id", session.SessionID),
			zap.Error(err))
	}

	s.recordAnalytics(ctx, entities.AnalyticsCheckoutStarted, map[string]interface{}{
		"order_number": orderNumber,
		"provider":     string(entities.ProviderDodo),
		"amount_minor": snapshot.AmountMinor,
		"currency":     currency,
	})
	metrics.RecordCheckoutSession("dodo", "created", currency, float64(snapshot.AmountMinor))

	s.logger.Info("Checkout session created",
		zap.String("session_id", session.SessionID),
		zap.String("order_number", orderNumber))

	return &entities.CheckoutSession{
		SessionID:   session.SessionID,
		OrderNumber: orderNumber,
		CheckoutURL: session.CheckoutURL,
		Amount:      total,
		Currency:    currency,
		Status:      entities.PaymentStatusPending,
		CreatedAt:   now,
	}, nil
}

// GetSession returns the snapshot for a checkout session, if it is still
// within its retention window.
func (s *Service) GetSession(ctx context.Context, sessionID string) (*entities.SessionSnapshot, error) {
	raw, err := s.store.Get(ctx, SessionKey(sessionID))
	if err != nil {
		return nil, fmt.Errorf("failed to load session snapshot: %w", err)
	}
	if raw == "" {
		return nil, errors.New(errors.ErrCodeOrderNotFound, "checkout session not found")
	}

	var snapshot entities.SessionSnapshot
	if err := json.Unmarshal([]byte(raw), &snapshot); err != nil {
		return nil, fmt.Errorf("failed to decode session snapshot: %w", err)
	}
	return &snapshot, nil
}

// CreatePopupOrder registers an order with the popup gateway and returns the
// identifiers the storefront needs to open the payment popup.
func (s *Service) CreatePopupOrder(ctx context.Context, req *entities.CreatePopupOrderRequest) (*entities.PopupOrder, error) {
	currency := strings.ToUpper(req.Currency)
	if currency == "" {
		currency = "INR"
	}
	if err := s.checkCurrency(currency); err != nil {
		return nil, err
	}
	if !req.Amount.IsPositive() {
		return nil, errors.ValidationError("amount must be positive")
	}

	orderNumber := s.generateOrderNumber()
	amountMinor := minorUnits(req.Amount)

	s.logger.Info("Creating popup gateway order",
		zap.String("order_number", orderNumber),
		zap.String("currency", currency),
		zap.Int64("amount_minor", amountMinor))

	notes := map[string]interface{}{
		"order_number":   orderNumber,
		"customer_email": req.CustomerEmail,
	}
	for k, v := range req.Notes {
		notes[k] = v
	}

	order, err := s.gateway.CreateOrder(ctx, amountMinor, currency, orderNumber, notes)
	if err != nil {
		s.logger.Error("Popup gateway rejected order",
			zap.String("order_number", orderNumber),
			zap.Error(err))
		metrics.RecordCheckoutSession("razorpay", "rejected", currency, 0)
		return nil, fmt.Errorf("failed to create gateway order: %w", err)
	}

	now := s.now()
	snapshot := &entities.SessionSnapshot{
		SessionID:     order.ID,
		OrderNumber:   orderNumber,
		Provider:      entities.ProviderRazorpay,
		AmountMinor:   amountMinor,
		Currency:      currency,
		CustomerEmail: req.CustomerEmail,
		CustomerName:  req.CustomerName,
		Status:        entities.PaymentStatusPending,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.saveSnapshot(ctx, snapshot); err != nil {
		s.logger.Error("Failed to store order snapshot",
			zap.String("order_id", order.ID),
			zap.Error(err))
	}

	s.recordAnalytics(ctx, entities.AnalyticsCheckoutStarted, map[string]interface{}{
		"order_number": orderNumber,
		"provider":     string(entities.ProviderRazorpay),
		"amount_minor": amountMinor,
		"currency":     currency,
	})
	metrics.RecordCheckoutSession("razorpay", "created", currency, float64(amountMinor))

	s.logger.Info("Popup gateway order created",
		zap.String("order_id", order.ID),
		zap.String("order_number", orderNumber))

	return &entities.PopupOrder{
		OrderID:     order.ID,
		OrderNumber: orderNumber,
		KeyID:       s.gateway.KeyID(),
		AmountMinor: amountMinor,
		Currency:    currency,
		CreatedAt:   now,
	}, nil
}

// VerifyPopupPayment checks the gateway's checkout callback signature. A
// valid signature moves the session to processing; the final state still
// comes from the provider webhook.
func (s *Service) VerifyPopupPayment(ctx context.Context, req *entities.PopupVerificationRequest) (*entities.PopupVerificationResult, error) {
	if !s.gateway.VerifyCheckoutSignature(req.OrderID, req.PaymentID, req.Signature) {
		s.logger.Warn("Popup payment signature rejected",
			zap.String("order_id", req.OrderID),
			zap.String("payment_id", req.PaymentID))
		metrics.RecordCheckoutSession("razorpay", "verify_failed", "", 0)
		return nil, errors.SignatureInvalid("payment signature verification failed")
	}

	snapshot, err := s.GetSession(ctx, req.OrderID)
	if err == nil {
		snapshot.PaymentID = req.PaymentID
		snapshot.Status = entities.PaymentStatusProcessing
		snapshot.UpdatedAt = s.now()
		if err := s.saveSnapshot(ctx, snapshot); err != nil {
			s.logger.Error("Failed to update order snapshot after verification",
				zap.String("order_id", req.OrderID),
				zap.Error(err))
		}
	} else {
		// Verification stands on the signature alone; a missing snapshot
		// just means the session aged out of the retention window.
		s.logger.Warn("No snapshot for verified popup payment",
			zap.String("order_id", req.OrderID),
			zap.Error(err))
	}

	metrics.RecordCheckoutSession("razorpay", "verified", "", 0)
	s.logger.Info("Popup payment verified",
		zap.String("order_id", req.OrderID),
		zap.String("payment_id", req.PaymentID))

	return &entities.PopupVerificationResult{
		Verified:  true,
		OrderID:   req.OrderID,
		PaymentID: req.PaymentID,
	}, nil
}

// UpdateSnapshot persists a modified session snapshot, refreshing its TTL.
func (s *Service) UpdateSnapshot(ctx context.Context, snapshot *entities.SessionSnapshot) error {
	snapshot.UpdatedAt = s.now()
	return s.saveSnapshot(ctx, snapshot)
}

// SessionKey is the cache key for a checkout session snapshot
func SessionKey(sessionID string) string {
	return fmt.Sprintf("checkout:session:%s", sessionID)
}

func (s *Service) saveSnapshot(ctx context.Context, snapshot *entities.SessionSnapshot) error {
	data, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("failed to encode session snapshot: %w", err)
	}
	return s.store.Set(ctx, SessionKey(snapshot.SessionID), data, s.config.SessionTTL)
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

func (s *Service) checkCurrency(currency string) error {
	for _, c := range s.config.SupportedCurrencies {
		if strings.EqualFold(c, currency) {
			return nil
		}
	}
	return errors.NewWithDetails(errors.ErrCodeValidation,
		fmt.Sprintf("currency %s is not supported", currency),
		map[string]interface{}{"supported": s.config.SupportedCurrencies})
}

// generateOrderNumber builds a human-readable order reference,
// e.g. ORD-20240115-K7KQJRAE.
func (s *Service) generateOrderNumber() string {
	id := uuid.New()
	ref := base32.StdEncoding.WithPadding(base32.NoPadding).EncodeToString(id[:])
	return fmt.Sprintf("ORD-%s-%s", s.now().UTC().Format("20060102"), ref[:8])
}

// minorUnits converts a decimal major-unit amount to the currency's minor
// unit, rounding to the nearest cent.
func minorUnits(amount decimal.Decimal) int64 {
	return amount.Mul(decimal.NewFromInt(100)).Round(0).IntPart()
}

func productID(item entities.CartItem) string {
	if item.SKU != "" {
		return item.SKU
	}
	return item.Name
}
