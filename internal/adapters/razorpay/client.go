package razorpay

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	rzpsdk "github.com/razorpay/razorpay-go"
	"go.uber.org/zap"

	"github.com/storefront-service/payment_service/pkg/metrics"
)

const defaultTimeout = 30 * time.Second

// Config represents Razorpay API configuration
type Config struct {
	KeyID     string
	KeySecret string
	Timeout   time.Duration
}

// Client wraps the Razorpay SDK for popup checkout orders
type Client struct {
	config Config
	sdk    *rzpsdk.Client
	logger *zap.Logger
}

// NewClient creates a new Razorpay client
func NewClient(config Config, logger *zap.Logger) *Client {
	if config.Timeout == 0 {
		config.Timeout = defaultTimeout
	}

	return &Client{
		config: config,
		sdk:    rzpsdk.NewClient(config.KeyID, config.KeySecret),
		logger: logger,
	}
}

// KeyID returns the public key the storefront passes to the checkout popup
func (c *Client) KeyID() string {
	return c.config.KeyID
}

// CreateOrder creates a Razorpay order for the popup checkout flow.
// amountMinor is in the currency's minor unit (paise for INR).
func (c *Client) CreateOrder(ctx context.Context, amountMinor int64, currency, receipt string, notes map[string]interface{}) (*Order, error) {
	c.logger.Info("Creating Razorpay order",
		zap.Int64("amount_minor", amountMinor),
		zap.String("currency", currency),
		zap.String("receipt", receipt))

	data := map[string]interface{}{
		"amount":   amountMinor,
		"currency": currency,
		"receipt":  receipt,
	}
	if len(notes) > 0 {
		data["notes"] = notes
	}

	raw, err := c.call(ctx, "orders.create", func() (map[string]interface{}, error) {
		return c.sdk.Order.Create(data, nil)
	})
	if err != nil {
		c.logger.Error("Failed to create Razorpay order",
			zap.String("receipt", receipt),
			zap.Error(err))
		return nil, fmt.Errorf("create order failed: %w", err)
	}

	order := orderFromMap(raw)

	c.logger.Info("Created Razorpay order successfully",
		zap.String("order_id", order.ID),
		zap.String("status", order.Status))

	return order, nil
}

// FetchPayment retrieves payment details by ID
func (c *Client) FetchPayment(ctx context.Context, paymentID string) (*Payment, error) {
	c.logger.Info("Fetching Razorpay payment", zap.String("payment_id", paymentID))

	raw, err := c.call(ctx, "payments.fetch", func() (map[string]interface{}, error) {
		return c.sdk.Payment.Fetch(paymentID, nil, nil)
	})
	if err != nil {
		c.logger.Error("Failed to fetch Razorpay payment",
			zap.String("payment_id", paymentID),
			zap.Error(err))
		return nil, fmt.Errorf("fetch payment failed: %w", err)
	}

	payment := paymentFromMap(raw)

	c.logger.Info("Fetched Razorpay payment successfully",
		zap.String("payment_id", payment.ID),
		zap.String("status", payment.Status))

	return payment, nil
}

// VerifyCheckoutSignature reports whether a checkout callback signature is
// authentic. The expected value is a hex HMAC-SHA256 over "orderID|paymentID"
// keyed with the API secret. Returns false for any malformed input.
func (c *Client) VerifyCheckoutSignature(orderID, paymentID, signature string) bool {
	if orderID == "" || paymentID == "" || signature == "" {
		c.logger.Warn("Checkout signature verification with missing fields",
			zap.Bool("has_order_id", orderID != ""),
			zap.Bool("has_payment_id", paymentID != ""))
		return false
	}

	mac := hmac.New(sha256.New, []byte(c.config.KeySecret))
	mac.Write([]byte(orderID + "|" + paymentID))
	expected := hex.EncodeToString(mac.Sum(nil))

	return hmac.Equal([]byte(expected), []byte(signature))
}

type sdkResult struct {
	data map[string]interface{}
	err  error
}

// call runs an SDK operation under a deadline. The SDK is not context aware,
// so on timeout the goroutine finishes in the background and its result is
// dropped.
func (c *Client) call(ctx context.Context, op string, fn func() (map[string]interface{}, error)) (map[string]interface{}, error) {
	ctx, cancel := context.WithTimeout(ctx, c.config.Timeout)
	defer cancel()

	resultCh := make(chan sdkResult, 1)
	start := time.Now()
	go func() {
		data, err := fn()
		resultCh <- sdkResult{data: data, err: err}
	}()

	select {
	case res := <-resultCh:
		status := "ok"
		if res.err != nil {
			status = "error"
		}
		metrics.RecordExternalAPICall("razorpay", op, status, time.Since(start).Seconds())
		return res.data, res.err
	case <-ctx.Done():
		metrics.RecordExternalAPICall("razorpay", op, "timeout", time.Since(start).Seconds())
		return nil, ctx.Err()
	}
}
