package razorpay

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func signCheckout(secret, orderID, paymentID string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(orderID + "|" + paymentID))
	return hex.EncodeToString(mac.Sum(nil))
}

func TestNewClientDefaults(t *testing.T) {
	client := NewClient(Config{KeyID: "rzp_test_abc", KeySecret: "secret"}, zaptest.NewLogger(t))

	require.NotNil(t, client)
	assert.Equal(t, defaultTimeout, client.config.Timeout)
	assert.Equal(t, "rzp_test_abc", client.KeyID())
}

func TestVerifyCheckoutSignature(t *testing.T) {
	const secret = "test_key_secret"
	client := NewClient(Config{KeyID: "rzp_test_abc", KeySecret: secret}, zaptest.NewLogger(t))

	orderID := "order_9A33XWu170gUtm"
	paymentID := "pay_29QQoUBi66xm2f"
	valid := signCheckout(secret, orderID, paymentID)

	tests := []struct {
		name      string
		orderID   string
		paymentID string
		signature string
		want      bool
	}{
		{
			name:      "valid signature",
			orderID:   orderID,
			paymentID: paymentID,
			signature: valid,
			want:      true,
		},
		{
			name:      "tampered signature",
			orderID:   orderID,
			paymentID: paymentID,
			signature: valid[:len(valid)-1] + "0",
			want:      false,
		},
		{
			name:      "signature from different secret",
			orderID:   orderID,
			paymentID: paymentID,
			signature: signCheckout("other_secret", orderID, paymentID),
			want:      false,
		},
		{
			name:      "swapped order and payment ids",
			orderID:   paymentID,
			paymentID: orderID,
			signature: valid,
			want:      false,
		},
		{
			name:      "missing order id",
			orderID:   "",
			paymentID: paymentID,
			signature: valid,
			want:      false,
		},
		{
			name:      "missing signature",
			orderID:   orderID,
			paymentID: paymentID,
			signature: "",
			want:      false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, client.VerifyCheckoutSignature(tt.orderID, tt.paymentID, tt.signature))
		})
	}
}

func TestOrderFromMap(t *testing.T) {
	// Amounts arrive as float64 after JSON decoding
	raw := map[string]interface{}{
		"id":       "order_9A33XWu170gUtm",
		"amount":   float64(259900),
		"currency": "INR",
		"receipt":  "ORD-20240115-a1b2c3d4",
		"status":   "created",
	}

	order := orderFromMap(raw)

	assert.Equal(t, "order_9A33XWu170gUtm", order.ID)
	assert.Equal(t, int64(259900), order.Amount)
	assert.Equal(t, "INR", order.Currency)
	assert.Equal(t, "ORD-20240115-a1b2c3d4", order.Receipt)
	assert.Equal(t, OrderStatusCreated, order.Status)
}

func TestPaymentFromMap(t *testing.T) {
	raw := map[string]interface{}{
		"id":       "pay_29QQoUBi66xm2f",
		"order_id": "order_9A33XWu170gUtm",
		"amount":   float64(259900),
		"currency": "INR",
		"status":   "captured",
		"method":   "card",
		"email":    "buyer@example.com",
	}

	payment := paymentFromMap(raw)

	assert.Equal(t, "pay_29QQoUBi66xm2f", payment.ID)
	assert.Equal(t, "order_9A33XWu170gUtm", payment.OrderID)
	assert.Equal(t, int64(259900), payment.Amount)
	assert.Equal(t, PaymentStatusCaptured, payment.Status)
	assert.Equal(t, "card", payment.Method)
}

func TestPaymentFromMapMissingFields(t *testing.T) {
	payment := paymentFromMap(map[string]interface{}{})

	assert.Empty(t, payment.ID)
	assert.Zero(t, payment.Amount)
	assert.Empty(t, payment.Status)
}

func TestCallHonorsDeadline(t *testing.T) {
	client := NewClient(Config{
		KeyID:     "rzp_test_abc",
		KeySecret: "secret",
		Timeout:   50 * time.Millisecond,
	}, zaptest.NewLogger(t))

	_, err := client.call(context.Background(), "orders.create", func() (map[string]interface{}, error) {
		time.Sleep(500 * time.Millisecond)
		return map[string]interface{}{}, nil
	})

	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
