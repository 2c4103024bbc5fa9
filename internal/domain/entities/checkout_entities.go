package entities

import (
	"time"

	"github.com/shopspring/decimal"
)

// CartItem is a single storefront line item
type CartItem struct {
	Name      string          `json:"name" binding:"required"`
	SKU       string          `json:"sku"`
	Quantity  int             `json:"quantity" binding:"required,min=1"`
	UnitPrice decimal.Decimal `json:"unit_price" binding:"required,dgt0"`
}

// Subtotal returns quantity * unit price
func (i CartItem) Subtotal() decimal.Decimal {
	return i.UnitPrice.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// CreateCheckoutSessionRequest starts a hosted checkout with the card processor
type CreateCheckoutSessionRequest struct {
	Items         []CartItem `json:"items" binding:"required,min=1,dive"`
	Currency      string     `json:"currency" binding:"required,len=3"`
	CustomerEmail string     `json:"customer_email" binding:"required,email"`
	CustomerName  string     `json:"customer_name" binding:"required"`
	ReturnURL     string     `json:"return_url" binding:"required,url"`
}

// Total sums all line items
func (r CreateCheckoutSessionRequest) Total() decimal.Decimal {
	total := decimal.Zero
	for _, item := range r.Items {
		total = total.Add(item.Subtotal())
	}
	return total
}

// CheckoutSession is the hosted checkout handed back to the storefront
type CheckoutSession struct {
	SessionID   string          `json:"session_id"`
	OrderNumber string          `json:"order_number"`
	CheckoutURL string          `json:"checkout_url"`
	Amount      decimal.Decimal `json:"amount"`
	Currency    string          `json:"currency"`
	Status      PaymentStatus   `json:"status"`
	ExpiresAt   *time.Time      `json:"expires_at,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
}

// SessionSnapshot is the transient, TTL-bounded view of a checkout kept in
// cache for webhook correlation and reconciliation. It is not an order
// record; the storefront backend owns those.
type SessionSnapshot struct {
	SessionID      string          `json:"session_id"`
	OrderNumber    string          `json:"order_number"`
	Provider       PaymentProvider `json:"provider"`
	AmountMinor    int64           `json:"amount_minor"`
	Currency       string          `json:"currency"`
	CustomerEmail  string          `json:"customer_email"`
	CustomerName   string          `json:"customer_name"`
	Status         PaymentStatus   `json:"status"`
	PaymentID      string          `json:"payment_id,omitempty"`
	TrackingNumber string          `json:"tracking_number,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// CreatePopupOrderRequest starts a popup-gateway order
type CreatePopupOrderRequest struct {
	Amount        decimal.Decimal   `json:"amount" binding:"required,dgt0"`
	Currency      string            `json:"currency"`
	CustomerEmail string            `json:"customer_email" binding:"required,email"`
	CustomerName  string            `json:"customer_name"`
	Notes         map[string]string `json:"notes"`
}

// PopupOrder carries what the storefront needs to open the gateway popup
type PopupOrder struct {
	OrderID     string    `json:"order_id"`
	OrderNumber string    `json:"order_number"`
	KeyID       string    `json:"key_id"`
	AmountMinor int64     `json:"amount_minor"`
	Currency    string    `json:"currency"`
	CreatedAt   time.Time `json:"created_at"`
}

// PopupVerificationRequest is the gateway's checkout callback payload
type PopupVerificationRequest struct {
	OrderID   string `json:"razorpay_order_id" binding:"required"`
	PaymentID string `json:"razorpay_payment_id" binding:"required"`
	Signature string `json:"razorpay_signature" binding:"required"`
}

// PopupVerificationResult reports the callback signature check
type PopupVerificationResult struct {
	Verified  bool   `json:"verified"`
	OrderID   string `json:"order_id"`
	PaymentID string `json:"payment_id"`
}
