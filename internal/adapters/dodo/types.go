package dodo

import (
	"time"
)

// Payment lifecycle states reported by the Dodo Payments API.
const (
	PaymentStatusPending        = "pending"
	PaymentStatusSucceeded      = "succeeded"
	PaymentStatusProcessing     = "processing"
	PaymentStatusFailed         = "failed"
	PaymentStatusCancelled      = "cancelled"
	PaymentStatusRefunded       = "refunded"
	PaymentStatusRequiresAction = "requires_customer_action"
)

// CheckoutSessionRequest represents a hosted checkout session creation request
type CheckoutSessionRequest struct {
	ProductCart []ProductCartItem `json:"product_cart"`
	Customer    CustomerRequest   `json:"customer"`
	ReturnURL   string            `json:"return_url,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

// ProductCartItem represents one line of the checkout cart. Amount is in the
// currency's minor unit and overrides the catalog price when set.
type ProductCartItem struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
	Amount    *int64 `json:"amount,omitempty"`
}

// CustomerRequest identifies the paying customer
type CustomerRequest struct {
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}

// CheckoutSessionResponse represents a hosted checkout session
type CheckoutSessionResponse struct {
	SessionID   string `json:"session_id"`
	CheckoutURL string `json:"checkout_url"`
}

// Customer represents customer details on a payment
type Customer struct {
	CustomerID string `json:"customer_id,omitempty"`
	Email      string `json:"email"`
	Name       string `json:"name,omitempty"`
}

// Payment represents a payment as reported by the Dodo Payments API
type Payment struct {
	PaymentID     string            `json:"payment_id"`
	SessionID     string            `json:"session_id,omitempty"`
	Status        string            `json:"status"`
	TotalAmount   int64             `json:"total_amount"` // minor units
	Currency      string            `json:"currency"`
	Customer      Customer          `json:"customer"`
	PaymentMethod string            `json:"payment_method,omitempty"`
	Metadata      map[string]string `json:"metadata,omitempty"`
	CreatedAt     time.Time         `json:"created_at"`
}

// ListPaymentsParams filters a payment listing request
type ListPaymentsParams struct {
	PageSize     int
	PageNumber   int
	Status       string
	CreatedAtGTE time.Time
}

// ListPaymentsResponse represents a paginated payment listing
type ListPaymentsResponse struct {
	Items []Payment `json:"items"`
}

// ErrorResponse represents an error response from the Dodo Payments API
type ErrorResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

func (e *ErrorResponse) Error() string {
	return e.Message
}
