package entities

// PaymentProvider identifies an upstream payment integration
type PaymentProvider string

const (
	// ProviderDodo is the card-processing API with hosted checkout sessions
	ProviderDodo PaymentProvider = "dodo"

	// ProviderRazorpay is the popup-based regional gateway
	ProviderRazorpay PaymentProvider = "razorpay"
)

// PaymentStatus tracks a payment through its lifecycle
type PaymentStatus string

const (
	PaymentStatusPending    PaymentStatus = "pending"
	PaymentStatusProcessing PaymentStatus = "processing"
	PaymentStatusSucceeded  PaymentStatus = "succeeded"
	PaymentStatusFailed     PaymentStatus = "failed"
	PaymentStatusRefunded   PaymentStatus = "refunded"
)

// ErrorResponse is the wire shape for all error replies
type ErrorResponse struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}
