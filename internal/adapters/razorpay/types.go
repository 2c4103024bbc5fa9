package razorpay

// Order lifecycle states reported by the Razorpay API.
const (
	OrderStatusCreated   = "created"
	OrderStatusAttempted = "attempted"
	OrderStatusPaid      = "paid"
)

// Payment lifecycle states reported by the Razorpay API.
const (
	PaymentStatusAuthorized = "authorized"
	PaymentStatusCaptured   = "captured"
	PaymentStatusRefunded   = "refunded"
	PaymentStatusFailed     = "failed"
)

// Order represents a Razorpay order. Amount is in the currency's minor unit
// (paise for INR).
type Order struct {
	ID       string
	Amount   int64
	Currency string
	Receipt  string
	Status   string
}

// Payment represents a Razorpay payment
type Payment struct {
	ID       string
	OrderID  string
	Amount   int64
	Currency string
	Status   string
	Method   string
	Email    string
}

// The SDK returns raw JSON objects. Numbers come back as float64.

func orderFromMap(m map[string]interface{}) *Order {
	return &Order{
		ID:       stringValue(m, "id"),
		Amount:   intValue(m, "amount"),
		Currency: stringValue(m, "currency"),
		Receipt:  stringValue(m, "receipt"),
		Status:   stringValue(m, "status"),
	}
}

func paymentFromMap(m map[string]interface{}) *Payment {
	return &Payment{
		ID:       stringValue(m, "id"),
		OrderID:  stringValue(m, "order_id"),
		Amount:   intValue(m, "amount"),
		Currency: stringValue(m, "currency"),
		Status:   stringValue(m, "status"),
		Method:   stringValue(m, "method"),
		Email:    stringValue(m, "email"),
	}
}

func stringValue(m map[string]interface{}, key string) string {
	if v, ok := m[key].(string); ok {
		return v
	}
	return ""
}

func intValue(m map[string]interface{}, key string) int64 {
	switch v := m[key].(type) {
	case float64:
		return int64(v)
	case int64:
		return v
	case int:
		return int64(v)
	}
	return 0
}
