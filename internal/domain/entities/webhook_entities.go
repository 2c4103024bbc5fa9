package entities

// Event types pushed by the card processor
const (
	EventPaymentSucceeded  = "payment.succeeded"
	EventPaymentProcessing = "payment.processing"
	EventPaymentFailed     = "payment.failed"
	EventRefundSucceeded   = "refund.succeeded"
	EventRefundFailed      = "refund.failed"
	EventDisputeOpened     = "dispute.opened"
)

// WebhookEvent is a verified provider notification. ID comes from the
// webhook-id header, not the body; RawBody is the exact bytes that were
// signed.
type WebhookEvent struct {
	ID      string                 `json:"-"`
	Type    string                 `json:"type"`
	Data    map[string]interface{} `json:"data"`
	RawBody []byte                 `json:"-"`
}

// PaymentEventData is the typed view of a payment event's Data map
type PaymentEventData struct {
	PaymentID     string
	SessionID     string
	OrderNumber   string
	AmountMinor   int64
	Currency      string
	CustomerEmail string
	CustomerName  string
	FailureReason string
}

// StringField reads a string out of the event's data map
func (e WebhookEvent) StringField(key string) string {
	if v, ok := e.Data[key].(string); ok {
		return v
	}
	return ""
}

// IntField reads an integer out of the event's data map. Provider JSON
// numbers decode as float64.
func (e WebhookEvent) IntField(key string) int64 {
	switch v := e.Data[key].(type) {
	case float64:
		return int64(v)
	case int64:
		return v
	case int:
		return int64(v)
	}
	return 0
}

// PaymentData extracts the typed payment fields from the event
func (e WebhookEvent) PaymentData() PaymentEventData {
	return PaymentEventData{
		PaymentID:     e.StringField("payment_id"),
		SessionID:     e.StringField("session_id"),
		OrderNumber:   e.StringField("order_number"),
		AmountMinor:   e.IntField("amount"),
		Currency:      e.StringField("currency"),
		CustomerEmail: e.StringField("customer_email"),
		CustomerName:  e.StringField("customer_name"),
		FailureReason: e.StringField("failure_reason"),
	}
}

// PaymentNotification is what the mailer needs to tell a customer about
// their payment
type PaymentNotification struct {
	OrderNumber    string
	CustomerEmail  string
	CustomerName   string
	AmountMinor    int64
	Currency       string
	TrackingNumber string
	FailureReason  string
}
