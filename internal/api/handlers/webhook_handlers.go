package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"

	"github.com/storefront-service/payment_service/internal/domain/entities"
	"github.com/storefront-service/payment_service/internal/domain/services/payments"
	"github.com/storefront-service/payment_service/pkg/idempotency"
	"github.com/storefront-service/payment_service/pkg/logger"
	"github.com/storefront-service/payment_service/pkg/metrics"
	"github.com/storefront-service/payment_service/pkg/tracing"
	"github.com/storefront-service/payment_service/pkg/webhook"
)

// PaymentEventProcessor handles verified webhook events
type PaymentEventProcessor interface {
	ProcessEvent(ctx context.Context, provider entities.PaymentProvider, event *entities.WebhookEvent) (*payments.ProcessResult, error)
}

// WebhookHandler receives card-processor webhooks. Signature and freshness
// checks run against the raw body bytes before anything is parsed.
type WebhookHandler struct {
	verifier         *webhook.Verifier
	processor        PaymentEventProcessor
	toleranceMinutes int
	maxBodySize      int64
	logger           *logger.Logger
}

// NewWebhookHandler creates a webhook handler. maxBodySize of 0 uses the
// default cap.
func NewWebhookHandler(verifier *webhook.Verifier, processor PaymentEventProcessor, toleranceMinutes int, maxBodySize int64, logger *logger.Logger) *WebhookHandler {
	return &WebhookHandler{
		verifier:         verifier,
		processor:        processor,
		toleranceMinutes: toleranceMinutes,
		maxBodySize:      maxBodySize,
		logger:           logger,
	}
}

// HandlePaymentEvent processes card-processor payment webhooks
// @Summary Receive card processor webhook
// @Description Verifies the webhook signature and timestamp, then processes the payment event. Replayed deliveries are acknowledged without being re-processed.
// @Tags webhooks
// @Accept json
// @Produce json
// @Success 200 {object} map[string]interface{} "Event acknowledged"
// @Failure 400 {object} entities.ErrorResponse "Missing headers or unreadable payload"
// @Failure 401 {object} entities.ErrorResponse "Signature or timestamp verification failed"
// @Router /webhooks/payments [post]
func (h *WebhookHandler) HandlePaymentEvent(c *gin.Context) {
	provider := string(entities.ProviderDodo)
	log := h.logger.WithContext(c.Request.Context())

	// The signature covers the exact bytes on the wire, so the body must be
	// read before any binding touches it.
	body, err := idempotency.ReadBody(c.Request.Body, h.maxBodySize)
	if err != nil {
		log.Warnw("Failed to read webhook body",
			"provider", provider,
			"error", err,
			"request_id", getRequestID(c))
		respondBadRequest(c, "Unable to read request body", nil)
		return
	}

	webhookID := c.GetHeader("webhook-id")
	timestamp := c.GetHeader("webhook-timestamp")
	signature := c.GetHeader("webhook-signature")

	if missing := missingHeaders(webhookID, timestamp, signature); len(missing) > 0 {
		metrics.RecordWebhookVerification(provider, "missing_headers")
		respondBadRequest(c, "Missing webhook signature headers", map[string]interface{}{
			"missing": missing,
		})
		return
	}

	if !h.verifier.VerifyTimestamp(timestamp, h.toleranceMinutes) {
		metrics.RecordWebhookVerification(provider, "stale_timestamp")
		log.Warnw("Webhook timestamp outside tolerance",
			"provider", provider,
			"webhook_id", webhookID,
			"timestamp", timestamp)
		respondUnauthorized(c, "Webhook timestamp outside tolerance")
		return
	}

	if !h.verifier.VerifySignature(webhookID, timestamp, body, signature) {
		metrics.RecordWebhookVerification(provider, "invalid_signature")
		log.Warnw("Webhook signature verification failed",
			"provider", provider,
			"webhook_id", webhookID)
		respondUnauthorized(c, "Webhook signature verification failed")
		return
	}

	metrics.RecordWebhookVerification(provider, "verified")

	var event entities.WebhookEvent
	if err := json.Unmarshal(body, &event); err != nil {
		log.Warnw("Webhook payload is not valid JSON",
			"provider", provider,
			"webhook_id", webhookID,
			"error", err)
		respondBadRequest(c, "Invalid webhook payload", nil)
		return
	}
	event.ID = webhookID
	event.RawBody = body

	tracing.AddSpanAttributes(c,
		attribute.String("webhook.provider", provider),
		attribute.String("webhook.event_type", event.Type),
	)

	result, err := h.processor.ProcessEvent(c.Request.Context(), entities.ProviderDodo, &event)
	if err != nil {
		log.Errorw("Failed to process webhook event",
			"provider", provider,
			"webhook_id", webhookID,
			"event_type", event.Type,
			"error", err)
		respondServiceError(c, err)
		return
	}

	if result.Duplicate {
		log.Infow("Duplicate webhook acknowledged",
			"provider", provider,
			"webhook_id", webhookID)
		c.JSON(http.StatusOK, gin.H{
			"received":  true,
			"duplicate": true,
			"event_id":  result.EventID,
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"received": true,
		"event_id": result.EventID,
		"type":     result.Type,
		"handled":  result.Handled,
	})
}

// missingHeaders names which of the three signature headers are absent
func missingHeaders(webhookID, timestamp, signature string) []string {
	var missing []string
	if webhookID == "" {
		missing = append(missing, "webhook-id")
	}
	if timestamp == "" {
		missing = append(missing, "webhook-timestamp")
	}
	if signature == "" {
		missing = append(missing, "webhook-signature")
	}
	return missing
}
