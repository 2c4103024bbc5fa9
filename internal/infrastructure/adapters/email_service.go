package adapters

import (
	"context"
	"fmt"
	"time"

	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
	"go.uber.org/zap"
	"golang.org/x/text/currency"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/storefront-service/payment_service/internal/domain/entities"
)

// EmailServiceConfig holds mailer configuration
type EmailServiceConfig struct {
	APIKey      string
	FromEmail   string
	FromName    string
	ReplyTo     string
	Environment string // "development", "staging", "production"
}

// EmailService sends customer-facing payment notifications through
// SendGrid. Without an API key, or in development, it logs the message
// instead of sending it.
type EmailService struct {
	logger   *zap.Logger
	config   EmailServiceConfig
	client   *sendgrid.Client
	mockMode bool
}

// NewEmailService creates a new email service
func NewEmailService(logger *zap.Logger, config EmailServiceConfig) *EmailService {
	mockMode := config.Environment == "development" || config.APIKey == ""

	var client *sendgrid.Client
	if !mockMode {
		client = sendgrid.NewSendClient(config.APIKey)
	}

	return &EmailService{
		logger:   logger,
		config:   config,
		client:   client,
		mockMode: mockMode,
	}
}

// sendEmail is a helper method to send emails via SendGrid or mock
func (e *EmailService) sendEmail(ctx context.Context, to, subject, htmlContent, textContent string) error {
	if e.mockMode {
		e.logger.Info("Email sent successfully (MOCK)",
			zap.String("to", to),
			zap.String("subject", subject),
			zap.String("content_preview", textContent[:min(100, len(textContent))]+"..."))
		return nil
	}

	from := mail.NewEmail(e.config.FromName, e.config.FromEmail)
	toEmail := mail.NewEmail("", to)
	msg := mail.NewSingleEmail(from, subject, toEmail, textContent, htmlContent)
	if e.config.ReplyTo != "" {
		msg.SetReplyTo(mail.NewEmail("", e.config.ReplyTo))
	}

	ctxWithTimeout, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	response, err := e.client.SendWithContext(ctxWithTimeout, msg)
	if err != nil {
		e.logger.Error("Failed to send email",
			zap.String("to", to),
			zap.String("subject", subject),
			zap.Error(err))
		return fmt.Errorf("failed to send email: %w", err)
	}

	if response.StatusCode >= 400 {
		e.logger.Error("Email service returned error",
			zap.String("to", to),
			zap.String("subject", subject),
			zap.Int("status_code", response.StatusCode),
			zap.String("response_body", response.Body))
		return fmt.Errorf("email service error: status %d, body: %s", response.StatusCode, response.Body)
	}

	e.logger.Info("Email sent successfully",
		zap.String("to", to),
		zap.String("subject", subject),
		zap.Int("status_code", response.StatusCode))

	return nil
}

// SendPaymentConfirmation emails the customer after their payment settles.
func (e *EmailService) SendPaymentConfirmation(ctx context.Context, n entities.PaymentNotification) error {
	e.logger.Info("Sending payment confirmation email",
		zap.String("email", n.CustomerEmail),
		zap.String("order_number", n.OrderNumber),
		zap.String("tracking_number", n.TrackingNumber))

	amount := formatAmount(n.AmountMinor, n.Currency)
	subject := fmt.Sprintf("✅ Payment received for order %s", n.OrderNumber)

	return e.sendEmail(ctx, n.CustomerEmail, subject,
		e.buildConfirmationHTML(n, amount),
		e.buildConfirmationText(n, amount))
}

// SendPaymentFailure tells the customer a charge did not go through.
func (e *EmailService) SendPaymentFailure(ctx context.Context, n entities.PaymentNotification) error {
	e.logger.Info("Sending payment failure email",
		zap.String("email", n.CustomerEmail),
		zap.String("order_number", n.OrderNumber),
		zap.String("failure_reason", n.FailureReason))

	amount := formatAmount(n.AmountMinor, n.Currency)
	subject := fmt.Sprintf("❌ Payment failed for order %s", n.OrderNumber)

	return e.sendEmail(ctx, n.CustomerEmail, subject,
		e.buildFailureHTML(n, amount),
		e.buildFailureText(n, amount))
}

// Payment Email Templates

func (e *EmailService) buildConfirmationHTML(n entities.PaymentNotification, amount string) string {
	trackingBlock := ""
	if n.TrackingNumber != "" {
		trackingBlock = fmt.Sprintf(`
				<div style="background-color: white; padding: 20px; border-radius: 8px; margin: 20px 0;">
					<p style="color: #155724; font-size: 14px; margin-bottom: 8px;">Your tracking number:</p>
					<p style="font-family: monospace; font-size: 18px; color: #155724; font-weight: bold;">%s</p>
				</div>`, n.TrackingNumber)
	}

	return fmt.Sprintf(`
		<!DOCTYPE html>
		<html>
		<head><title>Payment Confirmed</title></head>
		<body style="font-family: Arial, sans-serif; max-width: 600px; margin: 0 auto; padding: 20px;">
			<div style="background-color: #d4edda; padding: 30px; border-radius: 8px; text-align: center; border: 1px solid #c3e6cb;">
				<h1 style="color: #155724; margin-bottom: 20px;">✅ Payment Confirmed!</h1>
				<p style="color: #155724; font-size: 16px; line-height: 1.5; margin-bottom: 20px;">
					%s we have received your payment of <strong>%s</strong> for order
					<strong>%s</strong>. Your order is now being prepared for shipment.
				</p>%s
				<p style="color: #155724; font-size: 14px; margin-top: 20px;">
					We will let you know as soon as your order ships.
				</p>
			</div>
		</body>
		</html>
	`, greeting(n.CustomerName), amount, n.OrderNumber, trackingBlock)
}

func (e *EmailService) buildConfirmationText(n entities.PaymentNotification, amount string) string {
	trackingLine := ""
	if n.TrackingNumber != "" {
		trackingLine = fmt.Sprintf("Your tracking number: %s\n\n", n.TrackingNumber)
	}

	return fmt.Sprintf(`
Payment Confirmed!

%s we have received your payment of %s for order %s.
Your order is now being prepared for shipment.

%sWe will let you know as soon as your order ships.

Best regards,
%s
	`, greeting(n.CustomerName), amount, n.OrderNumber, trackingLine, e.config.FromName)
}

func (e *EmailService) buildFailureHTML(n entities.PaymentNotification, amount string) string {
	reason := n.FailureReason
	if reason == "" {
		reason = "The payment could not be completed."
	}

	return fmt.Sprintf(`
		<!DOCTYPE html>
		<html>
		<head><title>Payment Failed</title></head>
		<body style="font-family: Arial, sans-serif; max-width: 600px; margin: 0 auto; padding: 20px;">
			<div style="background-color: #f8d7da; padding: 30px; border-radius: 8px; border: 1px solid #f5c6cb;">
				<h1 style="color: #721c24; margin-bottom: 20px;">Payment Unsuccessful</h1>
				<p style="color: #721c24; font-size: 16px; line-height: 1.5; margin-bottom: 20px;">
					%s the payment of <strong>%s</strong> for order <strong>%s</strong>
					did not go through.
				</p>
				<div style="background-color: white; padding: 20px; border-radius: 8px; margin: 20px 0;">
					<p style="color: #721c24; font-size: 14px;">%s</p>
				</div>
				<p style="color: #721c24; font-size: 14px;">
					No money has been taken. You can try again with the same or a
					different payment method.
				</p>
			</div>
		</body>
		</html>
	`, greeting(n.CustomerName), amount, n.OrderNumber, reason)
}

func (e *EmailService) buildFailureText(n entities.PaymentNotification, amount string) string {
	reason := n.FailureReason
	if reason == "" {
		reason = "The payment could not be completed."
	}

	return fmt.Sprintf(`
Payment Unsuccessful

%s the payment of %s for order %s did not go through.

Reason: %s

No money has been taken. You can try again with the same or a different
payment method.

Best regards,
%s
	`, greeting(n.CustomerName), amount, n.OrderNumber, reason, e.config.FromName)
}

func greeting(name string) string {
	if name == "" {
		return "Hi there,"
	}
	return fmt.Sprintf("Hi %s,", name)
}

// formatAmount renders a minor-unit amount with the currency's symbol,
// e.g. 2599 USD becomes $25.99. Unknown codes fall back to a plain
// decimal with the code appended.
func formatAmount(amountMinor int64, code string) string {
	unit, err := currency.ParseISO(code)
	if err != nil {
		return fmt.Sprintf("%.2f %s", float64(amountMinor)/100, code)
	}
	p := message.NewPrinter(language.English)
	return p.Sprintf("%v", currency.Symbol(unit.Amount(float64(amountMinor)/100)))
}
