package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/storefront-service/payment_service/internal/domain/entities"
	"github.com/storefront-service/payment_service/pkg/logger"
)

// CheckoutService exposes the checkout operations the HTTP layer needs
type CheckoutService interface {
	CreateSession(ctx context.Context, req *entities.CreateCheckoutSessionRequest) (*entities.CheckoutSession, error)
	GetSession(ctx context.Context, sessionID string) (*entities.SessionSnapshot, error)
	CreatePopupOrder(ctx context.Context, req *entities.CreatePopupOrderRequest) (*entities.PopupOrder, error)
	VerifyPopupPayment(ctx context.Context, req *entities.PopupVerificationRequest) (*entities.PopupVerificationResult, error)
}

// CheckoutHandlers contains the storefront checkout handlers
type CheckoutHandlers struct {
	checkoutService CheckoutService
	logger          *logger.Logger
}

// NewCheckoutHandlers creates new checkout handlers
func NewCheckoutHandlers(checkoutService CheckoutService, logger *logger.Logger) *CheckoutHandlers {
	return &CheckoutHandlers{
		checkoutService: checkoutService,
		logger:          logger,
	}
}

// CreateSession starts a hosted checkout with the card processor
// @Summary Create checkout session
// @Description Creates a hosted checkout session for the given cart and returns the URL the storefront redirects the customer to
// @Tags checkout
// @Accept json
// @Produce json
// @Param request body entities.CreateCheckoutSessionRequest true "Cart and customer details"
// @Success 201 {object} entities.CheckoutSession
// @Failure 400 {object} entities.ErrorResponse "Invalid request"
// @Failure 422 {object} entities.ErrorResponse "Processor rejected the session"
// @Router /checkout/sessions [post]
func (h *CheckoutHandlers) CreateSession(c *gin.Context) {
	var req entities.CreateCheckoutSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "Invalid request format", map[string]interface{}{"error": err.Error()})
		return
	}

	session, err := h.checkoutService.CreateSession(c.Request.Context(), &req)
	if err != nil {
		h.logger.Errorw("Failed to create checkout session",
			"customer_email", req.CustomerEmail,
			"currency", req.Currency,
			"error", err,
			"request_id", getRequestID(c))
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, session)
}

// GetSession returns the cached snapshot of a checkout session
// @Summary Get checkout session status
// @Description Returns the cached snapshot for a session, including payment status and tracking number once paid
// @Tags checkout
// @Produce json
// @Param id path string true "Session ID"
// @Success 200 {object} entities.SessionSnapshot
// @Failure 404 {object} entities.ErrorResponse "Session unknown or expired"
// @Router /checkout/sessions/{id} [get]
func (h *CheckoutHandlers) GetSession(c *gin.Context) {
	sessionID := c.Param("id")
	if sessionID == "" {
		respondBadRequest(c, "Session ID is required", nil)
		return
	}

	snapshot, err := h.checkoutService.GetSession(c.Request.Context(), sessionID)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, snapshot)
}

// CreatePopupOrder starts a popup-gateway order
// @Summary Create popup gateway order
// @Description Creates a gateway order and returns the key and order ID the storefront needs to open the payment popup
// @Tags checkout
// @Accept json
// @Produce json
// @Param request body entities.CreatePopupOrderRequest true "Amount and customer details"
// @Success 201 {object} entities.PopupOrder
// @Failure 400 {object} entities.ErrorResponse "Invalid request"
// @Router /checkout/orders [post]
func (h *CheckoutHandlers) CreatePopupOrder(c *gin.Context) {
	var req entities.CreatePopupOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "Invalid request format", map[string]interface{}{"error": err.Error()})
		return
	}

	order, err := h.checkoutService.CreatePopupOrder(c.Request.Context(), &req)
	if err != nil {
		h.logger.Errorw("Failed to create popup order",
			"customer_email", req.CustomerEmail,
			"error", err,
			"request_id", getRequestID(c))
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, order)
}

// VerifyPopupPayment checks the gateway's checkout callback signature
// @Summary Verify popup payment callback
// @Description Verifies the signature the gateway popup hands back after payment. Only a valid signature marks the order as processing.
// @Tags checkout
// @Accept json
// @Produce json
// @Param request body entities.PopupVerificationRequest true "Gateway callback fields"
// @Success 200 {object} entities.PopupVerificationResult
// @Failure 401 {object} entities.ErrorResponse "Signature verification failed"
// @Router /checkout/orders/verify [post]
func (h *CheckoutHandlers) VerifyPopupPayment(c *gin.Context) {
	var req entities.PopupVerificationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "Invalid request format", map[string]interface{}{"error": err.Error()})
		return
	}

	result, err := h.checkoutService.VerifyPopupPayment(c.Request.Context(), &req)
	if err != nil {
		h.logger.Warnw("Popup payment verification failed",
			"order_id", req.OrderID,
			"payment_id", req.PaymentID,
			"error", err,
			"request_id", getRequestID(c))
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}
