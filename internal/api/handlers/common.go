package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/storefront-service/payment_service/internal/domain/entities"
	svcerrors "github.com/storefront-service/payment_service/pkg/errors"
	"github.com/storefront-service/payment_service/pkg/tracing"
)

// Error codes for failures raised directly by the handler layer,
// before a request reaches a service.
const (
	codeInvalidRequest = "INVALID_REQUEST"
	codeUnauthorized   = "UNAUTHORIZED"
	codeNotFound       = "NOT_FOUND"
	codeInternal       = "INTERNAL_ERROR"
)

// getRequestID returns the request ID stamped by the middleware chain.
func getRequestID(c *gin.Context) string {
	return c.GetString("request_id")
}

// respondError writes the shared error envelope.
func respondError(c *gin.Context, status int, code, message string, details map[string]interface{}) {
	c.JSON(status, entities.ErrorResponse{
		Code:    code,
		Message: message,
		Details: details,
	})
}

func respondBadRequest(c *gin.Context, message string, details map[string]interface{}) {
	respondError(c, http.StatusBadRequest, codeInvalidRequest, message, details)
}

func respondUnauthorized(c *gin.Context, message string) {
	respondError(c, http.StatusUnauthorized, codeUnauthorized, message, nil)
}

func respondNotFound(c *gin.Context, message string) {
	respondError(c, http.StatusNotFound, codeNotFound, message, nil)
}

func respondInternalError(c *gin.Context, message string) {
	respondError(c, http.StatusInternalServerError, codeInternal, message, nil)
}

// respondServiceError maps a service-layer error onto the HTTP response.
// Errors that are not ServiceErrors get a generic 500 so internal detail
// never leaks to the storefront.
func respondServiceError(c *gin.Context, err error) {
	tracing.RecordError(c, err)

	var svcErr *svcerrors.ServiceError
	if errors.As(err, &svcErr) {
		respondError(c, svcErr.StatusCode, string(svcErr.Code), svcErr.Message, svcErr.Details)
		return
	}
	respondInternalError(c, "An unexpected error occurred")
}
