// Package errors defines the service error vocabulary. Every error a
// handler can surface carries a stable code, a client-safe message and
// the HTTP status it maps to.
package errors

import (
	"fmt"
	"net/http"
)

// ErrorCode identifies an error class to API clients.
type ErrorCode string

const (
	// Access control.
	ErrCodeUnauthorized ErrorCode = "UNAUTHORIZED"
	ErrCodeForbidden    ErrorCode = "FORBIDDEN"

	// Request validation.
	ErrCodeValidation   ErrorCode = "VALIDATION_ERROR"
	ErrCodeInvalidInput ErrorCode = "INVALID_INPUT"
	ErrCodeMissingField ErrorCode = "MISSING_FIELD"

	// Webhook verification and payment lookups.
	ErrCodeSignatureInvalid ErrorCode = "SIGNATURE_INVALID"
	ErrCodeStaleWebhook     ErrorCode = "STALE_WEBHOOK"
	ErrCodePaymentNotFound  ErrorCode = "PAYMENT_NOT_FOUND"
	ErrCodeOrderNotFound    ErrorCode = "ORDER_NOT_FOUND"
	ErrCodeDuplicateEvent   ErrorCode = "DUPLICATE_EVENT"
	ErrCodeProviderRejected ErrorCode = "PROVIDER_REJECTED"

	// Infrastructure.
	ErrCodeInternal           ErrorCode = "INTERNAL_ERROR"
	ErrCodeServiceUnavailable ErrorCode = "SERVICE_UNAVAILABLE"
	ErrCodeTimeout            ErrorCode = "TIMEOUT"
	ErrCodeRateLimit          ErrorCode = "RATE_LIMIT_EXCEEDED"
)

// ServiceError is the error type the service layer returns to handlers.
// StatusCode never serializes; the handler uses it for the response.
type ServiceError struct {
	Code       ErrorCode              `json:"code"`
	Message    string                 `json:"message"`
	Details    map[string]interface{} `json:"details,omitempty"`
	StatusCode int                    `json:"-"`
}

func (e ServiceError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// New builds a ServiceError with the HTTP status derived from code.
func New(code ErrorCode, message string) *ServiceError {
	return &ServiceError{
		Code:       code,
		Message:    message,
		StatusCode: httpStatus(code),
		Details:    make(map[string]interface{}),
	}
}

// NewWithDetails builds a ServiceError carrying structured details.
func NewWithDetails(code ErrorCode, message string, details map[string]interface{}) *ServiceError {
	e := New(code, message)
	e.Details = details
	return e
}

// Wrap converts err into a ServiceError, preserving the original text
// in the details for logs. The original message may hold provider
// internals, so it stays out of the client-facing Message.
func Wrap(err error, code ErrorCode, message string) *ServiceError {
	return New(code, message).AddDetail("original_error", err.Error())
}

// AddDetail attaches one key to the error and returns it for chaining.
func (e *ServiceError) AddDetail(key string, value interface{}) *ServiceError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// httpStatus fixes the response status per error class. Signature and
// freshness failures are 401s; a replayed event alone is 409 when the
// service chooses to reject rather than acknowledge it.
func httpStatus(code ErrorCode) int {
	switch code {
	case ErrCodeUnauthorized, ErrCodeSignatureInvalid, ErrCodeStaleWebhook:
		return http.StatusUnauthorized
	case ErrCodeForbidden:
		return http.StatusForbidden
	case ErrCodeValidation, ErrCodeInvalidInput, ErrCodeMissingField:
		return http.StatusBadRequest
	case ErrCodePaymentNotFound, ErrCodeOrderNotFound:
		return http.StatusNotFound
	case ErrCodeDuplicateEvent:
		return http.StatusConflict
	case ErrCodeProviderRejected:
		return http.StatusUnprocessableEntity
	case ErrCodeRateLimit:
		return http.StatusTooManyRequests
	case ErrCodeTimeout:
		return http.StatusRequestTimeout
	case ErrCodeServiceUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// Unauthorized builds a 401 error.
func Unauthorized(message string) *ServiceError {
	return New(ErrCodeUnauthorized, message)
}

// Forbidden builds a 403 error.
func Forbidden(message string) *ServiceError {
	return New(ErrCodeForbidden, message)
}

// ValidationError builds a 400 error.
func ValidationError(message string) *ServiceError {
	return New(ErrCodeValidation, message)
}

// NotFound builds a 404 error for the named resource.
func NotFound(resource string) *ServiceError {
	return New(ErrCodePaymentNotFound, fmt.Sprintf("%s not found", resource))
}

// SignatureInvalid builds a 401 error for failed webhook verification.
func SignatureInvalid(message string) *ServiceError {
	return New(ErrCodeSignatureInvalid, message)
}

// Internal builds a 500 error.
func Internal(message string) *ServiceError {
	return New(ErrCodeInternal, message)
}

// ServiceUnavailable builds a 503 error naming the failing dependency.
func ServiceUnavailable(service string) *ServiceError {
	return New(ErrCodeServiceUnavailable, fmt.Sprintf("%s service unavailable", service))
}
