package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/vertex-bank/banking_service/internal/domain/entities"
	apperrors "github.com/vertex-bank/banking_service/internal/domain/errors"
)

// Error codes owned by the HTTP layer. Engine codes pass through unchanged.
const (
	ErrCodeUnauthorized       = "UNAUTHORIZED"
	ErrCodeForbidden          = "FORBIDDEN"
	ErrCodeInvalidRequest     = "INVALID_REQUEST"
	ErrCodeValidationError    = "VALIDATION_ERROR"
	ErrCodeInvalidID          = "INVALID_ID"
	ErrCodeNotFound           = "NOT_FOUND"
	ErrCodeInternalError      = "INTERNAL_ERROR"
	ErrCodeServiceUnavailable = "SERVICE_UNAVAILABLE"
	ErrCodeTooManyRequests    = "TOO_MANY_REQUESTS"
	ErrCodeFileTooLarge       = "FILE_TOO_LARGE"
)

// Common error messages
const (
	MsgInvalidRequest     = "Invalid request payload"
	MsgUnauthorized       = "Authentication required"
	MsgForbidden          = "Insufficient permissions"
	MsgInternalError      = "Internal server error"
	MsgServiceUnavailable = "Service temporarily unavailable"
)

// statusForCode maps stable engine error codes to HTTP statuses. Anything
// unmapped is treated as an internal failure so no storage detail leaks.
func statusForCode(code string) int {
	switch code {
	case apperrors.CodeInvalidAmount, apperrors.CodeSelfTransfer, ErrCodeValidationError:
		return http.StatusBadRequest
	case apperrors.CodeUnauthorizedAccess:
		return http.StatusForbidden
	case apperrors.CodeAccountNotFound:
		return http.StatusNotFound
	case apperrors.CodeDuplicateOperation, apperrors.CodeConcurrencyConflict:
		return http.StatusConflict
	case apperrors.CodeInsufficientFunds, apperrors.CodeAccountFrozen, apperrors.CodeAccountClosed:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// RespondWithError renders a domain error as its stable code, message, and
// mapped status. Non-domain errors become an opaque 500.
func RespondWithError(c *gin.Context, err error) {
	code := apperrors.GetErrorCode(err)
	status := statusForCode(code)

	// domain errors carry caller-safe messages; anything else is rendered
	// opaquely, and 500s never echo internal detail
	message := err.Error()
	details := apperrors.GetErrorDetails(err)
	if status == http.StatusInternalServerError {
		details = nil
		if code != apperrors.CodeStorageError {
			code = ErrCodeInternalError
			message = MsgInternalError
		}
	}

	c.JSON(status, entities.ErrorResponse{
		Code:    code,
		Message: message,
		Details: details,
	})
}

// ErrorResponseBuilder provides a fluent interface for building error responses
type ErrorResponseBuilder struct {
	status  int
	code    string
	message string
	details map[string]interface{}
}

// NewError creates a new ErrorResponseBuilder
func NewError(status int, code string) *ErrorResponseBuilder {
	return &ErrorResponseBuilder{
		status: status,
		code:   code,
	}
}

// Message sets the error message
func (e *ErrorResponseBuilder) Message(msg string) *ErrorResponseBuilder {
	e.message = msg
	return e
}

// Detail adds a single detail to the error response
func (e *ErrorResponseBuilder) Detail(key string, value interface{}) *ErrorResponseBuilder {
	if e.details == nil {
		e.details = make(map[string]interface{})
	}
	e.details[key] = value
	return e
}

// Send sends the error response
func (e *ErrorResponseBuilder) Send(c *gin.Context) {
	c.JSON(e.status, entities.ErrorResponse{
		Code:    e.code,
		Message: e.message,
		Details: e.details,
	})
}

// Common error response helpers

// SendBadRequest sends a 400 Bad Request error
func SendBadRequest(c *gin.Context, code, message string, details ...map[string]interface{}) {
	var det map[string]interface{}
	if len(details) > 0 {
		det = details[0]
	}
	c.JSON(http.StatusBadRequest, entities.ErrorResponse{
		Code:    code,
		Message: message,
		Details: det,
	})
}

// SendUnauthorized sends a 401 Unauthorized error
func SendUnauthorized(c *gin.Context, message string) {
	c.JSON(http.StatusUnauthorized, entities.ErrorResponse{
		Code:    ErrCodeUnauthorized,
		Message: message,
	})
}

// SendForbidden sends a 403 Forbidden error
func SendForbidden(c *gin.Context, message string) {
	c.JSON(http.StatusForbidden, entities.ErrorResponse{
		Code:    ErrCodeForbidden,
		Message: message,
	})
}

// SendNotFound sends a 404 Not Found error
func SendNotFound(c *gin.Context, code, message string) {
	c.JSON(http.StatusNotFound, entities.ErrorResponse{
		Code:    code,
		Message: message,
	})
}

// SendInternalError sends a 500 Internal Server Error
func SendInternalError(c *gin.Context, code, message string) {
	c.JSON(http.StatusInternalServerError, entities.ErrorResponse{
		Code:    code,
		Message: message,
	})
}

// SendServiceUnavailable sends a 503 Service Unavailable error
func SendServiceUnavailable(c *gin.Context, message string) {
	c.JSON(http.StatusServiceUnavailable, entities.ErrorResponse{
		Code:    ErrCodeServiceUnavailable,
		Message: message,
	})
}

// SendTooManyRequests sends a 429 Too Many Requests error
func SendTooManyRequests(c *gin.Context, message string) {
	c.JSON(http.StatusTooManyRequests, entities.ErrorResponse{
		Code:    ErrCodeTooManyRequests,
		Message: message,
	})
}

// SendSuccess sends a 200 OK response with data
func SendSuccess(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, data)
}

// SendCreated sends a 201 Created response with data
func SendCreated(c *gin.Context, data interface{}) {
	c.JSON(http.StatusCreated, data)
}

// SendInvalidField sends an error for a specific invalid field
func SendInvalidField(c *gin.Context, field, message string) {
	c.JSON(http.StatusBadRequest, entities.ErrorResponse{
		Code:    ErrCodeValidationError,
		Message: message,
		Details: map[string]interface{}{
			"field": field,
		},
	})
}
