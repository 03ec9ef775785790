// Package errors provides standardized error types for the domain layer.
// Every failure a monetary operation can surface carries one of the stable
// codes below; handlers map codes to HTTP statuses without inspecting
// anything else.
package errors

import (
	"errors"
	"fmt"
)

// Stable error codes surfaced by the banking engine.
const (
	CodeInvalidAmount       = "INVALID_AMOUNT"
	CodeAccountNotFound     = "ACCOUNT_NOT_FOUND"
	CodeUnauthorizedAccess  = "UNAUTHORIZED_ACCESS"
	CodeAccountFrozen       = "ACCOUNT_FROZEN"
	CodeAccountClosed       = "ACCOUNT_CLOSED"
	CodeSelfTransfer        = "SELF_TRANSFER"
	CodeInsufficientFunds   = "INSUFFICIENT_FUNDS"
	CodeDuplicateOperation  = "DUPLICATE_OPERATION"
	CodeConcurrencyConflict = "CONCURRENCY_CONFLICT"
	CodeStorageError        = "STORAGE_ERROR"
)

// Standard error categories
var (
	// ErrNotFound indicates the requested resource was not found
	ErrNotFound = errors.New("resource not found")

	// ErrAlreadyExists indicates the resource already exists
	ErrAlreadyExists = errors.New("resource already exists")

	// ErrInvalidInput indicates invalid input was provided
	ErrInvalidInput = errors.New("invalid input")

	// ErrUnauthorized indicates the request is not authorized
	ErrUnauthorized = errors.New("unauthorized")

	// ErrConflict indicates a conflict with the current state
	ErrConflict = errors.New("conflict")

	// ErrInternal indicates an internal server error
	ErrInternal = errors.New("internal error")

	// ErrVersionConflict indicates an optimistic-concurrency version check
	// failed. It never leaves the engine; after the retry budget it is
	// surfaced as a DomainError with CodeConcurrencyConflict.
	ErrVersionConflict = errors.New("version conflict")
)

// DomainError represents a domain-specific error with additional context
type DomainError struct {
	Err       error
	Code      string
	Message   string
	Details   map[string]interface{}
	Retryable bool
}

// Error implements the error interface
func (e *DomainError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return e.Code
}

// Unwrap returns the underlying error
func (e *DomainError) Unwrap() error {
	return e.Err
}

// Is checks if the error matches the target
func (e *DomainError) Is(target error) bool {
	if e.Err != nil {
		return errors.Is(e.Err, target)
	}
	return false
}

// WithDetails adds details to the error
func (e *DomainError) WithDetails(details map[string]interface{}) *DomainError {
	e.Details = details
	return e
}

// IsRetryable returns true if the caller may retry the operation as-is.
func (e *DomainError) IsRetryable() bool {
	return e.Retryable
}

// InvalidAmountError rejects an amount before any transaction is opened.
func InvalidAmountError(reason string) *DomainError {
	return &DomainError{
		Err:     ErrInvalidInput,
		Code:    CodeInvalidAmount,
		Message: reason,
	}
}

// AccountNotFoundError reports a missing account.
func AccountNotFoundError() *DomainError {
	return &DomainError{
		Err:     ErrNotFound,
		Code:    CodeAccountNotFound,
		Message: "account not found",
	}
}

// UnauthorizedAccessError reports an ownership check failure.
func UnauthorizedAccessError() *DomainError {
	return &DomainError{
		Err:     ErrUnauthorized,
		Code:    CodeUnauthorizedAccess,
		Message: "you do not have access to this account",
	}
}

// AccountFrozenError reports an operation against a frozen account.
func AccountFrozenError() *DomainError {
	return &DomainError{
		Err:     ErrConflict,
		Code:    CodeAccountFrozen,
		Message: "account is frozen",
	}
}

// AccountClosedError reports an operation against a closed account.
func AccountClosedError() *DomainError {
	return &DomainError{
		Err:     ErrConflict,
		Code:    CodeAccountClosed,
		Message: "account is closed",
	}
}

// SelfTransferError reports a transfer where source and destination match.
func SelfTransferError() *DomainError {
	return &DomainError{
		Err:     ErrInvalidInput,
		Code:    CodeSelfTransfer,
		Message: "cannot transfer to the same account",
	}
}

// InsufficientFundsError reports a debit exceeding the available balance.
func InsufficientFundsError() *DomainError {
	return &DomainError{
		Err:     ErrConflict,
		Code:    CodeInsufficientFunds,
		Message: "insufficient funds",
	}
}

// DuplicateOperationError reports an operation key that is already in flight
// or already bound to a committed transfer.
func DuplicateOperationError() *DomainError {
	return &DomainError{
		Err:     ErrAlreadyExists,
		Code:    CodeDuplicateOperation,
		Message: "operation with this key has already been submitted",
	}
}

// ConcurrencyConflictError reports an exhausted optimistic-concurrency retry
// budget. The caller may retry with a new operation key.
func ConcurrencyConflictError() *DomainError {
	return &DomainError{
		Err:       ErrConflict,
		Code:      CodeConcurrencyConflict,
		Message:   "operation could not be completed due to concurrent updates, please retry",
		Retryable: true,
	}
}

// StorageError wraps an unrecovered store failure. The underlying error is
// preserved for logs but never rendered to callers.
func StorageError(err error) *DomainError {
	return &DomainError{
		Err:       fmt.Errorf("%w: %w", ErrInternal, err),
		Code:      CodeStorageError,
		Message:   "a storage error occurred, please try again later",
		Retryable: true,
	}
}

// ValidationError creates a field-scoped validation error
func ValidationError(field, message string) *DomainError {
	return &DomainError{
		Err:     ErrInvalidInput,
		Code:    "VALIDATION_ERROR",
		Message: message,
		Details: map[string]interface{}{
			"field": field,
		},
	}
}

// NotFoundError creates a not found error for an arbitrary resource
func NotFoundError(resource string) *DomainError {
	return &DomainError{
		Err:     ErrNotFound,
		Code:    fmt.Sprintf("%s_NOT_FOUND", resource),
		Message: fmt.Sprintf("%s not found", resource),
	}
}

// AlreadyExistsError creates an already exists error
func AlreadyExistsError(resource string) *DomainError {
	return &DomainError{
		Err:     ErrAlreadyExists,
		Code:    fmt.Sprintf("%s_ALREADY_EXISTS", resource),
		Message: fmt.Sprintf("%s already exists", resource),
	}
}

// InternalError creates an internal error
func InternalError(message string, err error) *DomainError {
	return &DomainError{
		Err:     ErrInternal,
		Code:    "INTERNAL_ERROR",
		Message: message,
		Details: map[string]interface{}{
			"cause": err.Error(),
		},
	}
}

// Error helpers for common patterns

// IsNotFound checks if an error is a not found error
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsInvalidInput checks if an error is an invalid input error
func IsInvalidInput(err error) bool {
	return errors.Is(err, ErrInvalidInput)
}

// IsUnauthorized checks if an error is an unauthorized error
func IsUnauthorized(err error) bool {
	return errors.Is(err, ErrUnauthorized)
}

// IsConflict checks if an error is a conflict error
func IsConflict(err error) bool {
	return errors.Is(err, ErrConflict)
}

// IsVersionConflict checks if an error is an optimistic-concurrency failure.
func IsVersionConflict(err error) bool {
	return errors.Is(err, ErrVersionConflict)
}

// IsDuplicateOperation checks for the duplicate-operation code.
func IsDuplicateOperation(err error) bool {
	return GetErrorCode(err) == CodeDuplicateOperation
}

// GetErrorCode extracts the error code from a domain error
func GetErrorCode(err error) string {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Code
	}
	return "UNKNOWN_ERROR"
}

// GetErrorDetails extracts details from a domain error
func GetErrorDetails(err error) map[string]interface{} {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Details
	}
	return nil
}

// Wrap wraps an error with additional context
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// WrapWithCode wraps an error with a code and message
func WrapWithCode(err error, code, message string) *DomainError {
	return &DomainError{
		Err:     err,
		Code:    code,
		Message: message,
	}
}
