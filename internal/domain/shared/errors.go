package shared

import "errors"

// DomainError represents a domain-level error carrying a stable code.
// Two DomainErrors match under errors.Is when their codes are equal.
type DomainError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	cause   error
}

// Error implements the error interface
func (e *DomainError) Error() string {
	if e.cause != nil {
		return e.Message + ": " + e.cause.Error()
	}
	return e.Message
}

// Unwrap returns the underlying cause, if any
func (e *DomainError) Unwrap() error {
	return e.cause
}

// Is reports whether target is a DomainError with the same code
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// NewDomainError creates a new domain error
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
	}
}

// WrapDomainError creates a domain error that keeps cause in its chain
func WrapDomainError(code, message string, cause error) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		cause:   cause,
	}
}

// Error codes
const (
	CodeNotFound            = "NOT_FOUND"
	CodeValidation          = "VALIDATION_ERROR"
	CodeConflict            = "CONFLICT"
	CodeDependencyBlocked   = "DEPENDENCY_BLOCKED"
	CodePartialBatchFailure = "PARTIAL_BATCH_FAILURE"
	CodeTransientStore      = "TRANSIENT_STORE_ERROR"
	CodeInvalidState        = "INVALID_STATE"
)

// Common domain errors
var (
	ErrNotFound          = NewDomainError(CodeNotFound, "Resource not found")
	ErrValidation        = NewDomainError(CodeValidation, "Validation failed")
	ErrConflict          = NewDomainError(CodeConflict, "Resource conflicts with an existing record")
	ErrDependencyBlocked = NewDomainError(CodeDependencyBlocked, "Resource is referenced by another record")
	ErrPartialBatch      = NewDomainError(CodePartialBatchFailure, "Some batch items failed")
	ErrTransientStore    = NewDomainError(CodeTransientStore, "Store temporarily unavailable")
	ErrInvalidState      = NewDomainError(CodeInvalidState, "Operation not allowed in current state")
)

// NewValidationError creates a VALIDATION_ERROR with the given message
func NewValidationError(message string) *DomainError {
	return NewDomainError(CodeValidation, message)
}

// NewConflictError creates a CONFLICT error with the given message
func NewConflictError(message string) *DomainError {
	return NewDomainError(CodeConflict, message)
}

// NewInvalidStateError creates an INVALID_STATE error with the given message
func NewInvalidStateError(message string) *DomainError {
	return NewDomainError(CodeInvalidState, message)
}

// NewTransientStoreError wraps a store failure. Errors that already carry a
// domain code are returned unchanged.
func NewTransientStoreError(op string, cause error) error {
	if cause == nil {
		return nil
	}
	var de *DomainError
	if errors.As(cause, &de) {
		return cause
	}
	return WrapDomainError(CodeTransientStore, op, cause)
}

// ErrorCode extracts the domain code of err, or "" when err carries none
func ErrorCode(err error) string {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Code
	}
	return ""
}
