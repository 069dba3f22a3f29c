package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrorCode represents a claim store error code.
type ErrorCode string

const (
	ErrConfiguration     ErrorCode = "CONFIGURATION"      // 500, fatal, never retried
	ErrStorage           ErrorCode = "STORAGE_IO"         // 507
	ErrInvalidOperation  ErrorCode = "INVALID_OPERATION"  // 409
	ErrMalformedDocument ErrorCode = "MALFORMED_DOCUMENT" // 422
	ErrInvalidRequest    ErrorCode = "INVALID_REQUEST"    // 400
	ErrNotFound          ErrorCode = "NOT_FOUND"          // 404
	ErrInternal          ErrorCode = "INTERNAL"           // 500
)

// ClaimError represents a structured error with code, status, details and an
// optional underlying cause.
type ClaimError struct {
	Code    ErrorCode
	Status  int
	Message string
	Details map[string]any
	Cause   error
}

// Error implements the error interface.
func (e *ClaimError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap exposes the underlying cause to errors.Is and errors.As.
func (e *ClaimError) Unwrap() error {
	return e.Cause
}

// NewConfiguration creates an error for a missing or invalid configuration
// property. The provider failure is kept as the cause.
func NewConfiguration(application, property string, cause error) *ClaimError {
	return &ClaimError{
		Code:    ErrConfiguration,
		Status:  500,
		Message: fmt.Sprintf("cannot resolve configuration property %s/%s", application, property),
		Details: map[string]any{"application": application, "property": property},
		Cause:   cause,
	}
}

// NewStorage creates an error for a persistence sink that could not be
// created or written.
func NewStorage(path string, cause error) *ClaimError {
	return &ClaimError{
		Code:    ErrStorage,
		Status:  507,
		Message: fmt.Sprintf("cannot persist %s", path),
		Details: map[string]any{"path": path},
		Cause:   cause,
	}
}

// NewInvalidOperation creates an error for an operation the current state
// does not allow.
func NewInvalidOperation(msg string) *ClaimError {
	return &ClaimError{
		Code:    ErrInvalidOperation,
		Status:  409,
		Message: msg,
	}
}

// NewMalformedDocument creates an error naming the element or attribute that
// is missing or invalid in a document.
func NewMalformedDocument(document, missing string) *ClaimError {
	return &ClaimError{
		Code:    ErrMalformedDocument,
		Status:  422,
		Message: fmt.Sprintf("%s document is malformed: %s is missing", document, missing),
		Details: map[string]any{"document": document, "missing": missing},
	}
}

// NewInvalidRequest creates a 400 error for invalid request parameters.
func NewInvalidRequest(msg string) *ClaimError {
	return &ClaimError{
		Code:    ErrInvalidRequest,
		Status:  400,
		Message: msg,
	}
}

// NewNotFound creates a 404 error for an artifact or property that does not exist.
func NewNotFound(identifier string) *ClaimError {
	return &ClaimError{
		Code:    ErrNotFound,
		Status:  404,
		Message: fmt.Sprintf("not found: %s", identifier),
		Details: map[string]any{"identifier": identifier},
	}
}

// NewInternal creates a 500 error for unexpected internal errors.
func NewInternal(err error) *ClaimError {
	msg := "internal error"
	if err != nil {
		msg = err.Error()
	}
	return &ClaimError{
		Code:    ErrInternal,
		Status:  500,
		Message: msg,
	}
}

// Is checks if err, or any error it wraps, is a ClaimError with the given code.
func Is(err error, code ErrorCode) bool {
	var cErr *ClaimError
	if stderrors.As(err, &cErr) {
		return cErr.Code == code
	}
	return false
}
