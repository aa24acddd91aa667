package types

import (
	"errors"
	"fmt"
)

// ErrorCode represents a unified error code across the engine.
type ErrorCode string

// Flow definition error codes
const (
	ErrValidation     ErrorCode = "VALIDATION"
	ErrFlowNotFound   ErrorCode = "FLOW_NOT_FOUND"
	ErrFlowNotActive  ErrorCode = "FLOW_NOT_ACTIVE"
	ErrInvalidRequest ErrorCode = "INVALID_REQUEST"
)

// Execution error codes
const (
	ErrNodeExecution     ErrorCode = "NODE_EXECUTION"
	ErrTimeout           ErrorCode = "TIMEOUT"
	ErrIntegrationAction ErrorCode = "INTEGRATION_ACTION"
	ErrConcurrencyLimit  ErrorCode = "CONCURRENCY_LIMIT_EXCEEDED"
	ErrExecutionNotFound ErrorCode = "EXECUTION_NOT_FOUND"
	ErrInvalidState      ErrorCode = "INVALID_STATE"
	ErrLeaseHeld         ErrorCode = "LEASE_HELD"
	ErrCancelled         ErrorCode = "CANCELLED"
)

// Infrastructure error codes
const (
	ErrStorage       ErrorCode = "STORAGE"
	ErrInternalError ErrorCode = "INTERNAL_ERROR"
)

// Error represents a structured error with code, message, and metadata.
type Error struct {
	Code       ErrorCode `json:"code"`
	Message    string    `json:"message"`
	HTTPStatus int       `json:"http_status,omitempty"`
	Retryable  bool      `json:"retryable"`
	NodeID     string    `json:"node_id,omitempty"`
	Cause      error     `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// NewError creates a new Error with the given code and message.
func NewError(code ErrorCode, message string) *Error {
	return &Error{Code: code, Message: message}
}

// NewErrorf creates a new Error with a formatted message.
func NewErrorf(code ErrorCode, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// WithCause adds a cause to the error.
func (e *Error) WithCause(cause error) *Error {
	e.Cause = cause
	return e
}

// WithHTTPStatus sets the HTTP status code.
func (e *Error) WithHTTPStatus(status int) *Error {
	e.HTTPStatus = status
	return e
}

// WithRetryable marks the error as retryable.
func (e *Error) WithRetryable(retryable bool) *Error {
	e.Retryable = retryable
	return e
}

// WithNodeID attaches the node id the error originated from.
func (e *Error) WithNodeID(nodeID string) *Error {
	e.NodeID = nodeID
	return e
}

// IsRetryable checks if an error is retryable.
func IsRetryable(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Retryable
	}
	return false
}

// GetErrorCode extracts the error code from an error.
// Returns an empty code when err is not a *types.Error.
func GetErrorCode(err error) ErrorCode {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// AsError unwraps err into a *types.Error.
func AsError(err error) (*Error, bool) {
	var e *Error
	ok := errors.As(err, &e)
	return e, ok
}
