package errors

import (
	"errors"
	"fmt"
)

// ErrorCode represents a promptshrink error code, per the wire taxonomy.
type ErrorCode string

const (
	ErrConfigurationError ErrorCode = "CONFIGURATION_ERROR" // 500
	ErrUnknownTokenizer   ErrorCode = "UNKNOWN_TOKENIZER"   // 400
	ErrInvalidRequest     ErrorCode = "INVALID_REQUEST"     // 400
	ErrCancelled          ErrorCode = "CANCELLED"           // 499
	ErrTimeout            ErrorCode = "TIMEOUT"             // 504
	ErrInternal           ErrorCode = "INTERNAL"            // 500
)

// OptimizeError represents a structured error with code, status, and details.
// It carries a human-readable message and never carries raw prompt content.
type OptimizeError struct {
	Code    ErrorCode
	Status  int
	Message string
	Details map[string]any
}

// Error implements the error interface.
func (e *OptimizeError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// NewConfigurationError creates a 500 error for missing tables, uncompilable
// catalogs, or any setup problem that makes the pipeline unable to run at all.
func NewConfigurationError(msg string) *OptimizeError {
	return &OptimizeError{
		Code:    ErrConfigurationError,
		Status:  500,
		Message: msg,
	}
}

// NewUnknownTokenizer creates a 400 error for an unresolvable tokenizer id.
func NewUnknownTokenizer(id string) *OptimizeError {
	return &OptimizeError{
		Code:    ErrUnknownTokenizer,
		Status:  400,
		Message: fmt.Sprintf("unknown tokenizer: %s", id),
		Details: map[string]any{"tokenizer_id": id},
	}
}

// NewInvalidRequest creates a 400 error for invalid request options.
func NewInvalidRequest(msg string) *OptimizeError {
	return &OptimizeError{
		Code:    ErrInvalidRequest,
		Status:  400,
		Message: msg,
	}
}

// NewCancelled creates a 499 error for a request whose cancellation signal fired.
func NewCancelled() *OptimizeError {
	return &OptimizeError{
		Code:    ErrCancelled,
		Status:  499,
		Message: "request cancelled",
	}
}

// NewTimeout creates a 504 error for a request that exceeded its deadline.
func NewTimeout() *OptimizeError {
	return &OptimizeError{
		Code:    ErrTimeout,
		Status:  504,
		Message: "request exceeded its deadline",
	}
}

// NewInternal creates a 500 error for unexpected internal errors.
// The original error is never surfaced in Message; it is retained in
// Details only for server-side logging, never serialized back over MCP.
func NewInternal(err error) *OptimizeError {
	details := map[string]any{}
	if err != nil {
		details["internal_error"] = err.Error()
	}
	return &OptimizeError{
		Code:    ErrInternal,
		Status:  500,
		Message: "an internal error occurred",
		Details: details,
	}
}

// Is reports whether err is an OptimizeError with the given code, unwrapping
// wrapped errors along the way.
func Is(err error, code ErrorCode) bool {
	var oErr *OptimizeError
	if errors.As(err, &oErr) {
		return oErr.Code == code
	}
	return false
}
