package types

import (
	"errors"
)

// Status represents the lifecycle state of a kernel object
type Status string

const (
	StatusUnknown    Status = "unknown"
	StatusReady      Status = "ready"
	StatusRunning    Status = "running"
	StatusBlocked    Status = "blocked"
	StatusExited     Status = "exited"
	StatusTerminated Status = "terminated"
)

// Error represents an error with additional context
type Error struct {
	Code    string
	Message string
	Err     error
}

// Error returns the error message
func (e *Error) Error() string {
	if e.Err != nil {
		return e.Code + ": " + e.Message + ": " + e.Err.Error()
	}
	return e.Code + ": " + e.Message
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Err
}

// NewError creates a new error with code and message
func NewError(code, message string) *Error {
	return &Error{
		Code:    code,
		Message: message,
	}
}

// WrapError wraps an existing error with code and message
func WrapError(code, message string, err error) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// IsErrCode checks if an error, or any error it wraps, has a specific error code.
// Only the outermost *Error in the chain is consulted.
func IsErrCode(err error, code string) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == code
	}
	return false
}

// GetErrorCode returns the error code from an error
func GetErrorCode(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// Common error codes
const (
	ErrCodeNotFound          = "NOT_FOUND"
	ErrCodeAlreadyExists     = "ALREADY_EXISTS"
	ErrCodeInvalidArgument   = "INVALID_ARGUMENT"
	ErrCodeInvalid           = "INVALID"
	ErrCodePermissionDenied  = "PERMISSION_DENIED"
	ErrCodeInternal          = "INTERNAL"
	ErrCodeUnavailable       = "UNAVAILABLE"
	ErrCodeTimeout           = "TIMEOUT"
	ErrCodeCanceled          = "CANCELED"
	ErrCodeResourceExhausted = "RESOURCE_EXHAUSTED"
)

// Message queue error codes
const (
	ErrCodeNameTooLong     = "NAME_TOO_LONG"
	ErrCodeWouldBlock      = "WOULD_BLOCK"
	ErrCodeMessageTooLarge = "MESSAGE_TOO_LARGE"
	ErrCodeBufferTooSmall  = "BUFFER_TOO_SMALL"
	ErrCodeBusy            = "BUSY"
	ErrCodeRecovered       = "RECOVERED"
)
