// Package errors defines the typed failures surfaced by the soup store and the sync engine.
package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrorCode identifies a class of failure.
type ErrorCode string

const (
	// Store errors
	ErrNotRegistered  ErrorCode = "NOT_REGISTERED"
	ErrNotIndexed     ErrorCode = "NOT_INDEXED"
	ErrSchemaConflict ErrorCode = "SCHEMA_CONFLICT"
	ErrMalformedQuery ErrorCode = "MALFORMED_QUERY"
	ErrNotFound       ErrorCode = "NOT_FOUND"
	ErrDuplicate      ErrorCode = "DUPLICATE"
	ErrTransaction    ErrorCode = "TRANSACTION_STATE"
	ErrDatabase       ErrorCode = "DATABASE_ERROR"
	ErrInvalid        ErrorCode = "INVALID_INPUT"

	// Sync errors
	ErrNetworkFailure ErrorCode = "NETWORK_FAILURE"
	ErrInvalidRerun   ErrorCode = "INVALID_RERUN"
)

// AppError carries an error code, a message and an optional cause.
type AppError struct {
	Code    ErrorCode
	Message string
	Err     error
}

// Error implements the error interface.
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error.
func (e *AppError) Unwrap() error {
	return e.Err
}

// New creates a new AppError.
func New(code ErrorCode, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
	}
}

// Newf creates a new AppError with a formatted message.
func Newf(code ErrorCode, format string, args ...interface{}) *AppError {
	return New(code, fmt.Sprintf(format, args...))
}

// Wrap wraps an existing error with an error code.
func Wrap(code ErrorCode, message string, err error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// Is reports whether any error in err's chain is an AppError with the given code.
func Is(err error, code ErrorCode) bool {
	for err != nil {
		var appErr *AppError
		if !stderrors.As(err, &appErr) {
			return false
		}
		if appErr.Code == code {
			return true
		}
		err = appErr.Err
	}
	return false
}

// CodeOf returns the code of the outermost AppError in err's chain, or "" if there is none.
func CodeOf(err error) ErrorCode {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr.Code
	}
	return ""
}
