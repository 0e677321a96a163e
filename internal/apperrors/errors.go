// Package apperrors defines the error taxonomy shared by the matching core
// and the HTTP layer: validation failures the client can correct, missing
// entities, and unexpected failures that are logged but never exposed.
package apperrors

import (
	"errors"
	"fmt"
)

const (
	CodeValidation = "VALIDATION_ERROR"
	CodeNotFound   = "NOT_FOUND"
	CodeInternal   = "INTERNAL_ERROR"
)

// AppError carries a machine-readable code and a message. Message is a
// localization key for validation errors.
type AppError struct {
	Code    string
	Message string
	Err     error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// Is matches any AppError with the same code.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// Validation returns a client-correctable error.
func Validation(message string) *AppError {
	return &AppError{Code: CodeValidation, Message: message}
}

// NotFound returns an error for an operation on a missing entity.
func NotFound(message string) *AppError {
	return &AppError{Code: CodeNotFound, Message: message}
}

// Unexpected wraps a store or transport failure.
func Unexpected(message string, err error) *AppError {
	return &AppError{Code: CodeInternal, Message: message, Err: err}
}

// Validation message keys.
var (
	ErrSessionRequired    = Validation("error.session_required")
	ErrRoleRequired       = Validation("error.role_required")
	ErrRoleInvalid        = Validation("error.role_invalid")
	ErrHandleRequired     = Validation("error.handle_required")
	ErrHandleTooLong      = Validation("error.handle_too_long")
	ErrConnectionRequired = Validation("error.connection_required")
	ErrInvalidBody        = Validation("error.invalid_body")

	ErrEntryNotFound      = NotFound("queue entry not found")
	ErrConnectionNotFound = NotFound("connection not found")
)

func IsValidation(err error) bool {
	var appErr *AppError
	return errors.As(err, &appErr) && appErr.Code == CodeValidation
}

func IsNotFound(err error) bool {
	var appErr *AppError
	return errors.As(err, &appErr) && appErr.Code == CodeNotFound
}

// MessageKey returns the message of the first AppError in err's chain.
func MessageKey(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Message
	}
	return ""
}
