package models

import "fmt"

// Error codes attached to AppError values. Handlers map every code except
// CodeInternal and CodeTransient to a single ERROR frame back to the
// originator; the session keeps running.
const (
	CodeProtocol     = "PROTOCOL_ERROR"
	CodeValidation   = "VALIDATION_ERROR"
	CodeConflict     = "CONFLICT"
	CodeUnauthorized = "UNAUTHORIZED"
	CodeForbidden    = "FORBIDDEN"
	CodeNotFound     = "NOT_FOUND"
	CodeNotOnline    = "NOT_ONLINE"
	CodeRateLimited  = "RATE_LIMITED"
	CodeTransient    = "TRANSIENT"
	CodeInternal     = "INTERNAL_ERROR"
)

// AppError is the application error carried between the store, services and
// the session dispatch boundary.
type AppError struct {
	Code    string
	Message string
	Err     error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// NewProtocolError reports a malformed or oversized frame.
func NewProtocolError(message string) *AppError {
	return &AppError{Code: CodeProtocol, Message: message}
}

// NewValidationError reports rejected input (lengths, empty fields).
func NewValidationError(message string) *AppError {
	return &AppError{Code: CodeValidation, Message: message}
}

// NewConflictError reports a uniqueness or duplicate-state violation.
func NewConflictError(message string) *AppError {
	return &AppError{Code: CodeConflict, Message: message}
}

// NewUnauthorizedError reports failed or missing authentication.
func NewUnauthorizedError(message string) *AppError {
	return &AppError{Code: CodeUnauthorized, Message: message}
}

// NewForbiddenError reports an authorization failure (not admin, target
// protected, cannot act on self).
func NewForbiddenError(message string) *AppError {
	return &AppError{Code: CodeForbidden, Message: message}
}

// NewNotFoundError reports a missing user or resource.
func NewNotFoundError(message string) *AppError {
	return &AppError{Code: CodeNotFound, Message: message}
}

// NewNotOnlineError reports a private message to a user with no live session.
func NewNotOnlineError(message string) *AppError {
	return &AppError{Code: CodeNotOnline, Message: message}
}

// NewRateLimitedError reports a chat frame dropped by the per-session window.
func NewRateLimitedError(message string) *AppError {
	return &AppError{Code: CodeRateLimited, Message: message}
}

// NewInternalError wraps an unexpected failure. It is logged and converted to
// a generic ERROR frame; the cause never reaches the wire.
func NewInternalError(err error) *AppError {
	return &AppError{Code: CodeInternal, Message: "Internal server error", Err: err}
}

// UserMessage returns the text suitable for an ERROR frame's content field.
func (e *AppError) UserMessage() string {
	if e.Code == CodeInternal {
		return "Internal server error"
	}
	return e.Message
}
