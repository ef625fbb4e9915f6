// Package apperror defines the error taxonomy shared by every layer.
//
// Services return *AppError values wrapping one of the sentinel errors below.
// Only the HTTP layer knows how a sentinel maps to a status code.
package apperror

import (
	"errors"
	"fmt"
)

// Sentinels. Match them with errors.Is; the HTTP layer turns each into one
// status code (see handler.writeError).
var (
	ErrNotFound     = errors.New("not found")
	ErrValidation   = errors.New("Validation Error")
	ErrConflict     = errors.New("conflict")
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
)

// AppError is a sentinel plus the message the client sees.
//
//	err := apperror.ValidationFailed("title", "Title is required")
//	errors.Is(err, apperror.ErrValidation) // true
//	err.Error()                            // "Title is required"
type AppError struct {
	Err     error  // sentinel
	Message string // human-readable message, sent to the client
	Field   string // optional: input field that caused the error
}

// Error returns the client-facing message, never the sentinel text.
func (e *AppError) Error() string {
	return e.Message
}

// Unwrap exposes the sentinel to errors.Is.
func (e *AppError) Unwrap() error {
	return e.Err
}

// NotFound reports a missing document looked up by the given key.
func NotFound(resource, key string) *AppError {
	return &AppError{
		Err:     ErrNotFound,
		Message: fmt.Sprintf("%s not found with id %s", resource, key),
	}
}

// NotFoundMessage is NotFound with a caller-supplied message.
func NotFoundMessage(message string) *AppError {
	return &AppError{
		Err:     ErrNotFound,
		Message: message,
	}
}

// ValidationFailed reports bad input. field names the offending JSON field
// and may be empty when the whole body is at fault.
func ValidationFailed(field, message string) *AppError {
	return &AppError{
		Err:     ErrValidation,
		Message: message,
		Field:   field,
	}
}

// Conflict reports a uniqueness violation.
func Conflict(message string) *AppError {
	return &AppError{
		Err:     ErrConflict,
		Message: message,
	}
}

// Unauthorized reports a request without a caller identity.
func Unauthorized(message string) *AppError {
	return &AppError{
		Err:     ErrUnauthorized,
		Message: message,
	}
}

// Forbidden returns an AppError indicating the caller lacks permission.
// HTTP handlers map this to 403 Forbidden.
func Forbidden(message string) *AppError {
	return &AppError{
		Err:     ErrForbidden,
		Message: message,
	}
}
