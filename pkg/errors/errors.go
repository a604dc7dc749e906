package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrorKind classifies an application error for the HTTP boundary
type ErrorKind int

// AppError represents an application error
type AppError struct {
	Kind    ErrorKind `json:"kind"`
	Message string    `json:"message"`
	// Status is the upstream HTTP status for ErrUpstream errors, zero when unknown.
	Status    int   `json:"status,omitempty"`
	Retryable bool  `json:"retryable,omitempty"`
	Err       error `json:"-"`
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

// Common error kinds
const (
	ErrNotFound ErrorKind = iota + 1000
	ErrBadRequest
	ErrUpstream
	ErrUnauthorized
	ErrForbidden
	ErrInternal
	ErrConflict
)

func NotFound(resource string, err error) *AppError {
	return &AppError{
		Kind:    ErrNotFound,
		Message: fmt.Sprintf("%s not found", resource),
		Err:     err,
	}
}

func BadRequest(message string, err error) *AppError {
	return &AppError{
		Kind:    ErrBadRequest,
		Message: message,
		Err:     err,
	}
}

// Upstream reports a failed call to an external system. status is the
// upstream HTTP status, or zero for transport failures.
func Upstream(message string, status int, err error) *AppError {
	return &AppError{
		Kind:    ErrUpstream,
		Message: message,
		Status:  status,
		Err:     err,
	}
}

func Conflict(message string, err error) *AppError {
	return &AppError{
		Kind:    ErrConflict,
		Message: message,
		Err:     err,
	}
}

func Internal(err error) *AppError {
	return &AppError{
		Kind:    ErrInternal,
		Message: "internal server error",
		Err:     err,
	}
}

func Unauthorized(err error) *AppError {
	return &AppError{
		Kind:    ErrUnauthorized,
		Message: "unauthorized",
		Err:     err,
	}
}

func Forbidden(err error) *AppError {
	return &AppError{
		Kind:    ErrForbidden,
		Message: "forbidden",
		Err:     err,
	}
}

// AsApp extracts the first AppError in err's chain.
func AsApp(err error) (*AppError, bool) {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// IsKind reports whether err carries an AppError of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	appErr, ok := AsApp(err)
	return ok && appErr.Kind == kind
}
