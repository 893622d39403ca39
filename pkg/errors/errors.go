// Package errors classifies failures so transports can map them without
// inspecting messages. Message is safe to show to clients; Err is not.
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorType is the failure class of an AppError
type ErrorType string

const (
	ErrorTypeNotFound   ErrorType = "NOT_FOUND"
	ErrorTypeValidation ErrorType = "VALIDATION"
	ErrorTypeInternal   ErrorType = "INTERNAL"

	// ErrorTypeExternal is an upstream (geocoder, Overpass, RxTerms) that
	// answered badly or not at all
	ErrorTypeExternal ErrorType = "EXTERNAL"

	// ErrorTypeUnavailable is a capability that is missing or switched off:
	// no positioning support, an open circuit, analytics disabled
	ErrorTypeUnavailable ErrorType = "UNAVAILABLE"

	// ErrorTypeCanceled is a request superseded by a newer one on the same
	// session
	ErrorTypeCanceled ErrorType = "CANCELED"
)

var statusByType = map[ErrorType]int{
	ErrorTypeNotFound:    http.StatusNotFound,
	ErrorTypeValidation:  http.StatusBadRequest,
	ErrorTypeCanceled:    http.StatusConflict,
	ErrorTypeExternal:    http.StatusBadGateway,
	ErrorTypeUnavailable: http.StatusServiceUnavailable,
	ErrorTypeInternal:    http.StatusInternalServerError,
}

type AppError struct {
	Type    ErrorType
	Message string
	Err     error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// HTTPStatus is the response status for the error's type
func (e *AppError) HTTPStatus() int {
	if code, ok := statusByType[e.Type]; ok {
		return code
	}
	return http.StatusInternalServerError
}

func newError(t ErrorType, message string, err error) *AppError {
	return &AppError{Type: t, Message: message, Err: err}
}

func NewNotFoundError(message string) *AppError {
	return newError(ErrorTypeNotFound, message, nil)
}

func NewValidationError(message string) *AppError {
	return newError(ErrorTypeValidation, message, nil)
}

func NewCanceledError(message string) *AppError {
	return newError(ErrorTypeCanceled, message, nil)
}

func NewInternalError(message string, err error) *AppError {
	return newError(ErrorTypeInternal, message, err)
}

func NewExternalError(message string, err error) *AppError {
	return newError(ErrorTypeExternal, message, err)
}

func NewUnavailableError(message string, err error) *AppError {
	return newError(ErrorTypeUnavailable, message, err)
}

// As returns the first AppError in err's chain
func As(err error) (*AppError, bool) {
	var appErr *AppError
	ok := errors.As(err, &appErr)
	return appErr, ok
}

// IsType reports whether the first AppError in err's chain has type t
func IsType(err error, t ErrorType) bool {
	appErr, ok := As(err)
	return ok && appErr.Type == t
}
