package services

import (
	"net/http"

	"github.com/pkg/errors"
)

// ServiceError carries the HTTP status a handler should answer with.
// Fields holds per-field validation messages keyed by JSON name.
type ServiceError struct {
	Status  int
	Message string
	Fields  map[string]string
}

func (e ServiceError) Error() string {
	return e.Message
}

func ErrNotFound(msg string) error {
	return ServiceError{Status: http.StatusNotFound, Message: msg}
}

func ErrBadRequest(msg string) error {
	return ServiceError{Status: http.StatusBadRequest, Message: msg}
}

func ErrForbidden(msg string) error {
	return ServiceError{Status: http.StatusForbidden, Message: msg}
}

func ErrUnauthorized(msg string) error {
	return ServiceError{Status: http.StatusUnauthorized, Message: msg}
}

func ErrConflict(msg string) error {
	return ServiceError{Status: http.StatusConflict, Message: msg}
}

func ErrTooManyRequests(msg string) error {
	return ServiceError{Status: http.StatusTooManyRequests, Message: msg}
}

func ErrValidation(fields map[string]string) error {
	return ServiceError{Status: http.StatusBadRequest, Message: "validation failed", Fields: fields}
}

func WrapError(err error, msg string) error {
	return errors.Wrap(err, msg)
}

// AsServiceError unwraps err looking for a ServiceError.
func AsServiceError(err error) (ServiceError, bool) {
	var svcErr ServiceError
	if errors.As(err, &svcErr) {
		return svcErr, true
	}
	return ServiceError{}, false
}
