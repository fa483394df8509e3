// Package apierror defines the client-facing error taxonomy of the service.
// Every error a handler may surface verbatim is an *Error; anything else is
// treated as an internal failure.
package apierror

import (
	"errors"
	"net/http"
)

// Kind classifies an *Error.
type Kind int

const (
	KindNotFound Kind = iota + 1
	KindBadRequest
	KindUnauthorized
	KindConflict
)

var (
	ErrNotFound     = errors.New("not found")
	ErrBadRequest   = errors.New("bad request")
	ErrUnauthorized = errors.New("unauthorized")
	ErrConflict     = errors.New("conflict")
)

// Error is a terminal, non-retriable failure reported to the client as
// {"error": {"message": ..., "values": [...]}}.
type Error struct {
	Kind    Kind
	Message string
	Values  []string
}

func (e *Error) Error() string {
	return e.Message
}

// Unwrap lets errors.Is match the sentinel of the error's kind.
func (e *Error) Unwrap() error {
	switch e.Kind {
	case KindNotFound:
		return ErrNotFound
	case KindBadRequest:
		return ErrBadRequest
	case KindUnauthorized:
		return ErrUnauthorized
	case KindConflict:
		return ErrConflict
	}

	return nil
}

// StatusCode maps the kind to its HTTP status.
func (e *Error) StatusCode() int {
	switch e.Kind {
	case KindNotFound:
		return http.StatusNotFound
	case KindBadRequest:
		return http.StatusBadRequest
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindConflict:
		return http.StatusConflict
	}

	return http.StatusInternalServerError
}

func NotFound(message string, values ...string) *Error {
	return &Error{Kind: KindNotFound, Message: message, Values: values}
}

func BadRequest(message string) *Error {
	return &Error{Kind: KindBadRequest, Message: message}
}

func Unauthorized(message string) *Error {
	return &Error{Kind: KindUnauthorized, Message: message}
}

func Conflict(message string, values ...string) *Error {
	return &Error{Kind: KindConflict, Message: message, Values: values}
}

// As returns the *Error carried by err, if any.
func As(err error) (*Error, bool) {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr, true
	}

	return nil, false
}
