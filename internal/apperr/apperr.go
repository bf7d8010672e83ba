// Package apperr carries typed domain errors so HTTP status mapping
// switches on a kind instead of sniffing message substrings.
package apperr

import (
	"errors"
	"net/http"
)

type Kind int

const (
	Internal Kind = iota
	Validation
	Unauthorized
	Forbidden
	NotFound
	Conflict
)

type Error struct {
	Kind    Kind
	Message string
	// Code is an optional machine-readable tag such as EMAIL_EXISTS,
	// surfaced in the response envelope for programmatic handling.
	Code string
}

func (e *Error) Error() string { return e.Message }

func New(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Message: msg}
}

func WithCode(kind Kind, msg, code string) *Error {
	return &Error{Kind: kind, Message: msg, Code: code}
}

func Validationf(msg string) *Error   { return New(Validation, msg) }
func Unauthorizedf(msg string) *Error { return New(Unauthorized, msg) }
func Forbiddenf(msg string) *Error    { return New(Forbidden, msg) }
func NotFoundf(msg string) *Error     { return New(NotFound, msg) }
func Conflictf(msg string) *Error     { return New(Conflict, msg) }

// From extracts an *Error, wrapping unknown errors as Internal.
func From(err error) *Error {
	var ae *Error
	if errors.As(err, &ae) {
		return ae
	}
	return &Error{Kind: Internal, Message: "Internal server error"}
}

func (e *Error) HTTPStatus() int {
	switch e.Kind {
	case Validation:
		return http.StatusBadRequest
	case Unauthorized:
		return http.StatusUnauthorized
	case Forbidden:
		return http.StatusForbidden
	case NotFound:
		return http.StatusNotFound
	case Conflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
