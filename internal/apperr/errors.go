package apperr

import (
	"errors"
	"net/http"
)

// Kind classifies a failure for the HTTP boundary.
type Kind string

const (
	KindAuthentication  Kind = "AUTHENTICATION"
	KindAuthorization   Kind = "AUTHORIZATION"
	KindValidation      Kind = "VALIDATION"
	KindNotFound        Kind = "NOT_FOUND"
	KindExternalService Kind = "EXTERNAL_SERVICE"
	KindInternal        Kind = "INTERNAL"
)

// Error is the domain error type shared by every core operation.
type Error struct {
	Kind    Kind
	Message string // client-facing reason
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is matches by kind so callers can write errors.Is(err, apperr.ErrValidation).
func (e *Error) Is(target error) bool {
	var t *Error
	if errors.As(target, &t) {
		return e.Kind == t.Kind
	}
	return false
}

var (
	ErrAuthentication  = &Error{Kind: KindAuthentication, Message: "unauthenticated"}
	ErrAuthorization   = &Error{Kind: KindAuthorization, Message: "forbidden"}
	ErrValidation      = &Error{Kind: KindValidation, Message: "invalid request"}
	ErrNotFound        = &Error{Kind: KindNotFound, Message: "not found"}
	ErrExternalService = &Error{Kind: KindExternalService, Message: "external service failure"}
)

func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

func Wrap(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

func Validation(message string) *Error {
	return New(KindValidation, message)
}

func NotFound(message string) *Error {
	return New(KindNotFound, message)
}

// Forbidden never names the missing permission.
func Forbidden() *Error {
	return New(KindAuthorization, "forbidden")
}

func Unauthenticated() *Error {
	return New(KindAuthentication, "unauthenticated")
}

func External(message string, cause error) *Error {
	return Wrap(KindExternalService, message, cause)
}

// KindOf reports the kind of err, or KindInternal for foreign errors.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// HTTPStatus maps err onto a stable status code.
func HTTPStatus(err error) int {
	switch KindOf(err) {
	case KindAuthentication:
		return http.StatusUnauthorized
	case KindAuthorization:
		return http.StatusForbidden
	case KindValidation:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindExternalService:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// PublicMessage is the text safe to show to clients. Causes are never exposed.
func PublicMessage(err error) string {
	var e *Error
	if !errors.As(err, &e) {
		return http.StatusText(http.StatusInternalServerError)
	}
	switch e.Kind {
	case KindAuthorization:
		return "forbidden"
	case KindAuthentication:
		return "unauthenticated"
	}
	return e.Message
}
