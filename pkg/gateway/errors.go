package gateway

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/portway-io/portway/pkg/environment"
	"github.com/portway-io/portway/pkg/odata"
	"github.com/portway-io/portway/pkg/token"
)

// Kind classifies a request failure. Handlers return kinds; the dispatcher
// maps them onto HTTP at the edge and nowhere else.
type Kind string

const (
	KindBadRequest       Kind = "bad_request"
	KindUnauthenticated  Kind = "unauthenticated"
	KindForbidden        Kind = "forbidden"
	KindNotFound         Kind = "not_found"
	KindMethodNotAllowed Kind = "method_not_allowed"
	KindConflict         Kind = "conflict"
	KindUnprocessable    Kind = "unprocessable_entity"
	KindPayloadTooLarge  Kind = "payload_too_large"
	KindGatewayTimeout   Kind = "gateway_timeout"
	KindBadGateway       Kind = "bad_gateway"
	KindUnavailable      Kind = "unavailable"
	KindInternal         Kind = "internal"
)

// HTTPStatus returns the status code a kind maps to.
func (k Kind) HTTPStatus() int {
	switch k {
	case KindBadRequest:
		return http.StatusBadRequest
	case KindUnauthenticated:
		return http.StatusUnauthorized
	case KindForbidden:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	case KindMethodNotAllowed:
		return http.StatusMethodNotAllowed
	case KindConflict:
		return http.StatusConflict
	case KindUnprocessable:
		return http.StatusUnprocessableEntity
	case KindPayloadTooLarge:
		return http.StatusRequestEntityTooLarge
	case KindGatewayTimeout:
		return http.StatusGatewayTimeout
	case KindBadGateway:
		return http.StatusBadGateway
	case KindUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// Error is a classified request failure. Message and Details are safe to
// show to the client; the wrapped cause is for logs only.
type Error struct {
	kind    Kind
	message string
	details any
	cause   error
}

// NewError creates an Error of the given kind.
func NewError(kind Kind, format string, args ...any) *Error {
	return &Error{kind: kind, message: fmt.Sprintf(format, args...)}
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.kind, e.message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.kind, e.message)
}

func (e *Error) Unwrap() error { return e.cause }

// Kind returns the failure classification.
func (e *Error) Kind() Kind { return e.kind }

// Message returns the client-visible message.
func (e *Error) Message() string { return e.message }

// Details returns the client-visible details, if any. Either a string or
// an array of structured entries.
func (e *Error) Details() any { return e.details }

// WithDetails attaches client-visible details and returns the error.
func (e *Error) WithDetails(details any) *Error {
	e.details = details
	return e
}

// WithCause attaches the underlying error for logging and returns the error.
func (e *Error) WithCause(err error) *Error {
	e.cause = err
	return e
}

// Constructors for the common kinds. Messages are client-visible; keep
// them free of connection strings, SQL text, and internal paths.

func BadRequest(format string, args ...any) *Error {
	return NewError(KindBadRequest, format, args...)
}

func Unauthenticated(format string, args ...any) *Error {
	return NewError(KindUnauthenticated, format, args...)
}

func Forbidden(format string, args ...any) *Error {
	return NewError(KindForbidden, format, args...)
}

func NotFound(format string, args ...any) *Error {
	return NewError(KindNotFound, format, args...)
}

func MethodNotAllowed(format string, args ...any) *Error {
	return NewError(KindMethodNotAllowed, format, args...)
}

func Conflict(format string, args ...any) *Error {
	return NewError(KindConflict, format, args...)
}

func Unprocessable(format string, args ...any) *Error {
	return NewError(KindUnprocessable, format, args...)
}

func PayloadTooLarge(format string, args ...any) *Error {
	return NewError(KindPayloadTooLarge, format, args...)
}

func GatewayTimeout(format string, args ...any) *Error {
	return NewError(KindGatewayTimeout, format, args...)
}

func BadGateway(format string, args ...any) *Error {
	return NewError(KindBadGateway, format, args...)
}

func Unavailable(format string, args ...any) *Error {
	return NewError(KindUnavailable, format, args...)
}

func Internal(err error) *Error {
	return NewError(KindInternal, "An unexpected error occurred").WithCause(err)
}

// Classify converts any error into a *Error. Already-classified errors pass
// through; known sentinels from the core packages get their natural kind;
// everything else is Internal with the cause preserved for logs.
func Classify(err error) *Error {
	var ge *Error
	if errors.As(err, &ge) {
		return ge
	}

	var syntaxErr *odata.SyntaxError
	if errors.As(err, &syntaxErr) {
		return BadRequest("%s", syntaxErr.Error()).WithCause(err)
	}
	var fieldErr *odata.UnknownFieldError
	if errors.As(err, &fieldErr) {
		return BadRequest("%s", fieldErr.Error()).WithCause(err)
	}

	switch {
	case errors.Is(err, token.ErrInvalidToken):
		return Unauthenticated("Invalid or expired token").WithCause(err)
	case errors.Is(err, token.ErrTokenNotFound):
		return NotFound("Token not found").WithCause(err)
	case errors.Is(err, environment.ErrUnknownEnvironment):
		return Forbidden("Unknown environment").WithCause(err)
	case errors.Is(err, environment.ErrPoolExhausted):
		return Unavailable("Connection pool exhausted").WithCause(err)
	case errors.Is(err, context.DeadlineExceeded):
		return GatewayTimeout("Request deadline exceeded").WithCause(err)
	default:
		return Internal(err)
	}
}
