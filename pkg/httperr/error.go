package httperr

import (
	"fmt"
	"net/http"
)

// Error is an error carrying an HTTP status code, a human readable detail
// message and optional response headers and extra payload.
type Error struct {
	// StatusCode is the HTTP status code of the resulting response.
	StatusCode int

	// Detail is the message placed in the response body.
	Detail string

	// Headers are added to the error response, if set.
	Headers http.Header

	// Extra is an arbitrary value serialized into the response body
	// under the "extra" key.
	Extra any

	// Wrapped is the underlying error, if any.
	Wrapped error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%d: %s", e.StatusCode, e.Detail)
	}
	return fmt.Sprintf("%d: %s", e.StatusCode, http.StatusText(e.StatusCode))
}

// Unwrap returns the wrapped error for errors.Is/As support.
func (e *Error) Unwrap() error {
	return e.Wrapped
}

// Wrap attaches an underlying error.
func (e *Error) Wrap(err error) *Error {
	e.Wrapped = err
	return e
}

// WithExtra attaches an extra payload to the error response.
func (e *Error) WithExtra(extra any) *Error {
	e.Extra = extra
	return e
}

// WithHeader adds a response header to the error.
func (e *Error) WithHeader(key, value string) *Error {
	if e.Headers == nil {
		e.Headers = http.Header{}
	}
	e.Headers.Set(key, value)
	return e
}

// New creates an Error with the given status code and detail message.
func New(statusCode int, format string, args ...any) *Error {
	return &Error{
		StatusCode: statusCode,
		Detail:     fmt.Sprintf(format, args...),
	}
}

// BadRequest creates a 400 error.
func BadRequest(format string, args ...any) *Error {
	return New(http.StatusBadRequest, format, args...)
}

// Unauthorized creates a 401 error.
func Unauthorized(format string, args ...any) *Error {
	return New(http.StatusUnauthorized, format, args...)
}

// Forbidden creates a 403 error.
func Forbidden(format string, args ...any) *Error {
	return New(http.StatusForbidden, format, args...)
}

// NotFound creates a 404 error.
func NotFound(format string, args ...any) *Error {
	return New(http.StatusNotFound, format, args...)
}

// MethodNotAllowed creates a 405 error.
func MethodNotAllowed(format string, args ...any) *Error {
	return New(http.StatusMethodNotAllowed, format, args...)
}

// Internal creates a 500 error.
func Internal(format string, args ...any) *Error {
	return New(http.StatusInternalServerError, format, args...)
}

// ServiceUnavailable creates a 503 error.
func ServiceUnavailable(format string, args ...any) *Error {
	return New(http.StatusServiceUnavailable, format, args...)
}

// ConfigError is a fatal configuration error raised while the application is
// assembled, e.g. an invalid router registration or a bad session secret.
// It is never produced during request handling.
type ConfigError struct {
	Message string
	Wrapped error
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	return "httperr: improperly configured: " + e.Message
}

// Unwrap returns the wrapped error for errors.Is/As support.
func (e *ConfigError) Unwrap() error {
	return e.Wrapped
}

// Config creates a ConfigError with a formatted message.
func Config(format string, args ...any) *ConfigError {
	return &ConfigError{Message: fmt.Sprintf(format, args...)}
}

// ProtocolError is a typed error for transport protocol violations, e.g. a
// malformed handler signature or a WebSocket operation on a closed
// connection.
type ProtocolError struct {
	Op      string
	Message string
	Wrapped error
}

// Error implements the error interface.
func (e *ProtocolError) Error() string {
	if e.Op != "" {
		return fmt.Sprintf("httperr: protocol error: %s: %s", e.Op, e.Message)
	}
	return "httperr: protocol error: " + e.Message
}

// Unwrap returns the wrapped error for errors.Is/As support.
func (e *ProtocolError) Unwrap() error {
	return e.Wrapped
}
