package api

import (
	"errors"
	"fmt"

	"github.com/snowcap/emarsys-cli/internal/mapping"
)

// ClientError reports misuse on the caller's side: an unknown field or choice,
// an invalid reply envelope, an over-deep JSON body, a missing data key, or
// invalid arguments. Code carries the reply code when one is known; Err is
// the underlying *mapping.LookupError for mapping failures.
type ClientError struct {
	Message string
	Code    ReplyCode
	Err     error
}

func (e *ClientError) Error() string {
	return e.Message
}

func (e *ClientError) Unwrap() error {
	return e.Err
}

// ServerError reports a failure on the remote side or on the wire: HTTP status
// >= 400, connection failures and undecodable bodies.
type ServerError struct {
	Message    string
	Code       ReplyCode
	StatusCode int
	Err        error
}

func (e *ServerError) Error() string {
	switch {
	case e.Code != 0 && e.StatusCode != 0:
		return fmt.Sprintf("%s (reply code %d, HTTP %d)", e.Message, e.Code, e.StatusCode)
	case e.StatusCode != 0:
		return fmt.Sprintf("%s (HTTP %d)", e.Message, e.StatusCode)
	default:
		return e.Message
	}
}

func (e *ServerError) Unwrap() error {
	return e.Err
}

// CircuitBreakerError indicates the circuit breaker is open.
type CircuitBreakerError struct{}

func (e *CircuitBreakerError) Error() string {
	return "circuit breaker is open, too many recent connection failures"
}

func newClientError(format string, args ...any) *ClientError {
	return &ClientError{Message: fmt.Sprintf(format, args...)}
}

// mappingError reports a failed name lookup as a *ClientError that still
// matches the mapping.Err* kinds.
func mappingError(err error) error {
	var le *mapping.LookupError
	if err == nil || !errors.As(err, &le) {
		return err
	}
	return &ClientError{Message: err.Error(), Err: err}
}

// IsClientError checks if the error is a *ClientError. Lookup errors returned
// by the mapping store directly count as client errors too.
func IsClientError(err error) bool {
	var e *ClientError
	if errors.As(err, &e) {
		return true
	}
	var le *mapping.LookupError
	return errors.As(err, &le)
}

// IsServerError checks if the error is a *ServerError.
func IsServerError(err error) bool {
	var e *ServerError
	return errors.As(err, &e)
}

// IsCircuitBreakerError checks if the error is a circuit breaker error.
func IsCircuitBreakerError(err error) bool {
	var e *CircuitBreakerError
	return errors.As(err, &e)
}

// ReplyCodeOf returns the Emarsys reply code carried by err, if any.
func ReplyCodeOf(err error) (ReplyCode, bool) {
	var se *ServerError
	if errors.As(err, &se) && se.Code != 0 {
		return se.Code, true
	}
	var ce *ClientError
	if errors.As(err, &ce) && ce.Code != 0 {
		return ce.Code, true
	}
	return 0, false
}

// IsContactNotFound reports whether err carries reply code 2008.
func IsContactNotFound(err error) bool {
	code, ok := ReplyCodeOf(err)
	return ok && code == ReplyContactNotFound
}

// IsNotFoundError checks if the error indicates a resource was not found,
// either through the reply code or an HTTP 404.
func IsNotFoundError(err error) bool {
	if IsContactNotFound(err) {
		return true
	}
	var se *ServerError
	return errors.As(err, &se) && se.StatusCode == 404
}
