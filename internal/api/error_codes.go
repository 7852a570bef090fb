package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/snowcap/emarsys-cli/internal/mapping"
)

// ErrorCode represents machine-readable error codes for scripted callers.
type ErrorCode string

const (
	// ErrBadRequest indicates a malformed request (HTTP 400).
	ErrBadRequest ErrorCode = "bad_request"
	// ErrUnauthorized indicates the WSSE credentials were rejected (HTTP 401).
	ErrUnauthorized ErrorCode = "unauthorized"
	// ErrForbidden indicates the API user lacks permission (HTTP 403).
	ErrForbidden ErrorCode = "forbidden"
	// ErrNotFound indicates the requested resource does not exist.
	ErrNotFound ErrorCode = "not_found"
	// ErrConflict indicates the resource already exists (reply code 2009).
	ErrConflict ErrorCode = "conflict"
	// ErrValidation indicates input validation failed.
	ErrValidation ErrorCode = "validation_failed"
	// ErrUnknownField indicates a field or choice name missing from the mapping.
	ErrUnknownField ErrorCode = "unknown_field"
	// ErrInvalidResponse indicates the reply was not a valid envelope.
	ErrInvalidResponse ErrorCode = "invalid_response"
	// ErrRateLimited indicates too many requests (HTTP 429).
	ErrRateLimited ErrorCode = "rate_limited"
	// ErrServerError indicates an internal server error (HTTP 5xx or reply code 1).
	ErrServerError ErrorCode = "server_error"
	// ErrConnection indicates the request never reached the API.
	ErrConnection ErrorCode = "connection_failed"
	// ErrTimeout indicates the request timed out.
	ErrTimeout ErrorCode = "timeout"
	// ErrCircuitOpen indicates the circuit breaker is open.
	ErrCircuitOpen ErrorCode = "circuit_open"
	// ErrUnknown indicates an unknown or unclassified error.
	ErrUnknown ErrorCode = "unknown"
)

// IsRetryable returns true if errors with this code may succeed on retry.
func (c ErrorCode) IsRetryable() bool {
	switch c {
	case ErrRateLimited, ErrServerError, ErrConnection, ErrTimeout, ErrCircuitOpen:
		return true
	default:
		return false
	}
}

// Suggestion returns a human-readable suggestion for resolving this error.
func (c ErrorCode) Suggestion() string {
	switch c {
	case ErrUnauthorized:
		return "Run 'emarsys auth login' and check the API username and secret"
	case ErrForbidden:
		return "Check the permissions of the API user"
	case ErrNotFound:
		return "Verify the id or key value exists"
	case ErrConflict:
		return "Use 'contacts update' or 'contacts upsert' for existing contacts"
	case ErrRateLimited:
		return "Wait a moment and retry"
	case ErrValidation, ErrBadRequest:
		return "Check the request parameters"
	case ErrUnknownField:
		return "Run 'emarsys fields list' or add the field with --fields-file"
	case ErrInvalidResponse:
		return "Check --base-url points at the Emarsys API"
	case ErrServerError:
		return "The server encountered an error; try again later"
	case ErrConnection:
		return "Check network connectivity and --base-url"
	case ErrTimeout:
		return "The request timed out; raise --timeout or retry"
	case ErrCircuitOpen:
		return "Too many recent failures; wait before retrying"
	default:
		return ""
	}
}

// ErrorCodeFromStatus maps an HTTP status code to an ErrorCode.
func ErrorCodeFromStatus(statusCode int) ErrorCode {
	switch statusCode {
	case 400:
		return ErrBadRequest
	case 401:
		return ErrUnauthorized
	case 403:
		return ErrForbidden
	case 404:
		return ErrNotFound
	case 409:
		return ErrConflict
	case 422:
		return ErrValidation
	case 429:
		return ErrRateLimited
	default:
		if statusCode >= 500 && statusCode < 600 {
			return ErrServerError
		}
		return ErrUnknown
	}
}

// ErrorCodeFromReply maps an Emarsys reply code to an ErrorCode. The second
// result is false for codes with no specific meaning.
func ErrorCodeFromReply(code ReplyCode) (ErrorCode, bool) {
	switch code {
	case ReplyContactNotFound:
		return ErrNotFound, true
	case ReplyContactAlreadyExists:
		return ErrConflict, true
	case ReplyInvalidKeyField, ReplyMissingKeyField, ReplyNonUniqueResult, ReplyInvalidData:
		return ErrValidation, true
	case ReplyInternalError:
		return ErrServerError, true
	default:
		return "", false
	}
}

// StructuredError provides machine-readable error information.
type StructuredError struct {
	Code          ErrorCode      `json:"code"`
	Message       string         `json:"message"`
	Retryable     bool           `json:"retryable"`
	Suggestion    string         `json:"suggestion,omitempty"`
	Context       map[string]any `json:"context,omitempty"`
	AllowedValues []string       `json:"allowed_values,omitempty"`
}

// Error implements the error interface.
func (e *StructuredError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// MarshalJSON implements custom JSON marshaling.
func (e *StructuredError) MarshalJSON() ([]byte, error) {
	type Alias StructuredError
	return json.Marshal((*Alias)(e))
}

// NewStructuredError creates a StructuredError from an ErrorCode and message.
func NewStructuredError(code ErrorCode, message string) *StructuredError {
	return &StructuredError{
		Code:       code,
		Message:    message,
		Retryable:  code.IsRetryable(),
		Suggestion: code.Suggestion(),
	}
}

// NewValidationError creates a StructuredError for input validation failures,
// including the list of allowed values.
func NewValidationError(field string, got string, allowed []string) *StructuredError {
	return &StructuredError{
		Code:          ErrValidation,
		Message:       fmt.Sprintf("invalid %s %q: must be one of %s", field, got, strings.Join(allowed, ", ")),
		Suggestion:    fmt.Sprintf("Use one of: %s", strings.Join(allowed, ", ")),
		AllowedValues: allowed,
		Context:       map[string]any{"field": field, "got": got},
	}
}

func structuredFromServerError(se *ServerError) *StructuredError {
	code := ErrConnection
	if se.StatusCode != 0 {
		code = ErrorCodeFromStatus(se.StatusCode)
	}
	if rc, ok := ErrorCodeFromReply(se.Code); ok {
		code = rc
	}
	if se.StatusCode == 0 && se.Code == 0 && se.Err == nil {
		code = ErrInvalidResponse
	}
	if isTimeout(se.Err) {
		code = ErrTimeout
	}

	ctx := map[string]any{}
	if se.StatusCode != 0 {
		ctx["status_code"] = se.StatusCode
	}
	if se.Code != 0 {
		ctx["reply_code"] = int(se.Code)
	}
	if len(ctx) == 0 {
		ctx = nil
	}
	return &StructuredError{
		Code:       code,
		Message:    se.Message,
		Retryable:  code.IsRetryable(),
		Suggestion: code.Suggestion(),
		Context:    ctx,
	}
}

func structuredFromClientError(ce *ClientError) *StructuredError {
	code := ErrValidation
	if rc, ok := ErrorCodeFromReply(ce.Code); ok {
		code = rc
	}
	var ctx map[string]any
	if ce.Code != 0 {
		ctx = map[string]any{"reply_code": int(ce.Code)}
	}
	return &StructuredError{
		Code:       code,
		Message:    ce.Message,
		Suggestion: code.Suggestion(),
		Context:    ctx,
	}
}

// StructuredErrorFromError converts any error to a StructuredError.
func StructuredErrorFromError(err error) *StructuredError {
	if err == nil {
		return nil
	}

	var se *StructuredError
	if errors.As(err, &se) {
		return se
	}

	var lookupErr *mapping.LookupError
	if errors.As(err, &lookupErr) {
		return NewStructuredError(ErrUnknownField, lookupErr.Error())
	}

	var cbErr *CircuitBreakerError
	if errors.As(err, &cbErr) {
		return NewStructuredError(ErrCircuitOpen, cbErr.Error())
	}

	var serverErr *ServerError
	if errors.As(err, &serverErr) {
		return structuredFromServerError(serverErr)
	}

	var clientErr *ClientError
	if errors.As(err, &clientErr) {
		if clientErr.Message == msgInvalidResultStructure || clientErr.Message == msgMaxDepth {
			return NewStructuredError(ErrInvalidResponse, clientErr.Message)
		}
		return structuredFromClientError(clientErr)
	}

	return &StructuredError{
		Code:    ErrUnknown,
		Message: err.Error(),
	}
}
