// Package errors provides the error taxonomy of the zooly relay.
// It includes structured error types, JSON response formatting, request ID
// tracking, and integrated logging with Uber's zap logger.
//
// The relay distinguishes four failure families:
//
//   - AuthenticationError: a webhook delivery failed signature verification.
//     The caller receives 400 and nothing is dispatched.
//   - CompletionProviderError: the completion call failed or produced nothing
//     usable. It is recovered locally by sending the persona's fallback text.
//   - ReplyDeliveryError: the reply call failed. The webhook has already been
//     acknowledged, so this is only ever logged.
//   - ConfigurationError: a required setting is missing at startup. Fatal.
//
// Basic usage:
//
//	errors.WriteError(w, errors.NewAuthenticationError(requestID, "invalid signature", nil))
package errors

import (
	"encoding/json"
	"fmt"
	"net/http"

	"go.uber.org/zap"
)

// DefaultLogger is the default zap logger instance used throughout the package.
// It is initialized to a production configuration but can be overridden using SetLogger.
var DefaultLogger *zap.Logger

func init() {
	var err error
	DefaultLogger, err = zap.NewProduction()
	if err != nil {
		DefaultLogger = zap.NewNop()
	}
}

// SetLogger allows setting a custom zap logger instance.
// If nil is provided, the function will do nothing to prevent
// accidentally disabling logging.
func SetLogger(logger *zap.Logger) {
	if logger != nil {
		DefaultLogger = logger
	}
}

// ErrorType represents the category of a relay error.
type ErrorType string

const (
	// AuthenticationError represents a webhook signature mismatch
	AuthenticationError ErrorType = "authentication_error"

	// CompletionProviderError represents a failed or unusable completion call
	CompletionProviderError ErrorType = "completion_provider_error"

	// ReplyDeliveryError represents a failed reply call to the platform
	ReplyDeliveryError ErrorType = "reply_delivery_error"

	// ConfigurationError represents a missing or invalid startup setting
	ConfigurationError ErrorType = "configuration_error"

	// BadRequestError represents a webhook body that could not be decoded
	BadRequestError ErrorType = "bad_request"

	// PayloadTooLargeError represents a webhook body over the size limit
	PayloadTooLargeError ErrorType = "payload_too_large"

	// NotFoundError represents resource not found errors
	NotFoundError ErrorType = "not_found"

	// InternalError represents unexpected internal server errors
	InternalError ErrorType = "internal_error"
)

// RelayError is the error type shared by every component. It is serialized
// to JSON for HTTP responses while keeping the wrapped cause for logs.
type RelayError struct {
	// Type categorizes the error for client handling
	Type ErrorType `json:"type"`

	// Message is a human-readable error description
	Message string `json:"message"`

	// Code is the HTTP status code (not exposed in JSON)
	Code int `json:"-"`

	// RequestID links the error to a specific request
	RequestID string `json:"request_id"`

	// Details contains additional error context
	Details map[string]interface{} `json:"details,omitempty"`

	// err is the underlying error (not exposed in JSON)
	err error
}

// Error implements the error interface. It returns a string that
// combines the error type, message, and underlying error (if any).
func (e *RelayError) Error() string {
	if e.err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Type, e.Message, e.err)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap returns the underlying error, implementing the unwrap
// interface for error chains.
func (e *RelayError) Unwrap() error {
	return e.err
}

// Is implements error matching for errors.Is, allowing type-based
// error matching while ignoring other fields.
func (e *RelayError) Is(target error) bool {
	t, ok := target.(*RelayError)
	if !ok {
		return false
	}
	return e.Type == t.Type
}

// WithRequestID returns a copy of e tagged with the given request ID.
func (e *RelayError) WithRequestID(requestID string) *RelayError {
	c := *e
	c.RequestID = requestID
	return &c
}

// WriteError writes err as an ErrorResponse with err.Code as the status.
func WriteError(w http.ResponseWriter, err *RelayError) {
	code := err.Code
	if code == 0 {
		code = http.StatusInternalServerError
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(err.Response())
}

// ErrorWithType is a drop-in replacement for http.Error that writes a
// RelayError of the given type. The request ID is taken from the response
// headers set by the request ID middleware.
func ErrorWithType(w http.ResponseWriter, message string, errType ErrorType, code int) {
	WriteError(w, &RelayError{
		Type:      errType,
		Message:   message,
		Code:      code,
		RequestID: w.Header().Get("X-Request-ID"),
	})
}
