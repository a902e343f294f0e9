package errors

import (
	"net/http"
)

// Sentinels for errors.Is. Matching compares only the Type field.
var (
	ErrAuthentication     = &RelayError{Type: AuthenticationError}
	ErrCompletionProvider = &RelayError{Type: CompletionProviderError}
	ErrReplyDelivery      = &RelayError{Type: ReplyDeliveryError}
	ErrConfiguration      = &RelayError{Type: ConfigurationError}
	ErrBadRequest         = &RelayError{Type: BadRequestError}
)

// NewAuthenticationError reports a webhook delivery whose signature could not
// be verified. The message must stay generic: callers see it verbatim.
//
// Example:
//
//	err := NewAuthenticationError("req_123", "invalid signature", nil)
func NewAuthenticationError(requestID, message string, err error) *RelayError {
	return &RelayError{
		Type:      AuthenticationError,
		Message:   message,
		Code:      http.StatusBadRequest,
		RequestID: requestID,
		err:       err,
	}
}

// NewBadRequestError reports an authenticated body that could not be decoded.
func NewBadRequestError(requestID, message string, details map[string]interface{}, err error) *RelayError {
	return &RelayError{
		Type:      BadRequestError,
		Message:   message,
		Code:      http.StatusBadRequest,
		RequestID: requestID,
		Details:   details,
		err:       err,
	}
}

// NewPayloadTooLargeError reports a webhook body above the configured limit.
func NewPayloadTooLargeError(requestID string, limit int64) *RelayError {
	return &RelayError{
		Type:      PayloadTooLargeError,
		Message:   "Payload too large",
		Code:      http.StatusRequestEntityTooLarge,
		RequestID: requestID,
		Details: map[string]interface{}{
			"max_bytes": limit,
		},
	}
}

// NewCompletionProviderError reports a completion call that failed or
// returned no usable content. It never reaches the webhook caller; the
// responder logs it and sends the fallback reply instead.
//
// Example:
//
//	err := NewCompletionProviderError("req_123", "empty completion", nil)
func NewCompletionProviderError(requestID, message string, err error) *RelayError {
	return &RelayError{
		Type:      CompletionProviderError,
		Message:   message,
		Code:      http.StatusBadGateway,
		RequestID: requestID,
		err:       err,
	}
}

// NewReplyDeliveryError reports a reply call that the platform rejected or
// that never completed.
func NewReplyDeliveryError(requestID string, err error) *RelayError {
	return &RelayError{
		Type:      ReplyDeliveryError,
		Message:   "Failed to deliver reply",
		Code:      http.StatusBadGateway,
		RequestID: requestID,
		err:       err,
	}
}

// NewConfigurationError reports a setting that prevents startup.
//
// Example:
//
//	err := NewConfigurationError("missing channel secret", nil, nil)
func NewConfigurationError(message string, details map[string]interface{}, err error) *RelayError {
	return &RelayError{
		Type:    ConfigurationError,
		Message: message,
		Code:    http.StatusInternalServerError,
		Details: details,
		err:     err,
	}
}

// NewNotFoundError reports an unknown route.
func NewNotFoundError(requestID, path string) *RelayError {
	return &RelayError{
		Type:      NotFoundError,
		Message:   "Resource not found",
		Code:      http.StatusNotFound,
		RequestID: requestID,
		Details: map[string]interface{}{
			"path": path,
		},
	}
}

// NewInternalError creates an internal server error with appropriate defaults.
// Use this for unexpected errors that are not covered by other error types.
func NewInternalError(requestID string, err error) *RelayError {
	return &RelayError{
		Type:      InternalError,
		Message:   "An unexpected error occurred",
		Code:      http.StatusInternalServerError,
		RequestID: requestID,
		err:       err,
	}
}
