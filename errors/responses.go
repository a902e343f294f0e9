package errors

import (
	"errors"
)

// ErrorResponse is the JSON body written for a RelayError. The status code
// and the wrapped cause stay server side.
type ErrorResponse struct {
	Type      ErrorType              `json:"type"`
	Message   string                 `json:"message"`
	RequestID string                 `json:"request_id"`
	Details   map[string]interface{} `json:"details,omitempty"`
}

// Response returns the client-facing view of e.
func (e *RelayError) Response() ErrorResponse {
	return ErrorResponse{
		Type:      e.Type,
		Message:   e.Message,
		RequestID: e.RequestID,
		Details:   e.Details,
	}
}

// As is a wrapper around errors.As for better error type assertion
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}

// Is is a wrapper around errors.Is.
func Is(err, target error) bool {
	return errors.Is(err, target)
}
