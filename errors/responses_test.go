package errors

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestWriteError(t *testing.T) {
	tests := []struct {
		name           string
		err            *RelayError
		expectedCode   int
		expectedType   ErrorType
		expectedFields []string
	}{
		{
			name: "relay error",
			err: &RelayError{
				Type:      AuthenticationError,
				Message:   "invalid signature",
				Code:      http.StatusBadRequest,
				RequestID: "test-id",
			},
			expectedCode: http.StatusBadRequest,
			expectedType: AuthenticationError,
			expectedFields: []string{"type", "message", "request_id"},
		},
		{
			name: "error with details",
			err: &RelayError{
				Type:      BadRequestError,
				Message:   "invalid payload",
				Code:      http.StatusBadRequest,
				RequestID: "test-id",
				Details: map[string]interface{}{
					"field": "events",
					"error": "must be an array",
				},
			},
			expectedCode: http.StatusBadRequest,
			expectedType: BadRequestError,
			expectedFields: []string{"type", "message", "request_id", "details"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := httptest.NewRecorder()

			WriteError(rr, tt.err)

			if rr.Code != tt.expectedCode {
				t.Errorf("WriteError() status = %v, want %v", rr.Code, tt.expectedCode)
			}

			contentType := rr.Header().Get("Content-Type")
			if contentType != "application/json" {
				t.Errorf("WriteError() content-type = %v, want application/json", contentType)
			}

			var response map[string]interface{}
			if err := json.NewDecoder(rr.Body).Decode(&response); err != nil {
				t.Fatalf("Failed to decode response body: %v", err)
			}

			if errorType, ok := response["type"].(string); !ok || ErrorType(errorType) != tt.expectedType {
				t.Errorf("WriteError() error type = %v, want %v", errorType, tt.expectedType)
			}

			for _, field := range tt.expectedFields {
				if _, exists := response[field]; !exists {
					t.Errorf("WriteError() missing expected field: %s", field)
				}
			}
		})
	}
}

func TestErrorWithType(t *testing.T) {
	rr := httptest.NewRecorder()
	rr.Header().Set("X-Request-ID", "req-9")

	ErrorWithType(rr, "Method not allowed", BadRequestError, http.StatusMethodNotAllowed)

	if rr.Code != http.StatusMethodNotAllowed {
		t.Errorf("status = %v, want %v", rr.Code, http.StatusMethodNotAllowed)
	}
	var resp ErrorResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Type != BadRequestError || resp.RequestID != "req-9" {
		t.Errorf("unexpected response: %+v", resp)
	}
}

func TestWriteErrorHidesCause(t *testing.T) {
	rr := httptest.NewRecorder()
	err := NewReplyDeliveryError("req-3", errors.New("token abc123 rejected"))

	WriteError(rr, err)

	if rr.Code != http.StatusBadGateway {
		t.Errorf("status = %v, want %v", rr.Code, http.StatusBadGateway)
	}
	body := rr.Body.String()
	if strings.Contains(body, "abc123") || strings.Contains(body, "\"code\"") {
		t.Errorf("response leaked server-side fields: %s", body)
	}
	var resp ErrorResponse
	if decodeErr := json.Unmarshal([]byte(body), &resp); decodeErr != nil {
		t.Fatalf("decode: %v", decodeErr)
	}
	if resp.Type != ReplyDeliveryError || resp.Message != "Failed to deliver reply" || resp.RequestID != "req-3" || resp.Details != nil {
		t.Errorf("unexpected response: %+v", resp)
	}
}
