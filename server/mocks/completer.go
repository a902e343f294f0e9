package mocks

import (
	"context"
	"sync"

	"github.com/teilomillet/zooly/server/processing"
)

// MockCompleter implements processing.Completer for tests. Every request is
// recorded so tests can assert on exactly what was sent.
//
// Example usage:
//
//	completer := NewMockCompleter(func(ctx context.Context, req processing.CompletionRequest) (string, error) {
//	    return "mocked response", nil
//	})
type MockCompleter struct {
	CompleteFunc func(context.Context, processing.CompletionRequest) (string, error)

	mu    sync.Mutex
	calls []processing.CompletionRequest
}

var _ processing.Completer = (*MockCompleter)(nil)

// NewMockCompleter creates a MockCompleter. If completeFunc is nil, Complete
// returns an empty string with no error.
func NewMockCompleter(completeFunc func(context.Context, processing.CompletionRequest) (string, error)) *MockCompleter {
	return &MockCompleter{CompleteFunc: completeFunc}
}

// Complete records req and delegates to CompleteFunc.
func (m *MockCompleter) Complete(ctx context.Context, req processing.CompletionRequest) (string, error) {
	m.mu.Lock()
	m.calls = append(m.calls, req)
	m.mu.Unlock()

	if m.CompleteFunc != nil {
		return m.CompleteFunc(ctx, req)
	}
	return "", nil
}

// Calls returns a copy of the recorded requests.
func (m *MockCompleter) Calls() []processing.CompletionRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]processing.CompletionRequest(nil), m.calls...)
}
