package mocks

import (
	"context"
	"sync"

	"github.com/teilomillet/zooly/server/processing"
)

// Reply is one recorded reply call.
type Reply struct {
	ReplyToken string
	Text       string
}

// MockReplier implements processing.Replier and records every reply.
type MockReplier struct {
	ReplyFunc func(ctx context.Context, replyToken, text string) error

	mu      sync.Mutex
	replies []Reply
}

var _ processing.Replier = (*MockReplier)(nil)

// NewMockReplier creates a MockReplier. If replyFunc is nil, Reply succeeds.
func NewMockReplier(replyFunc func(ctx context.Context, replyToken, text string) error) *MockReplier {
	return &MockReplier{ReplyFunc: replyFunc}
}

// Reply records the call and delegates to ReplyFunc.
func (m *MockReplier) Reply(ctx context.Context, replyToken, text string) error {
	m.mu.Lock()
	m.replies = append(m.replies, Reply{ReplyToken: replyToken, Text: text})
	m.mu.Unlock()

	if m.ReplyFunc != nil {
		return m.ReplyFunc(ctx, replyToken, text)
	}
	return nil
}

// Replies returns a copy of the recorded replies.
func (m *MockReplier) Replies() []Reply {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Reply(nil), m.replies...)
}
