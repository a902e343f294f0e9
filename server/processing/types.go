// Package processing turns one inbound text message into exactly one reply:
// it composes the persona prompt, calls the completion provider and sends
// either the model's answer or the persona fallback back to the chat.
package processing

import "context"

// Chat roles understood by the completion provider.
const (
	RoleSystem = "system"
	RoleUser   = "user"
)

// Message represents a single message in a conversation.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// CompletionRequest is everything the provider needs for one call. It is a
// pure function of the persona and the inbound event.
type CompletionRequest struct {
	SystemPrompt string
	UserText     string
	Model        string
	MaxTokens    int

	// Temperature is nil when the persona leaves it to the provider.
	Temperature *float32
}

// Messages returns the two ordered messages of the request: the system
// prompt first, then the user's text. Both are passed through verbatim.
func (r CompletionRequest) Messages() []Message {
	return []Message{
		{Role: RoleSystem, Content: r.SystemPrompt},
		{Role: RoleUser, Content: r.UserText},
	}
}

// CompletionResult is the outcome of one completion attempt. Exactly one of
// Text and Err is set.
type CompletionResult struct {
	Text string
	Err  error
}

// OK reports whether the attempt produced reply text.
func (r CompletionResult) OK() bool {
	return r.Err == nil
}

// Completer performs a single chat completion and returns the raw content
// of the first choice.
type Completer interface {
	Complete(ctx context.Context, req CompletionRequest) (string, error)
}

// Replier sends one text message with a single-use reply token.
type Replier interface {
	Reply(ctx context.Context, replyToken, text string) error
}
