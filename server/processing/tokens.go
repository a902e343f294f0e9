package processing

import (
	"errors"
	"fmt"
	"sync"

	"github.com/pkoukk/tiktoken-go"
)

// fallbackEncoding is used for models tiktoken does not know about.
const fallbackEncoding = "cl100k_base"

// Chat framing overhead per message and per reply, as documented for the
// gpt-3.5/gpt-4 families.
const (
	tokensPerMessage = 3
	tokensPerReply   = 3
)

// ErrEncodingNotLoaded is returned by CountTokens for a model whose encoding
// has not been loaded yet.
var ErrEncodingNotLoaded = errors.New("token encoding not loaded")

// TokenCounter estimates the prompt size of a request.
type TokenCounter interface {
	CountTokens(model string, msgs []Message) (int, error)
}

// TiktokenCounter counts tokens with the model's BPE encoding.
//
// Load may download the BPE file and is meant for startup. CountTokens only
// reads encodings that are already loaded, so it never blocks on the network.
type TiktokenCounter struct {
	mu        sync.RWMutex
	encodings map[string]*tiktoken.Tiktoken
}

// NewTiktokenCounter creates a counter with no encodings loaded.
func NewTiktokenCounter() *TiktokenCounter {
	return &TiktokenCounter{encodings: make(map[string]*tiktoken.Tiktoken)}
}

// Load fetches and caches the encoding for model. Models tiktoken does not
// know use cl100k_base.
func (c *TiktokenCounter) Load(model string) error {
	enc, err := tiktoken.EncodingForModel(model)
	if err != nil {
		enc, err = tiktoken.GetEncoding(fallbackEncoding)
		if err != nil {
			return fmt.Errorf("failed to get encoding for model %s: %w", model, err)
		}
	}

	c.mu.Lock()
	c.encodings[model] = enc
	c.mu.Unlock()
	return nil
}

// Loaded reports whether CountTokens can serve model.
func (c *TiktokenCounter) Loaded(model string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.encodings[model]
	return ok
}

// CountTokens returns the number of prompt tokens msgs will cost on model.
func (c *TiktokenCounter) CountTokens(model string, msgs []Message) (int, error) {
	c.mu.RLock()
	enc, ok := c.encodings[model]
	c.mu.RUnlock()
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrEncodingNotLoaded, model)
	}

	total := tokensPerReply
	for _, msg := range msgs {
		total += tokensPerMessage
		total += len(enc.Encode(msg.Role, nil, nil))
		total += len(enc.Encode(msg.Content, nil, nil))
	}
	return total, nil
}
