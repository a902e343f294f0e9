// Package provider implements the completion provider on top of an
// OpenAI-compatible chat completions API.
package provider

import (
	"context"
	"net/http"
	"time"

	"github.com/sashabaranov/go-openai"
	"github.com/teilomillet/zooly/server/circuitbreaker"
	"github.com/teilomillet/zooly/server/processing"
	"go.uber.org/zap"
)

// OpenAIConfig holds what the client needs to reach the API.
type OpenAIConfig struct {
	APIKey  string
	BaseURL string

	// HTTPClient is optional; http.DefaultClient semantics apply when nil.
	HTTPClient *http.Client
}

// OpenAIProvider performs chat completions. Each call is a single attempt:
// the client is used without retries.
type OpenAIProvider struct {
	client  *openai.Client
	breaker *circuitbreaker.CircuitBreaker
	logger  *zap.Logger
}

var _ processing.Completer = (*OpenAIProvider)(nil)

// NewOpenAIProvider creates a provider. breaker may be nil, in which case
// every call goes straight to the API.
func NewOpenAIProvider(cfg OpenAIConfig, breaker *circuitbreaker.CircuitBreaker, logger *zap.Logger) *OpenAIProvider {
	if logger == nil {
		logger = zap.NewNop()
	}

	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	if cfg.HTTPClient != nil {
		clientCfg.HTTPClient = cfg.HTTPClient
	}

	return &OpenAIProvider{
		client:  openai.NewClientWithConfig(clientCfg),
		breaker: breaker,
		logger:  logger,
	}
}

// Complete sends req and returns the content of the first choice, untrimmed.
func (p *OpenAIProvider) Complete(ctx context.Context, req processing.CompletionRequest) (string, error) {
	var content string
	call := func() error {
		var err error
		content, err = p.create(ctx, req)
		return err
	}

	if p.breaker == nil {
		return content, call()
	}
	if err := p.breaker.Execute(call); err != nil {
		return "", err
	}
	return content, nil
}

func (p *OpenAIProvider) create(ctx context.Context, req processing.CompletionRequest) (string, error) {
	start := time.Now()
	resp, err := p.client.CreateChatCompletion(ctx, buildChatRequest(req))
	if err != nil {
		p.logger.Debug("Chat completion failed",
			zap.String("model", req.Model),
			zap.Duration("duration", time.Since(start)),
			zap.Error(err),
		)
		return "", err
	}

	if len(resp.Choices) == 0 {
		return "", ErrNoChoices
	}

	p.logger.Debug("Chat completion received",
		zap.String("model", resp.Model),
		zap.String("finish_reason", string(resp.Choices[0].FinishReason)),
		zap.Int("prompt_tokens", resp.Usage.PromptTokens),
		zap.Int("completion_tokens", resp.Usage.CompletionTokens),
		zap.Duration("duration", time.Since(start)),
	)
	return resp.Choices[0].Message.Content, nil
}

// buildChatRequest maps the request onto the API schema. Temperature is only
// sent when the persona sets one.
func buildChatRequest(req processing.CompletionRequest) openai.ChatCompletionRequest {
	msgs := req.Messages()
	chatMsgs := make([]openai.ChatCompletionMessage, len(msgs))
	for i, msg := range msgs {
		chatMsgs[i] = openai.ChatCompletionMessage{
			Role:    chatRole(msg.Role),
			Content: msg.Content,
		}
	}

	out := openai.ChatCompletionRequest{
		Model:     req.Model,
		Messages:  chatMsgs,
		MaxTokens: req.MaxTokens,
	}
	if req.Temperature != nil {
		out.Temperature = *req.Temperature
	}
	return out
}

func chatRole(role string) string {
	switch role {
	case processing.RoleSystem:
		return openai.ChatMessageRoleSystem
	case processing.RoleUser:
		return openai.ChatMessageRoleUser
	default:
		return role
	}
}
