package processing

import (
	"github.com/teilomillet/zooly/config"
	"github.com/teilomillet/zooly/server/webhook"
)

// Compose builds the completion request for ev under persona. There is no
// history, truncation or sanitization: the user text goes out as received.
func Compose(persona config.PersonaConfig, ev webhook.InboundEvent) CompletionRequest {
	req := CompletionRequest{
		SystemPrompt: persona.SystemPrompt,
		UserText:     ev.SourceText,
		Model:        persona.Model,
		MaxTokens:    persona.MaxTokens,
	}
	if persona.Temperature != nil {
		t := *persona.Temperature
		req.Temperature = &t
	}
	return req
}
