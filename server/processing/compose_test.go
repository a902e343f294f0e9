package processing_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/teilomillet/zooly/config"
	"github.com/teilomillet/zooly/server/processing"
	"github.com/teilomillet/zooly/server/webhook"
)

func testPersona(t *testing.T, name string) config.PersonaConfig {
	t.Helper()
	p, ok := config.Preset(name)
	require.True(t, ok)
	return p
}

func TestComposeMessages(t *testing.T) {
	persona := testPersona(t, "zooly")
	ev := webhook.InboundEvent{SourceText: "  Hello <b>Zooly</b>\n", ReplyToken: "r"}

	req := processing.Compose(persona, ev)

	assert.Equal(t, persona.Model, req.Model)
	assert.Equal(t, persona.MaxTokens, req.MaxTokens)
	assert.Nil(t, req.Temperature)

	msgs := req.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, processing.Message{Role: processing.RoleSystem, Content: persona.SystemPrompt}, msgs[0])
	// User text is passed through untouched.
	assert.Equal(t, processing.Message{Role: processing.RoleUser, Content: "  Hello <b>Zooly</b>\n"}, msgs[1])
}

func TestComposeIsDeterministic(t *testing.T) {
	for _, name := range config.PresetNames() {
		t.Run(name, func(t *testing.T) {
			persona := testPersona(t, name)
			ev := webhook.InboundEvent{SourceText: "banana?", ReplyToken: "r", WebhookEventID: "e1"}

			first := processing.Compose(persona, ev)
			second := processing.Compose(persona, ev)
			assert.Equal(t, first, second)
			assert.Equal(t, first.Messages(), second.Messages())
		})
	}
}

func TestComposeCopiesTemperature(t *testing.T) {
	persona := testPersona(t, "zooly-mini")
	req := processing.Compose(persona, webhook.InboundEvent{SourceText: "hi"})

	require.NotNil(t, req.Temperature)
	assert.InDelta(t, 0.9, *req.Temperature, 1e-6)

	*persona.Temperature = 0.1
	assert.InDelta(t, 0.9, *req.Temperature, 1e-6)
}
