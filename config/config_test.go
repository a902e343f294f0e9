package config

import (
	"strings"
	"testing"
	"time"

	"github.com/teilomillet/zooly/errors"
)

// clearEnv blanks every variable ApplyEnv reads so the host environment
// cannot leak into a test.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		EnvChannelAccessToken, EnvChannelSecret, EnvOpenAIKey,
		EnvOpenAIBaseURL, EnvPort, EnvPersona,
	} {
		t.Setenv(key, "")
	}
}

const validYAML = `
server:
  port: 9090
  read_timeout: 45s
  write_timeout: 90s
  max_body_bytes: 65536
  shutdown_timeout: 10s

line:
  channel_secret: file-secret
  channel_access_token: file-token
  endpoint: https://api.line.me
  callback_path: /webhook
  timeout: 5s

llm:
  api_key: sk-file
  base_url: https://llm.internal/v1
  timeout: 20s
  count_tokens: false

persona:
  preset: zooly-mini
  max_tokens: 300

logging:
  level: debug
  format: text

metrics:
  enabled: true
  path: /internal/metrics

circuit_breaker:
  enabled: true
  failure_threshold: 3
  timeout: 1m
`

func TestLoadValidConfig(t *testing.T) {
	clearEnv(t)

	config, err := Load(strings.NewReader(validYAML))
	if err != nil {
		t.Fatalf("Failed to load valid config: %v", err)
	}

	if config.Server.Port != 9090 {
		t.Errorf("unexpected port: got %d, want %d", config.Server.Port, 9090)
	}
	if config.Server.WriteTimeout != 90*time.Second {
		t.Errorf("unexpected write timeout: got %v, want %v", config.Server.WriteTimeout, 90*time.Second)
	}
	if config.Server.MaxBodyBytes != 65536 {
		t.Errorf("unexpected body limit: got %d", config.Server.MaxBodyBytes)
	}
	// Not in the file, so the default survives.
	if config.Server.MaxHeaderBytes != 1<<20 {
		t.Errorf("unexpected max header bytes: got %d", config.Server.MaxHeaderBytes)
	}

	if config.LINE.ChannelSecret != "file-secret" || config.LINE.ChannelAccessToken != "file-token" {
		t.Errorf("unexpected LINE credentials: %+v", config.LINE)
	}
	if config.LINE.CallbackPath != "/webhook" {
		t.Errorf("unexpected callback path: got %s", config.LINE.CallbackPath)
	}
	if config.LLM.BaseURL != "https://llm.internal/v1" || config.LLM.CountTokens {
		t.Errorf("unexpected LLM config: %+v", config.LLM)
	}

	if config.Persona.Name != "zooly-mini" || config.Persona.Model != "gpt-4o-mini" {
		t.Errorf("preset not resolved: %+v", config.Persona)
	}
	if config.Persona.MaxTokens != 300 {
		t.Errorf("file value should override preset: got %d, want 300", config.Persona.MaxTokens)
	}
	if config.Persona.Temperature == nil || *config.Persona.Temperature != 0.9 {
		t.Errorf("preset temperature lost: %v", config.Persona.Temperature)
	}

	if config.Logging.Level != "debug" || config.Logging.Format != "text" {
		t.Errorf("unexpected logging config: %+v", config.Logging)
	}
	if config.Metrics.Path != "/internal/metrics" {
		t.Errorf("unexpected metrics path: got %s", config.Metrics.Path)
	}
	if !config.CircuitBreaker.Enabled || config.CircuitBreaker.FailureThreshold != 3 || config.CircuitBreaker.Timeout != time.Minute {
		t.Errorf("unexpected circuit breaker config: %+v", config.CircuitBreaker)
	}
}

func TestLoadInvalidConfig(t *testing.T) {
	clearEnv(t)

	secrets := `
line:
  channel_secret: s
  channel_access_token: t
llm:
  api_key: k
`

	tests := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{
			name:    "missing secrets",
			yaml:    "server:\n  port: 8080\n",
			wantErr: "line.channel_secret (required), line.channel_access_token (required), llm.api_key (required)",
		},
		{
			name:    "invalid port",
			yaml:    secrets + "server:\n  port: 70000\n",
			wantErr: "server.port (lte)",
		},
		{
			name:    "invalid log level",
			yaml:    secrets + "logging:\n  level: verbose\n",
			wantErr: "logging.level (oneof)",
		},
		{
			name:    "callback path without slash",
			yaml:    "line:\n  channel_secret: s\n  channel_access_token: t\n  callback_path: callback\nllm:\n  api_key: k\n",
			wantErr: "line.callback_path (startswith)",
		},
		{
			name:    "invalid base url",
			yaml:    "line:\n  channel_secret: s\n  channel_access_token: t\nllm:\n  api_key: k\n  base_url: not a url\n",
			wantErr: "llm.base_url (url)",
		},
		{
			name:    "unknown preset",
			yaml:    secrets + "persona:\n  preset: grumpy\n",
			wantErr: `unknown persona preset "grumpy"`,
		},
		{
			name:    "unknown field",
			yaml:    secrets + "routes:\n  - path: /v1/completions\n",
			wantErr: "decode config",
		},
		{
			name:    "malformed yaml",
			yaml:    "server: [port",
			wantErr: "decode config",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(strings.NewReader(tt.yaml))
			if err == nil {
				t.Fatal("expected error, got nil")
			}
			if !errors.Is(err, errors.ErrConfiguration) {
				t.Errorf("expected configuration_error, got %v", err)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error %q does not contain %q", err.Error(), tt.wantErr)
			}
		})
	}
}

func TestDefaultConfig(t *testing.T) {
	config := DefaultConfig()

	if config.Server.Port != 8080 {
		t.Errorf("unexpected default port: got %d", config.Server.Port)
	}
	if config.Server.WriteTimeout <= config.LLM.Timeout+config.LINE.Timeout {
		t.Errorf("write timeout %v must cover completion %v plus reply %v",
			config.Server.WriteTimeout, config.LLM.Timeout, config.LINE.Timeout)
	}
	if config.LINE.CallbackPath != "/callback" {
		t.Errorf("unexpected callback path: got %s", config.LINE.CallbackPath)
	}
	if config.Persona.Preset != DefaultPreset {
		t.Errorf("unexpected preset: got %s", config.Persona.Preset)
	}
	if config.CircuitBreaker.Enabled {
		t.Error("circuit breaker should be off by default")
	}
	if config.LLM.CountTokens {
		t.Error("token counting should be off by default")
	}

	// Secrets never have defaults.
	if err := config.Validate(); err == nil {
		t.Error("default config without secrets must not validate")
	}
}

func TestPresets(t *testing.T) {
	names := PresetNames()
	if len(names) != 2 || names[0] != "zooly" || names[1] != "zooly-mini" {
		t.Fatalf("unexpected presets: %v", names)
	}

	for _, name := range names {
		p, ok := Preset(name)
		if !ok {
			t.Fatalf("preset %s missing", name)
		}
		if p.Preset != name || p.Name != name {
			t.Errorf("preset %s has name %q / %q", name, p.Preset, p.Name)
		}
		if !strings.Contains(p.SystemPrompt, "Zooly") {
			t.Errorf("preset %s system prompt does not describe the persona", name)
		}
		if p.FallbackText == "" || p.MaxTokens <= 0 || p.Model == "" {
			t.Errorf("preset %s incomplete: %+v", name, p)
		}
	}

	if _, ok := Preset("nope"); ok {
		t.Error("unknown preset should not resolve")
	}
}

func TestPresetReturnsCopy(t *testing.T) {
	a, _ := Preset("zooly-mini")
	*a.Temperature = 0.1

	b, _ := Preset("zooly-mini")
	if *b.Temperature != 0.9 {
		t.Errorf("preset mutated through a returned copy: %v", *b.Temperature)
	}
}

func TestPersonaResolve(t *testing.T) {
	p := PersonaConfig{
		Preset:       "zooly",
		SystemPrompt: "You are a test bot.",
		FallbackText: "sorry",
	}
	if err := p.Resolve(); err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if p.SystemPrompt != "You are a test bot." || p.FallbackText != "sorry" {
		t.Errorf("explicit fields overwritten: %+v", p)
	}
	if p.Model != "gpt-3.5-turbo" || p.MaxTokens != 120 || p.Temperature != nil {
		t.Errorf("unset fields not filled from preset: %+v", p)
	}

	custom := PersonaConfig{Name: "custom"}
	if err := custom.Resolve(); err != nil {
		t.Fatalf("resolve without preset: %v", err)
	}
	if custom.Model != "" {
		t.Errorf("persona without preset should be left alone: %+v", custom)
	}
}
