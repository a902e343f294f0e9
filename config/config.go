// Package config provides configuration management for the zooly relay.
// Configuration is read once at startup from an optional YAML file and the
// process environment, validated, and then treated as immutable.
package config

import (
	"fmt"
	"io"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/teilomillet/zooly/errors"
	"gopkg.in/yaml.v3"
)

// Environment variables consulted by ApplyEnv.
const (
	EnvChannelAccessToken = "LINE_CHANNEL_ACCESS_TOKEN"
	EnvChannelSecret      = "LINE_CHANNEL_SECRET"
	EnvOpenAIKey          = "OPENAI_API_KEY"
	EnvOpenAIBaseURL      = "OPENAI_BASE_URL"
	EnvPort               = "PORT"
	EnvPersona            = "ZOOLY_PERSONA"
)

// Config represents the complete relay configuration.
type Config struct {
	Server         ServerConfig         `yaml:"server"`
	LINE           LINEConfig           `yaml:"line"`
	LLM            LLMConfig            `yaml:"llm"`
	Persona        PersonaConfig        `yaml:"persona"`
	Logging        LoggingConfig        `yaml:"logging"`
	Metrics        MetricsConfig        `yaml:"metrics"`
	CircuitBreaker CircuitBreakerConfig `yaml:"circuit_breaker"`
}

// ServerConfig holds settings for the inbound HTTP server.
type ServerConfig struct {
	// Port specifies the HTTP server port (default: 8080)
	Port int `yaml:"port" validate:"gte=1,lte=65535"`

	// ReadTimeout is the maximum duration for reading the entire request,
	// including the body (default: 30s)
	ReadTimeout time.Duration `yaml:"read_timeout" validate:"gte=0"`

	// WriteTimeout bounds the whole webhook pipeline, so it must cover the
	// completion call plus the reply call (default: 75s)
	WriteTimeout time.Duration `yaml:"write_timeout" validate:"gte=0"`

	// MaxHeaderBytes controls the maximum number of bytes the server will
	// read parsing the request header's keys and values (default: 1MB)
	MaxHeaderBytes int `yaml:"max_header_bytes" validate:"gte=0"`

	// MaxBodyBytes caps the webhook body size (default: 1MB)
	MaxBodyBytes int64 `yaml:"max_body_bytes" validate:"gt=0"`

	// ShutdownTimeout specifies how long in-flight deliveries get to finish
	// after a shutdown signal (default: 30s)
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" validate:"gte=0"`
}

// LINEConfig holds the messaging platform credentials and endpoints.
type LINEConfig struct {
	// ChannelSecret signs every webhook delivery. Use ${LINE_CHANNEL_SECRET}.
	ChannelSecret string `yaml:"channel_secret" validate:"required"`

	// ChannelAccessToken authorizes reply calls. Use ${LINE_CHANNEL_ACCESS_TOKEN}.
	ChannelAccessToken string `yaml:"channel_access_token" validate:"required"`

	// Endpoint overrides the Messaging API base URL (default: https://api.line.me)
	Endpoint string `yaml:"endpoint" validate:"omitempty,url"`

	// CallbackPath is where the platform posts deliveries (default: /callback)
	CallbackPath string `yaml:"callback_path" validate:"required,startswith=/"`

	// Timeout bounds a single reply call (default: 15s)
	Timeout time.Duration `yaml:"timeout" validate:"gte=0"`
}

// LLMConfig holds settings for the completion provider.
type LLMConfig struct {
	// APIKey authenticates completion calls. Use ${OPENAI_API_KEY}.
	APIKey string `yaml:"api_key" validate:"required"`

	// BaseURL points at an OpenAI-compatible API (default: https://api.openai.com/v1)
	BaseURL string `yaml:"base_url" validate:"omitempty,url"`

	// Timeout bounds a single completion call (default: 30s)
	Timeout time.Duration `yaml:"timeout" validate:"gte=0"`

	// CountTokens enables prompt token accounting with tiktoken. The encoding
	// is loaded once in the background at startup, never per request.
	CountTokens bool `yaml:"count_tokens"`
}

// LoggingConfig holds logging-specific configuration.
type LoggingConfig struct {
	// Level sets logging verbosity: debug, info, warn, error
	Level string `yaml:"level" validate:"oneof=debug info warn error"`

	// Format specifies log output format: json or text
	Format string `yaml:"format" validate:"oneof=json text"`
}

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path" validate:"omitempty,startswith=/"`
}

// CircuitBreakerConfig configures the breaker wrapped around completion calls.
// An open breaker short-circuits straight to the fallback reply.
type CircuitBreakerConfig struct {
	Enabled bool `yaml:"enabled"`

	// MaxRequests is maximum number of requests allowed to pass through when in half-open state
	MaxRequests uint32 `yaml:"max_requests"`

	// Interval is the cyclic period of the closed state for the circuit breaker
	Interval time.Duration `yaml:"interval" validate:"gte=0"`

	// Timeout is the period of the open state until it becomes half-open
	Timeout time.Duration `yaml:"timeout" validate:"gte=0"`

	// FailureThreshold is the number of consecutive failures needed to trip the circuit
	FailureThreshold uint32 `yaml:"failure_threshold" validate:"required_if=Enabled true"`
}

// DefaultConfig returns the configuration used when no file is given.
// Secrets are left empty; they come from the environment.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    75 * time.Second,
			MaxHeaderBytes:  1 << 20,
			MaxBodyBytes:    1 << 20,
			ShutdownTimeout: 30 * time.Second,
		},
		LINE: LINEConfig{
			CallbackPath: "/callback",
			Timeout:      15 * time.Second,
		},
		LLM: LLMConfig{
			Timeout: 30 * time.Second,
		},
		Persona: PersonaConfig{
			Preset: DefaultPreset,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Path:    "/metrics",
		},
		CircuitBreaker: CircuitBreakerConfig{
			Enabled:          false,
			MaxRequests:      1,
			Interval:         time.Minute,
			Timeout:          30 * time.Second,
			FailureThreshold: 5,
		},
	}
}

// LoadFile loads configuration from a YAML file
func LoadFile(filename string) (*Config, error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("open config file: %w", err)
	}
	defer f.Close()

	return Load(f)
}

// LoadEnv builds the configuration from defaults and the environment only.
func LoadEnv() (*Config, error) {
	return Load(strings.NewReader(""))
}

// expandEnvVars resolves ${VAR} and ${VAR:-default} references.
func expandEnvVars(s string) string {
	return os.Expand(s, func(key string) string {
		if i := strings.Index(key, ":-"); i >= 0 {
			if val := os.Getenv(key[:i]); val != "" {
				return val
			}
			return key[i+2:]
		}
		return os.Getenv(key)
	})
}

// Load reads YAML from r on top of DefaultConfig, applies environment
// overrides, resolves the persona preset and validates the result.
// Every failure is a configuration_error so callers can refuse to start.
func Load(r io.Reader) (*Config, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, errors.NewConfigurationError("read config", nil, err)
	}

	config := DefaultConfig()

	expanded := expandEnvVars(string(data))
	if strings.TrimSpace(expanded) != "" {
		dec := yaml.NewDecoder(strings.NewReader(expanded))
		dec.KnownFields(true)
		if err := dec.Decode(config); err != nil {
			return nil, errors.NewConfigurationError("decode config", nil, err)
		}
	}

	if err := config.ApplyEnv(); err != nil {
		return nil, err
	}

	if err := config.Persona.Resolve(); err != nil {
		return nil, err
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// ApplyEnv overrides configuration values with any non-empty environment
// variables. Environment always wins over the file.
func (c *Config) ApplyEnv() error {
	if v := os.Getenv(EnvChannelAccessToken); v != "" {
		c.LINE.ChannelAccessToken = v
	}
	if v := os.Getenv(EnvChannelSecret); v != "" {
		c.LINE.ChannelSecret = v
	}
	if v := os.Getenv(EnvOpenAIKey); v != "" {
		c.LLM.APIKey = v
	}
	if v := os.Getenv(EnvOpenAIBaseURL); v != "" {
		c.LLM.BaseURL = v
	}
	if v := os.Getenv(EnvPersona); v != "" {
		c.Persona = PersonaConfig{Preset: v}
	}
	if v := os.Getenv(EnvPort); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return errors.NewConfigurationError(fmt.Sprintf("invalid %s %q", EnvPort, v), nil, err)
		}
		c.Server.Port = port
	}
	return nil
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("yaml"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})
	return v
}

// Validate checks if the configuration is valid. Missing secrets are
// reported by their YAML path (e.g. line.channel_secret).
func (c *Config) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}

	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return errors.NewConfigurationError("validate config", nil, err)
	}

	fields := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, fieldPath(fe))
	}
	return errors.NewConfigurationError(
		"invalid configuration: "+strings.Join(fields, ", "),
		map[string]interface{}{"fields": fields},
		err,
	)
}

// fieldPath turns "Config.line.channel_secret" into "line.channel_secret (required)".
func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if i := strings.Index(ns, "."); i >= 0 {
		ns = ns[i+1:]
	}
	return fmt.Sprintf("%s (%s)", ns, fe.Tag())
}
