package config

import (
	_ "embed"
	"fmt"
	"sort"
	"strings"

	"github.com/teilomillet/zooly/errors"
)

// DefaultPreset is the persona served when nothing else is configured.
const DefaultPreset = "zooly"

//go:embed personas/zooly.txt
var zoolyPrompt string

// zoolyFallback is sent whenever the model cannot produce a reply.
const zoolyFallback = "Zee-ee… Zooly is taking a little banana break right now 🍌 Please try again in a moment!"

// PersonaConfig describes one assistant variant: the fixed system prompt and
// the generation parameters sent with every completion request.
type PersonaConfig struct {
	// Preset names a built-in persona. Any non-empty field below overrides
	// the preset's value.
	Preset string `yaml:"preset"`

	Name         string `yaml:"name" validate:"required"`
	SystemPrompt string `yaml:"system_prompt" validate:"required"`
	Model        string `yaml:"model" validate:"required"`
	MaxTokens    int    `yaml:"max_tokens" validate:"gt=0"`

	// Temperature is optional; nil leaves the provider default in place.
	Temperature *float32 `yaml:"temperature" validate:"omitempty,gte=0,lte=2"`

	// FallbackText is the reply used when the completion fails.
	FallbackText string `yaml:"fallback_text" validate:"required"`
}

func float32Ptr(v float32) *float32 { return &v }

// presets holds the deployed variants. They share the persona text and
// differ only in model and generation parameters.
var presets = map[string]PersonaConfig{
	"zooly": {
		Name:         "zooly",
		SystemPrompt: strings.TrimSpace(zoolyPrompt),
		Model:        "gpt-3.5-turbo",
		MaxTokens:    120,
		FallbackText: zoolyFallback,
	},
	"zooly-mini": {
		Name:         "zooly-mini",
		SystemPrompt: strings.TrimSpace(zoolyPrompt),
		Model:        "gpt-4o-mini",
		MaxTokens:    250,
		Temperature:  float32Ptr(0.9),
		FallbackText: zoolyFallback,
	},
}

// Preset returns a copy of the named built-in persona.
func Preset(name string) (PersonaConfig, bool) {
	p, ok := presets[name]
	if !ok {
		return PersonaConfig{}, false
	}
	if p.Temperature != nil {
		p.Temperature = float32Ptr(*p.Temperature)
	}
	p.Preset = name
	return p, true
}

// PresetNames lists the built-in personas in sorted order.
func PresetNames() []string {
	names := make([]string, 0, len(presets))
	for name := range presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Resolve fills every unset field from the named preset. A persona without
// a preset must be fully specified and is left untouched.
func (p *PersonaConfig) Resolve() error {
	if p.Preset == "" {
		return nil
	}

	base, ok := Preset(p.Preset)
	if !ok {
		return errors.NewConfigurationError(
			fmt.Sprintf("unknown persona preset %q", p.Preset),
			map[string]interface{}{"available": PresetNames()},
			nil,
		)
	}

	if p.Name == "" {
		p.Name = base.Name
	}
	if p.SystemPrompt == "" {
		p.SystemPrompt = base.SystemPrompt
	}
	if p.Model == "" {
		p.Model = base.Model
	}
	if p.MaxTokens == 0 {
		p.MaxTokens = base.MaxTokens
	}
	if p.Temperature == nil {
		p.Temperature = base.Temperature
	}
	if p.FallbackText == "" {
		p.FallbackText = base.FallbackText
	}
	return nil
}
