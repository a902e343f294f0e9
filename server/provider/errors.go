package provider

import "errors"

var (
	// ErrNoChoices indicates the provider answered without any choices
	ErrNoChoices = errors.New("completion response has no choices")
)
