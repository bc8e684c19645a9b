// Package assistant wraps the language-model collaborators used while
// authoring rules: translation from natural language, validation and
// contextual suggestions.
package assistant

import (
	"context"
	"errors"
)

// ErrMissingAPIKey is returned before any network call when no key was supplied
var ErrMissingAPIKey = errors.New("API key is required")

// CompletionRequest is a single-turn prompt. The API key is supplied by the
// caller on every request and never stored.
type CompletionRequest struct {
	APIKey      string
	Model       string
	System      string
	Prompt      string
	MaxTokens   int
	Temperature float64
}

// Completer sends one prompt to a model provider and returns the text reply
type Completer interface {
	Complete(ctx context.Context, req CompletionRequest) (string, error)
}

// Models names the provider models used for full and realtime requests
type Models struct {
	Main  string
	Light string
}

// Default model names per provider
var (
	DefaultAnthropicModels = Models{Main: "claude-sonnet-4-5", Light: "claude-haiku-4-5"}
	DefaultGeminiModels    = Models{Main: "gemini-2.5-flash", Light: "gemini-2.5-flash-lite"}
)

func (m Models) withDefaults(d Models) Models {
	if m.Main == "" {
		m.Main = d.Main
	}
	if m.Light == "" {
		m.Light = d.Light
	}
	return m
}
