// Package llm provides text generation through a local Ollama server.
// The Generator interface keeps callers independent of the inference
// backend; the default implementation wraps langchaingo's ollama client
// with client-side rate limiting and a single retry on transient errors.
package llm

import (
	"context"
	"errors"
)

var (
	// ErrGenerationFailed indicates the model call failed after retry.
	ErrGenerationFailed = errors.New("generation failed")

	// ErrInvalidConfig indicates invalid configuration.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrEmptyPrompt indicates an empty or whitespace-only prompt.
	ErrEmptyPrompt = errors.New("empty prompt")
)

// Options holds per-call generation parameters.
type Options struct {
	// MaxTokens limits the generated output length. Zero leaves the
	// model default.
	MaxTokens int

	// Temperature controls sampling randomness. Zero leaves the model
	// default.
	Temperature float64

	// StopWords end generation when emitted.
	StopWords []string
}

// Generator produces text from a prompt using a named model.
type Generator interface {
	// Generate runs one completion. An empty model falls back to the
	// configured default model.
	Generate(ctx context.Context, model, prompt string, opts Options) (string, error)

	// Healthy reports whether the inference backend is reachable.
	Healthy(ctx context.Context) error

	Close() error
}
