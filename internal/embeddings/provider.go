package embeddings

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	// ErrEmptyInput indicates empty or nil input texts.
	ErrEmptyInput = errors.New("empty or nil input texts")

	// ErrInvalidConfig indicates invalid configuration.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrEmbeddingFailed indicates embedding generation failure.
	ErrEmbeddingFailed = errors.New("embedding generation failed")
)

// Provider generates embeddings for documents and queries.
type Provider interface {
	// EmbedDocuments embeds a batch of chunk texts, one vector per text,
	// in input order.
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)

	// EmbedQuery embeds a single query string.
	EmbedQuery(ctx context.Context, text string) ([]float32, error)

	// Dimension returns the embedding dimension for the configured model.
	Dimension() int

	// Close releases resources held by the provider.
	Close() error
}

// HealthChecker is implemented by providers that can verify their backing
// service is reachable.
type HealthChecker interface {
	Healthy(ctx context.Context) error
}

// ProviderConfig selects and configures an embedding provider.
type ProviderConfig struct {
	// Provider is the provider type: "ollama" (default), "fastembed", or "hash".
	Provider string
	// Model is the embedding model name.
	Model string
	// BaseURL is the Ollama server URL (ollama provider only).
	BaseURL string
	// Timeout bounds a single embedding request (ollama provider only).
	Timeout time.Duration
	// CacheDir is the model cache directory (fastembed provider only).
	CacheDir string
	// Dimension overrides the detected embedding dimension.
	Dimension int
}

// NewProvider creates an embedding provider from the configuration.
func NewProvider(cfg ProviderConfig) (Provider, error) {
	switch cfg.Provider {
	case "ollama", "":
		return NewOllamaProvider(OllamaConfig{
			BaseURL:   cfg.BaseURL,
			Model:     cfg.Model,
			Timeout:   cfg.Timeout,
			Dimension: cfg.Dimension,
		})
	case "fastembed":
		return NewFastEmbedProvider(FastEmbedConfig{
			Model:    cfg.Model,
			CacheDir: cfg.CacheDir,
		})
	case "hash":
		dim := cfg.Dimension
		if dim == 0 {
			dim = 384
		}
		return NewHashProvider(dim), nil
	default:
		return nil, fmt.Errorf("%w: unknown provider %q", ErrInvalidConfig, cfg.Provider)
	}
}

// detectDimension returns the embedding dimension for a model name,
// falling back to name patterns for unknown models.
func detectDimension(model string) int {
	if dim, ok := fastEmbedModelDimension(model); ok {
		return dim
	}

	switch model {
	case "nomic-embed-text":
		return 768
	case "mxbai-embed-large", "bge-m3", "snowflake-arctic-embed":
		return 1024
	case "all-minilm":
		return 384
	}

	switch {
	case strings.Contains(model, "large"):
		return 1024
	case strings.Contains(model, "base"):
		return 768
	case strings.Contains(model, "small"), strings.Contains(model, "mini"):
		return 384
	default:
		return 768
	}
}
