package vectorstore

import (
	"fmt"

	"go.uber.org/zap"
)

// Config selects and configures the vector store backend.
type Config struct {
	// Provider is the backend name: "chromem" (default) or "qdrant".
	Provider string

	// Path is the storage directory for the chromem backend.
	Path string

	// Compress enables gzip compression for the chromem backend.
	Compress bool

	// VectorSize is the embedding dimension, propagated to the backend.
	VectorSize int

	// Qdrant holds connection settings for the qdrant backend.
	Qdrant QdrantConfig
}

// New creates the configured Store implementation.
func New(config Config, logger *zap.Logger) (Store, error) {
	switch config.Provider {
	case "", "chromem":
		return NewChromemStore(ChromemConfig{
			Path:       config.Path,
			Compress:   config.Compress,
			VectorSize: config.VectorSize,
		}, logger)
	case "qdrant":
		qdrantConfig := config.Qdrant
		if qdrantConfig.VectorSize == 0 && config.VectorSize > 0 {
			qdrantConfig.VectorSize = uint64(config.VectorSize)
		}
		return NewQdrantStore(qdrantConfig, logger)
	default:
		return nil, fmt.Errorf("%w: unknown provider %q", ErrInvalidConfig, config.Provider)
	}
}
