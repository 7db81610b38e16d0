package embeddings

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewProviderDefaultsToOllama(t *testing.T) {
	p, err := NewProvider(ProviderConfig{})
	require.NoError(t, err)
	defer p.Close()

	_, ok := p.(*OllamaProvider)
	assert.True(t, ok)
	assert.Equal(t, 768, p.Dimension())
}

func TestNewProviderHash(t *testing.T) {
	p, err := NewProvider(ProviderConfig{Provider: "hash"})
	require.NoError(t, err)
	defer p.Close()

	_, ok := p.(*HashProvider)
	assert.True(t, ok)
	assert.Equal(t, 384, p.Dimension())
}

func TestNewProviderUnknown(t *testing.T) {
	_, err := NewProvider(ProviderConfig{Provider: "carrier-pigeon"})
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestDetectDimension(t *testing.T) {
	tests := []struct {
		model string
		want  int
	}{
		{model: "nomic-embed-text", want: 768},
		{model: "mxbai-embed-large", want: 1024},
		{model: "all-minilm", want: 384},
		{model: "intfloat/multilingual-e5-large", want: 1024},
		{model: "BAAI/bge-small-en-v1.5", want: 384},
		{model: "custom-large-model", want: 1024},
		{model: "custom-small-model", want: 384},
		{model: "mystery-model", want: 768},
	}
	for _, tt := range tests {
		t.Run(tt.model, func(t *testing.T) {
			assert.Equal(t, tt.want, detectDimension(tt.model))
		})
	}
}

func TestFastEmbedModelDimension(t *testing.T) {
	// Only models the fastembed library actually ships may appear in the
	// lookup tables; everything else resolves through detectDimension's
	// name patterns.
	tests := []struct {
		model string
		want  int
	}{
		{model: "BAAI/bge-small-en-v1.5", want: 384},
		{model: "BAAI/bge-base-en-v1.5", want: 768},
		{model: "sentence-transformers/all-MiniLM-L6-v2", want: 384},
		{model: "fast-bge-base-en-v1.5", want: 768},
	}
	for _, tt := range tests {
		t.Run(tt.model, func(t *testing.T) {
			dim, ok := fastEmbedModelDimension(tt.model)
			require.True(t, ok)
			assert.Equal(t, tt.want, dim)
		})
	}

	_, ok := fastEmbedModelDimension("intfloat/multilingual-e5-large")
	assert.False(t, ok)
	assert.Equal(t, 1024, detectDimension("intfloat/multilingual-e5-large"))
}
