package relevance

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestScorer(t *testing.T) *Scorer {
	t.Helper()
	scorer, err := NewScorer(Config{})
	require.NoError(t, err)
	return scorer
}

func TestConfig_ApplyDefaults(t *testing.T) {
	config := Config{}
	config.ApplyDefaults()

	assert.Equal(t, 0.75, config.TopWeight)
	assert.Equal(t, 0.25, config.MarginWeight)
	assert.Equal(t, 0.35, config.Threshold)
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name      string
		config    Config
		wantError bool
	}{
		{"defaults", Config{TopWeight: 0.75, MarginWeight: 0.25, Threshold: 0.35}, false},
		{"negative top weight", Config{TopWeight: -0.1, MarginWeight: 0.25, Threshold: 0.35}, true},
		{"negative margin weight", Config{TopWeight: 0.75, MarginWeight: -0.25, Threshold: 0.35}, true},
		{"threshold above one", Config{TopWeight: 0.75, MarginWeight: 0.25, Threshold: 1.5}, true},
		{"threshold below zero", Config{TopWeight: 0.75, MarginWeight: 0.25, Threshold: -0.1}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if tt.wantError {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestScorer_Score(t *testing.T) {
	scorer := newTestScorer(t)

	tests := []struct {
		name   string
		scores []float32
		want   float64
	}{
		{"no scores", nil, 0},
		{"empty scores", []float32{}, 0},
		{"single score has no margin", []float32{0.9}, 0.675},
		{"clear winner", []float32{0.9, 0.3}, 0.825},
		{"near tie", []float32{0.32, 0.30}, 0.245},
		{"perfect match alone ahead", []float32{1.0, 0.0}, 1.0},
		{"unordered input keeps margin at zero", []float32{0.3, 0.9}, 0.225},
		{"negative top clamps to zero", []float32{-0.5, -0.8}, 0},
		{"rounded to three decimals", []float32{0.333, 0.111}, 0.305},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, scorer.Score(tt.scores), 1e-9)
		})
	}
}

func TestScorer_ScoreMonotoneInTopAndMargin(t *testing.T) {
	scorer := newTestScorer(t)

	// Higher top score at fixed margin never lowers the RSQ.
	assert.GreaterOrEqual(t,
		scorer.Score([]float32{0.8, 0.6}),
		scorer.Score([]float32{0.7, 0.5}),
	)
	// Larger margin at fixed top score never lowers the RSQ.
	assert.GreaterOrEqual(t,
		scorer.Score([]float32{0.8, 0.2}),
		scorer.Score([]float32{0.8, 0.6}),
	)
}

func TestScorer_Sufficient(t *testing.T) {
	scorer := newTestScorer(t)

	assert.True(t, scorer.Sufficient(0.35))
	assert.True(t, scorer.Sufficient(0.825))
	assert.False(t, scorer.Sufficient(0.349))
	assert.False(t, scorer.Sufficient(0))
}

func TestScorer_CustomWeights(t *testing.T) {
	scorer, err := NewScorer(Config{TopWeight: 0.5, MarginWeight: 0.5, Threshold: 0.2})
	require.NoError(t, err)

	assert.InDelta(t, 0.6, scorer.Score([]float32{0.9, 0.6}), 1e-9)
	assert.Equal(t, 0.2, scorer.Threshold())
	assert.True(t, scorer.Sufficient(0.2))
}

func TestNewScorer_InvalidConfig(t *testing.T) {
	_, err := NewScorer(Config{TopWeight: -1})
	assert.Error(t, err)
}
