// Package relevance scores retrieval quality. The retrieval score
// quotient (RSQ) combines the best similarity score with its margin
// over the runner-up: a high top score with a clear lead signals a
// confident match, while near-ties are ambiguous even when the top
// score is high. Answers below the threshold route to the fallback
// response instead of the model.
package relevance

import (
	"fmt"
	"math"
)

// Config holds scoring weights and the confidence threshold.
type Config struct {
	// TopWeight scales the best similarity score. Default: 0.75
	TopWeight float64

	// MarginWeight scales the lead over the second-best score.
	// Default: 0.25
	MarginWeight float64

	// Threshold is the minimum RSQ considered sufficient for a
	// grounded answer. Default: 0.35
	Threshold float64
}

// ApplyDefaults sets default values for unset fields.
func (c *Config) ApplyDefaults() {
	if c.TopWeight == 0 {
		c.TopWeight = 0.75
	}
	if c.MarginWeight == 0 {
		c.MarginWeight = 0.25
	}
	if c.Threshold == 0 {
		c.Threshold = 0.35
	}
}

// Validate validates the configuration.
func (c Config) Validate() error {
	if c.TopWeight < 0 || c.MarginWeight < 0 {
		return fmt.Errorf("weights must be non-negative, got top=%v margin=%v", c.TopWeight, c.MarginWeight)
	}
	if c.Threshold < 0 || c.Threshold > 1 {
		return fmt.Errorf("threshold must be in [0,1], got %v", c.Threshold)
	}
	return nil
}

// Scorer computes RSQ values from ordered similarity scores.
type Scorer struct {
	config Config
}

// NewScorer creates a Scorer with the given configuration.
func NewScorer(config Config) (*Scorer, error) {
	config.ApplyDefaults()
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return &Scorer{config: config}, nil
}

// Score computes the RSQ for similarity scores ordered best-first.
// No scores yields 0. A single score carries no margin term. The
// result is clamped to [0,1] and rounded to three decimals.
func (s *Scorer) Score(scores []float32) float64 {
	if len(scores) == 0 {
		return 0
	}

	top := float64(scores[0])
	margin := 0.0
	if len(scores) > 1 {
		margin = top - float64(scores[1])
		if margin < 0 {
			margin = 0
		}
	}

	rsq := s.config.TopWeight*top + s.config.MarginWeight*margin
	if rsq < 0 {
		rsq = 0
	} else if rsq > 1 {
		rsq = 1
	}
	return math.Round(rsq*1000) / 1000
}

// Sufficient reports whether an RSQ meets the confidence threshold.
func (s *Scorer) Sufficient(rsq float64) bool {
	return rsq >= s.config.Threshold
}

// Threshold returns the configured confidence threshold.
func (s *Scorer) Threshold() float64 {
	return s.config.Threshold
}
