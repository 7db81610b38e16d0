// Package router selects a model profile per question and drives generation
// through it.
//
// Questions are scored by additive complexity heuristics (length, reasoning
// keywords, retrieval signals) and mapped to one of three profiles: fast,
// standard or reasoning. The profile table loads from a TOML file and can be
// swapped atomically at runtime, either explicitly or through a filesystem
// watcher. Selection never fails; broken signals degrade to the standard
// tier.
package router

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/ragd/internal/llm"
)

// Config holds router policy. Thresholds split the complexity range into
// the three tiers; the heuristic table itself is data and can be replaced
// wholesale.
type Config struct {
	// Disabled pins every request to DefaultProfile.
	Disabled       bool
	DefaultProfile string

	// ProfilesPath points at the TOML profile table. Empty means built-in
	// defaults.
	ProfilesPath string

	FastThreshold      float64
	ReasoningThreshold float64

	Heuristics Heuristics
}

// ApplyDefaults fills unset fields.
func (c *Config) ApplyDefaults() {
	if c.DefaultProfile == "" {
		c.DefaultProfile = ProfileStandard
	}
	if c.FastThreshold == 0 {
		c.FastThreshold = 0.3
	}
	if c.ReasoningThreshold == 0 {
		c.ReasoningThreshold = 0.7
	}
	defaults := DefaultHeuristics()
	if c.Heuristics.WordBands == nil {
		c.Heuristics.WordBands = defaults.WordBands
	}
	if c.Heuristics.ChunkBands == nil {
		c.Heuristics.ChunkBands = defaults.ChunkBands
	}
	if c.Heuristics.ContextBands == nil {
		c.Heuristics.ContextBands = defaults.ContextBands
	}
	if c.Heuristics.RSQBands == nil {
		c.Heuristics.RSQBands = defaults.RSQBands
	}
	if c.Heuristics.Keywords == nil {
		c.Heuristics.Keywords = defaults.Keywords
	}
	if c.Heuristics.KeywordWeight == 0 {
		c.Heuristics.KeywordWeight = defaults.KeywordWeight
	}
	if c.Heuristics.Connectors == nil {
		c.Heuristics.Connectors = defaults.Connectors
	}
	if c.Heuristics.ConnectorWeight == 0 {
		c.Heuristics.ConnectorWeight = defaults.ConnectorWeight
	}
}

// Validate checks threshold ordering and the default profile name.
func (c *Config) Validate() error {
	if c.FastThreshold <= 0 || c.FastThreshold >= c.ReasoningThreshold {
		return fmt.Errorf("thresholds must satisfy 0 < fast (%v) < reasoning (%v)",
			c.FastThreshold, c.ReasoningThreshold)
	}
	if c.ReasoningThreshold > 1 {
		return fmt.Errorf("reasoning threshold must be <= 1, got %v", c.ReasoningThreshold)
	}
	switch c.DefaultProfile {
	case ProfileFast, ProfileStandard, ProfileReasoning:
	default:
		return fmt.Errorf("unknown default profile %q", c.DefaultProfile)
	}
	return nil
}

// Router maps questions to model profiles and invokes the generator with
// the selected profile's limits.
type Router struct {
	config   Config
	profiles atomic.Pointer[Profiles]
	gen      llm.Generator
	logger   *zap.Logger
}

// New builds a router. When config.ProfilesPath is set the table loads from
// that file, otherwise the built-in defaults apply.
func New(config Config, gen llm.Generator, logger *zap.Logger) (*Router, error) {
	config.ApplyDefaults()
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid router config: %w", err)
	}
	if gen == nil {
		return nil, fmt.Errorf("generator is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	table := DefaultProfiles()
	if config.ProfilesPath != "" {
		loaded, err := LoadProfiles(config.ProfilesPath)
		if err != nil {
			return nil, err
		}
		table = loaded
	}

	r := &Router{
		config: config,
		gen:    gen,
		logger: logger,
	}
	r.profiles.Store(table)
	return r, nil
}

// Table returns the active profile table.
func (r *Router) Table() *Profiles {
	return r.profiles.Load()
}

// Reload re-reads the profile table from disk and swaps it in. On failure
// the active table stays untouched. Without a configured path the built-in
// defaults are restored.
func (r *Router) Reload() error {
	table := DefaultProfiles()
	if r.config.ProfilesPath != "" {
		loaded, err := LoadProfiles(r.config.ProfilesPath)
		if err != nil {
			return fmt.Errorf("reloading profiles: %w", err)
		}
		table = loaded
	}
	r.profiles.Store(table)
	r.logger.Info("profile table reloaded",
		zap.String("path", r.config.ProfilesPath),
		zap.String("fast", table.Fast.Model),
		zap.String("standard", table.Standard.Model),
		zap.String("reasoning", table.Reasoning.Model))
	return nil
}

// Select picks the profile for a question. It never fails: with routing
// disabled the configured default profile applies, and an unusable tier
// falls back to standard.
func (r *Router) Select(question string, chunksUsed, contextLen int, rsq float64) Profile {
	table := r.profiles.Load()

	if r.config.Disabled {
		if p, ok := table.ByName(r.config.DefaultProfile); ok {
			return p
		}
		return table.Standard
	}

	complexity := r.config.Heuristics.Complexity(Question{
		Text:       question,
		ChunksUsed: chunksUsed,
		ContextLen: contextLen,
		RSQ:        rsq,
	})

	var profile Profile
	switch {
	case complexity < r.config.FastThreshold:
		profile = table.Fast
	case complexity <= r.config.ReasoningThreshold:
		profile = table.Standard
	default:
		profile = table.Reasoning
	}
	if profile.Model == "" {
		profile = table.Standard
	}

	r.logger.Debug("profile selected",
		zap.Float64("complexity", complexity),
		zap.String("profile", profile.Name),
		zap.String("model", profile.Model))
	return profile
}

// Invoke generates an answer with the profile's model and limits. Each
// attempt runs under the profile's timeout. On failure it retries exactly
// once with the table's fallback model before giving up.
func (r *Router) Invoke(ctx context.Context, profile Profile, prompt string) (string, error) {
	opts := llm.Options{
		MaxTokens:   profile.MaxTokens,
		Temperature: profile.Temperature,
		StopWords:   profile.StopWords,
	}

	answer, err := r.generate(ctx, profile.Model, prompt, opts, profile.Timeout)
	if err == nil {
		return answer, nil
	}

	fallback := r.profiles.Load().FallbackModel
	if fallback == "" || fallback == profile.Model || ctx.Err() != nil {
		return "", fmt.Errorf("profile %s: %w", profile.Name, err)
	}

	r.logger.Warn("model failed, retrying with fallback",
		zap.String("profile", profile.Name),
		zap.String("model", profile.Model),
		zap.String("fallback", fallback),
		zap.Error(err))

	answer, ferr := r.generate(ctx, fallback, prompt, opts, profile.Timeout)
	if ferr != nil {
		return "", fmt.Errorf("profile %s: fallback model %s: %w", profile.Name, fallback, ferr)
	}
	return answer, nil
}

func (r *Router) generate(ctx context.Context, model, prompt string, opts llm.Options, timeout time.Duration) (string, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	return r.gen.Generate(ctx, model, prompt, opts)
}
