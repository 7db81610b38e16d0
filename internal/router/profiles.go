package router

import (
	"fmt"
	"time"

	"github.com/BurntSushi/toml"
)

// Profile tier names. The table always carries exactly these three tiers.
const (
	ProfileFast      = "fast"
	ProfileStandard  = "standard"
	ProfileReasoning = "reasoning"
)

// Profile describes one model tier: which model to call and with what
// generation limits.
type Profile struct {
	Name        string
	Model       string
	MaxTokens   int
	Temperature float64
	Timeout     time.Duration
	StopWords   []string
}

// Profiles is the immutable three-tier model table. Routers hold it behind
// an atomic pointer so reloads swap the whole table at once.
type Profiles struct {
	Fast          Profile
	Standard      Profile
	Reasoning     Profile
	FallbackModel string
}

// DefaultProfiles returns the built-in model table.
func DefaultProfiles() *Profiles {
	stop := []string{"\n\n\n"}
	return &Profiles{
		Fast: Profile{
			Name:        ProfileFast,
			Model:       "qwen2.5:3b",
			MaxTokens:   150,
			Temperature: 0.1,
			Timeout:     10 * time.Second,
			StopWords:   stop,
		},
		Standard: Profile{
			Name:        ProfileStandard,
			Model:       "qwen2.5:7b",
			MaxTokens:   400,
			Temperature: 0.2,
			Timeout:     30 * time.Second,
			StopWords:   stop,
		},
		Reasoning: Profile{
			Name:        ProfileReasoning,
			Model:       "qwen2.5:7b",
			MaxTokens:   600,
			Temperature: 0.3,
			Timeout:     60 * time.Second,
			StopWords:   stop,
		},
		FallbackModel: "llama3.2:1b",
	}
}

// ByName returns the profile for a tier name.
func (p *Profiles) ByName(name string) (Profile, bool) {
	switch name {
	case ProfileFast:
		return p.Fast, true
	case ProfileStandard:
		return p.Standard, true
	case ProfileReasoning:
		return p.Reasoning, true
	}
	return Profile{}, false
}

// Validate checks that every tier is usable.
func (p *Profiles) Validate() error {
	for _, profile := range []Profile{p.Fast, p.Standard, p.Reasoning} {
		if profile.Model == "" {
			return fmt.Errorf("profile %s: model is required", profile.Name)
		}
		if profile.MaxTokens <= 0 {
			return fmt.Errorf("profile %s: max_tokens must be positive, got %d", profile.Name, profile.MaxTokens)
		}
		if profile.Temperature < 0 || profile.Temperature > 2 {
			return fmt.Errorf("profile %s: temperature must be in [0,2], got %v", profile.Name, profile.Temperature)
		}
		if profile.Timeout <= 0 {
			return fmt.Errorf("profile %s: timeout must be positive, got %s", profile.Name, profile.Timeout)
		}
	}
	if p.FallbackModel == "" {
		return fmt.Errorf("fallback_model is required")
	}
	return nil
}

// profilesFile mirrors the on-disk TOML document. Pointer fields distinguish
// "not set" from an explicit zero so partial overrides keep defaults.
type profilesFile struct {
	FallbackModel string                 `toml:"fallback_model"`
	Profiles      map[string]profileSpec `toml:"profiles"`
}

type profileSpec struct {
	Model       string        `toml:"model"`
	MaxTokens   *int          `toml:"max_tokens"`
	Temperature *float64      `toml:"temperature"`
	Timeout     *tomlDuration `toml:"timeout"`
	StopWords   []string      `toml:"stop_words"`
}

// tomlDuration parses values like "30s" or "2m".
type tomlDuration time.Duration

func (d *tomlDuration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	*d = tomlDuration(parsed)
	return nil
}

// LoadProfiles reads a TOML profile table from path, overlaying it onto the
// defaults. Sections may override any subset of fields; tiers outside
// fast/standard/reasoning are rejected.
func LoadProfiles(path string) (*Profiles, error) {
	var file profilesFile
	if _, err := toml.DecodeFile(path, &file); err != nil {
		return nil, fmt.Errorf("decoding profiles file: %w", err)
	}

	table := DefaultProfiles()
	if file.FallbackModel != "" {
		table.FallbackModel = file.FallbackModel
	}

	for name, spec := range file.Profiles {
		var target *Profile
		switch name {
		case ProfileFast:
			target = &table.Fast
		case ProfileStandard:
			target = &table.Standard
		case ProfileReasoning:
			target = &table.Reasoning
		default:
			return nil, fmt.Errorf("unknown profile %q (expected %s, %s or %s)",
				name, ProfileFast, ProfileStandard, ProfileReasoning)
		}
		spec.apply(target)
	}

	if err := table.Validate(); err != nil {
		return nil, fmt.Errorf("invalid profiles file: %w", err)
	}
	return table, nil
}

func (s profileSpec) apply(p *Profile) {
	if s.Model != "" {
		p.Model = s.Model
	}
	if s.MaxTokens != nil {
		p.MaxTokens = *s.MaxTokens
	}
	if s.Temperature != nil {
		p.Temperature = *s.Temperature
	}
	if s.Timeout != nil {
		p.Timeout = time.Duration(*s.Timeout)
	}
	if s.StopWords != nil {
		p.StopWords = s.StopWords
	}
}
