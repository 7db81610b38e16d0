package router

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeProfiles(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "profiles.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestDefaultProfiles(t *testing.T) {
	table := DefaultProfiles()
	require.NoError(t, table.Validate())

	assert.Equal(t, "qwen2.5:3b", table.Fast.Model)
	assert.Equal(t, 150, table.Fast.MaxTokens)
	assert.Equal(t, 10*time.Second, table.Fast.Timeout)

	assert.Equal(t, "qwen2.5:7b", table.Standard.Model)
	assert.Equal(t, 400, table.Standard.MaxTokens)
	assert.Equal(t, 30*time.Second, table.Standard.Timeout)

	assert.Equal(t, "qwen2.5:7b", table.Reasoning.Model)
	assert.Equal(t, 600, table.Reasoning.MaxTokens)
	assert.Equal(t, 60*time.Second, table.Reasoning.Timeout)

	assert.Equal(t, "llama3.2:1b", table.FallbackModel)
}

func TestProfilesByName(t *testing.T) {
	table := DefaultProfiles()

	fast, ok := table.ByName(ProfileFast)
	require.True(t, ok)
	assert.Equal(t, ProfileFast, fast.Name)

	standard, ok := table.ByName(ProfileStandard)
	require.True(t, ok)
	assert.Equal(t, ProfileStandard, standard.Name)

	reasoning, ok := table.ByName(ProfileReasoning)
	require.True(t, ok)
	assert.Equal(t, ProfileReasoning, reasoning.Name)

	_, ok = table.ByName("turbo")
	assert.False(t, ok)
}

func TestProfilesValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Profiles)
	}{
		{"missing model", func(p *Profiles) { p.Fast.Model = "" }},
		{"zero max tokens", func(p *Profiles) { p.Standard.MaxTokens = 0 }},
		{"negative temperature", func(p *Profiles) { p.Reasoning.Temperature = -0.1 }},
		{"temperature too high", func(p *Profiles) { p.Fast.Temperature = 2.5 }},
		{"zero timeout", func(p *Profiles) { p.Standard.Timeout = 0 }},
		{"missing fallback", func(p *Profiles) { p.FallbackModel = "" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			table := DefaultProfiles()
			tt.mutate(table)
			assert.Error(t, table.Validate())
		})
	}
}

func TestLoadProfiles(t *testing.T) {
	path := writeProfiles(t, `
fallback_model = "phi3:mini"

[profiles.fast]
model = "gemma2:2b"
max_tokens = 100
temperature = 0.0
timeout = "5s"
stop_words = ["Frage:"]
`)

	table, err := LoadProfiles(path)
	require.NoError(t, err)

	assert.Equal(t, "gemma2:2b", table.Fast.Model)
	assert.Equal(t, 100, table.Fast.MaxTokens)
	assert.Zero(t, table.Fast.Temperature)
	assert.Equal(t, 5*time.Second, table.Fast.Timeout)
	assert.Equal(t, []string{"Frage:"}, table.Fast.StopWords)
	assert.Equal(t, "phi3:mini", table.FallbackModel)

	// Untouched tiers keep their defaults.
	assert.Equal(t, "qwen2.5:7b", table.Standard.Model)
	assert.Equal(t, 400, table.Standard.MaxTokens)
}

func TestLoadProfiles_PartialOverride(t *testing.T) {
	path := writeProfiles(t, `
[profiles.standard]
model = "mistral:7b"
`)

	table, err := LoadProfiles(path)
	require.NoError(t, err)

	assert.Equal(t, "mistral:7b", table.Standard.Model)
	assert.Equal(t, 400, table.Standard.MaxTokens)
	assert.Equal(t, 30*time.Second, table.Standard.Timeout)
	assert.InDelta(t, 0.2, table.Standard.Temperature, 1e-9)
	assert.Equal(t, "llama3.2:1b", table.FallbackModel)
}

func TestLoadProfiles_UnknownTier(t *testing.T) {
	path := writeProfiles(t, `
[profiles.turbo]
model = "qwen2.5:72b"
`)

	_, err := LoadProfiles(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown profile")
}

func TestLoadProfiles_InvalidDuration(t *testing.T) {
	path := writeProfiles(t, `
[profiles.fast]
timeout = "schnell"
`)

	_, err := LoadProfiles(path)
	assert.Error(t, err)
}

func TestLoadProfiles_InvalidAfterOverlay(t *testing.T) {
	path := writeProfiles(t, `
[profiles.reasoning]
max_tokens = -5
`)

	_, err := LoadProfiles(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "max_tokens")
}

func TestLoadProfiles_MissingFile(t *testing.T) {
	_, err := LoadProfiles(filepath.Join(t.TempDir(), "fehlt.toml"))
	assert.Error(t, err)
}
