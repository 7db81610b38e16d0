package document

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChunkIDRoundTrip(t *testing.T) {
	tests := []struct {
		name     string
		filename string
		version  int
		position int
	}{
		{name: "simple", filename: "faq.txt", version: 1, position: 0},
		{name: "multi digit", filename: "handbuch.pdf", version: 12, position: 345},
		{name: "filename with colons", filename: "notizen:2024:v2.txt", version: 3, position: 7},
		{name: "filename with spaces", filename: "urlaubs regelung.md", version: 2, position: 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id := chunkID(tt.filename, tt.version, tt.position)

			filename, version, position, ok := parseChunkID(id)
			require.True(t, ok, "id %q must parse", id)
			assert.Equal(t, tt.filename, filename)
			assert.Equal(t, tt.version, version)
			assert.Equal(t, tt.position, position)
		})
	}
}

func TestParseChunkID_Invalid(t *testing.T) {
	tests := []struct {
		name string
		id   string
	}{
		{name: "empty", id: ""},
		{name: "no separators", id: "faq.txt"},
		{name: "missing position", id: "faq.txt:v1"},
		{name: "version without prefix", id: "faq.txt:1:0"},
		{name: "version zero", id: "faq.txt:v0:0"},
		{name: "version not a number", id: "faq.txt:vx:0"},
		{name: "negative position", id: "faq.txt:v1:-1"},
		{name: "position not a number", id: "faq.txt:v1:zwei"},
		{name: "empty filename", id: ":v1:0"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, _, ok := parseChunkID(tt.id)
			assert.False(t, ok)
		})
	}
}

func TestVersionIDs(t *testing.T) {
	assert.Equal(t,
		[]string{"faq.txt:v2:0", "faq.txt:v2:1", "faq.txt:v2:2"},
		versionIDs("faq.txt", 2, 3))
	assert.Empty(t, versionIDs("faq.txt", 1, 0))
}

func TestValidateFilename(t *testing.T) {
	valid := []string{"faq.txt", "Urlaubsregelung 2024.md", "notizen:v2.txt", "ö.pdf"}
	for _, filename := range valid {
		assert.NoError(t, ValidateFilename(filename), "filename %q", filename)
	}

	invalid := []string{
		"",
		strings.Repeat("a", 256),
		".",
		"..",
		"../faq.txt",
		"unterordner/faq.txt",
		"nul\x00byte.txt",
	}
	for _, filename := range invalid {
		assert.ErrorIs(t, ValidateFilename(filename), ErrInvalidFilename, "filename %q", filename)
	}
}

func TestDefaultSettings(t *testing.T) {
	s := DefaultSettings()
	assert.True(t, s.ShowSources)
	assert.False(t, s.StripCitations)
}
