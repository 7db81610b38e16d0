// Package chunker splits document text into ordered, titled sections
// suitable for independent retrieval.
//
// Sections are detected by heading heuristics (ALL-CAPS lines, numbered
// headings, markdown headings). Text without any detected heading degrades
// to paragraph splitting on blank lines.
package chunker

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"
)

// Chunk is the minimal retrievable unit of a document.
type Chunk struct {
	// SectionID is a stable, human-readable identifier derived from the
	// title. Propagated into retrieval results and citations.
	SectionID string

	// Title is the detected or synthesized section heading.
	Title string

	// Text is the title plus the section body, the unit that gets embedded.
	Text string

	// Position is the 0-based index of the chunk within the document.
	Position int
}

// Chunker splits raw text into chunks.
type Chunker struct {
	maxHeadingLen   int
	maxHeadingWords int
	maxNumberedLen  int
	maxSectionID    int
}

// Option configures a Chunker.
type Option func(*Chunker)

// WithMaxHeadingLength sets the maximum length of an ALL-CAPS heading line.
func WithMaxHeadingLength(n int) Option {
	return func(c *Chunker) { c.maxHeadingLen = n }
}

// WithMaxHeadingWords sets the maximum word count of an ALL-CAPS heading line.
func WithMaxHeadingWords(n int) Option {
	return func(c *Chunker) { c.maxHeadingWords = n }
}

// WithMaxNumberedLength sets the maximum length of numbered and markdown
// heading lines.
func WithMaxNumberedLength(n int) Option {
	return func(c *Chunker) { c.maxNumberedLen = n }
}

// New creates a Chunker with default heuristics.
func New(opts ...Option) *Chunker {
	c := &Chunker{
		maxHeadingLen:   50,
		maxHeadingWords: 8,
		maxNumberedLen:  60,
		maxSectionID:    50,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

var (
	numberedHeading = regexp.MustCompile(`^\d+\.\s+.+$`)
	blankRun        = regexp.MustCompile(`\n\s*\n+`)
	whitespaceRun   = regexp.MustCompile(`\s+`)
)

// Split segments text into chunks. Chunks that are empty after trimming are
// dropped. Text before the first detected heading is not retrievable on its
// own and is dropped with it.
func (c *Chunker) Split(text string) []Chunk {
	lines := strings.Split(text, "\n")
	for i, ln := range lines {
		lines[i] = strings.TrimRight(ln, " \t\r")
	}

	var chunks []Chunk
	var currentTitle string
	var currentLines []string

	flush := func() {
		if currentTitle != "" && len(currentLines) > 0 {
			body := joinNonBlank(currentLines)
			if body != "" {
				chunks = append(chunks, c.newChunk(currentTitle, body, len(chunks)))
			}
		}
		currentTitle = ""
		currentLines = nil
	}

	for _, ln := range lines {
		s := strings.TrimSpace(ln)
		if s == "" {
			// Keep blank lines as paragraph separators inside a section.
			if len(currentLines) > 0 {
				currentLines = append(currentLines, "")
			}
			continue
		}

		// Heading heuristic 1: ALL-CAPS line ("ÖFFNUNGSZEITEN").
		if isUpper(s) && len([]rune(s)) <= c.maxHeadingLen && len(strings.Fields(s)) <= c.maxHeadingWords {
			flush()
			currentTitle = s
			continue
		}

		// Heading heuristic 2: numbered heading ("3. Urlaubsregelung").
		if len([]rune(s)) <= c.maxNumberedLen && numberedHeading.MatchString(s) {
			flush()
			currentTitle = s
			continue
		}

		// Heading heuristic 3: markdown heading ("## Überschrift").
		if strings.HasPrefix(s, "#") && len([]rune(s)) <= c.maxNumberedLen {
			flush()
			currentTitle = strings.TrimSpace(strings.TrimLeft(s, "#"))
			continue
		}

		currentLines = append(currentLines, ln)
	}
	flush()

	if len(chunks) == 0 {
		chunks = c.splitParagraphs(text)
	}
	uniqueSectionIDs(chunks)
	return chunks
}

// uniqueSectionIDs disambiguates colliding ids with a numeric suffix so
// repeated headings stay individually addressable.
func uniqueSectionIDs(chunks []Chunk) {
	seen := make(map[string]int, len(chunks))
	for i, ch := range chunks {
		n := seen[ch.SectionID]
		seen[ch.SectionID] = n + 1
		if n > 0 {
			chunks[i].SectionID = fmt.Sprintf("%s_%d", ch.SectionID, n+1)
		}
	}
}

// splitParagraphs is the fallback for text without detected headings: split
// on blank-line runs; a short first line becomes the paragraph's title.
// Text that yields no paragraphs at all becomes a single placeholder chunk.
func (c *Chunker) splitParagraphs(text string) []Chunk {
	trimmed := strings.TrimSpace(text)

	var chunks []Chunk
	if trimmed != "" {
		for _, para := range blankRun.Split(trimmed, -1) {
			para = strings.TrimSpace(para)
			if para == "" {
				continue
			}

			paraLines := strings.Split(para, "\n")
			var title, body string
			if len([]rune(paraLines[0])) <= c.maxHeadingLen {
				title = strings.TrimSpace(paraLines[0])
				body = joinNonBlank(paraLines[1:])
			} else {
				title = fmt.Sprintf("Abschnitt %d", len(chunks)+1)
				body = joinNonBlank(paraLines)
			}
			if title == "" && body == "" {
				continue
			}
			chunks = append(chunks, c.newChunk(title, body, len(chunks)))
		}
	}

	if len(chunks) == 0 {
		placeholder := joinNonBlank(strings.Split(trimmed, "\n"))
		if placeholder == "" {
			placeholder = "Leeres Dokument"
		}
		chunks = []Chunk{{
			SectionID: "doc_0",
			Title:     "DOKUMENT",
			Text:      placeholder,
			Position:  0,
		}}
	}
	return chunks
}

// newChunk builds a chunk with its derived section id. position is the
// chunk's 0-based index, also used to disambiguate colliding ids.
func (c *Chunker) newChunk(title, body string, position int) Chunk {
	id := c.sectionID(title)
	if id == "" {
		id = fmt.Sprintf("section_%d", position)
	}
	text := title
	if body != "" {
		text = title + "\n" + body
	}
	return Chunk{
		SectionID: id,
		Title:     title,
		Text:      text,
		Position:  position,
	}
}

// sectionID derives a stable identifier from a title: lowercase, word
// characters and hyphens kept, whitespace collapsed to underscores,
// truncated.
func (c *Chunker) sectionID(title string) string {
	lower := strings.ToLower(title)
	var b strings.Builder
	for _, r := range lower {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' || r == '-' || unicode.IsSpace(r) {
			b.WriteRune(r)
		}
	}
	id := whitespaceRun.ReplaceAllString(b.String(), "_")
	runes := []rune(id)
	if len(runes) > c.maxSectionID {
		runes = runes[:c.maxSectionID]
	}
	return strings.Trim(string(runes), "_")
}

// joinNonBlank joins the non-blank lines with newlines, dropping paragraph
// separators inside a section body.
func joinNonBlank(lines []string) string {
	kept := make([]string, 0, len(lines))
	for _, ln := range lines {
		if strings.TrimSpace(ln) != "" {
			kept = append(kept, ln)
		}
	}
	return strings.TrimSpace(strings.Join(kept, "\n"))
}

// isUpper reports whether s contains at least one cased rune and no
// lowercase runes.
func isUpper(s string) bool {
	return strings.ToUpper(s) == s && strings.ToLower(s) != s
}
