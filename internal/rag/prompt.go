package rag

import (
	"fmt"
	"regexp"
	"strings"
)

// assistantPreamble instructs the standard document-assistant persona.
const assistantPreamble = `Du bist ein Dokumenten-Assistent. Antworte PRÄZISE und KURZ in eigenen Worten.
NIEMALS den Dokumententext wörtlich kopieren, NIEMALS mehr als 3 Sätze antworten.
Nutze NUR Informationen aus dem Dokument und fokussiere dich auf die Frage.`

// supportPreamble instructs the citation-free support persona used by
// tenants whose answers must read like support chat.
const supportPreamble = `Du bist ein Support-Mitarbeiter. Antworte kurz, direkt und verständlich.
Erkläre nicht, wie du auf die Antwort kommst, und nenne keine Quellen.
Wenn Informationen fehlen, stelle höchstens eine Rückfrage.`

// buildPrompt assembles the generation prompt from at most maxChunks
// retrieved chunks. It returns the prompt and the joined context text,
// whose length feeds complexity routing.
func buildPrompt(question string, chunks []contextChunk, maxChunks int, supportStyle bool) (prompt, contextText string) {
	if len(chunks) > maxChunks {
		chunks = chunks[:maxChunks]
	}
	parts := make([]string, len(chunks))
	for i, chunk := range chunks {
		parts[i] = fmt.Sprintf("%d. %s:\n%s", i+1, chunk.title, chunk.text)
	}
	contextText = strings.Join(parts, "\n\n")

	preamble := assistantPreamble
	if supportStyle {
		preamble = supportPreamble
	}
	prompt = preamble +
		"\n\n=== DOKUMENT ===\n" + contextText +
		"\n\n=== FRAGE ===\n" + question +
		"\n\n=== ANTWORT (MAX 2-3 SÄTZE) ==="
	return prompt, contextText
}

// buildBarePrompt assembles a prompt without document context.
func buildBarePrompt(question string, supportStyle bool) string {
	preamble := assistantPreamble
	if supportStyle {
		preamble = supportPreamble
	}
	return preamble +
		"\n\n=== FRAGE ===\n" + question +
		"\n\n=== ANTWORT (MAX 2-3 SÄTZE) ==="
}

var (
	citationMarker = regexp.MustCompile(`\s?\[\d+\]`)
	sentenceEnd    = regexp.MustCompile(`[.!?]+`)
)

// stripCitations removes bracketed citation markers and trailing source
// lines from a generated answer.
func stripCitations(answer string) string {
	answer = citationMarker.ReplaceAllString(answer, "")

	lines := strings.Split(answer, "\n")
	for len(lines) > 0 {
		last := strings.ToLower(strings.TrimSpace(lines[len(lines)-1]))
		if last == "" || strings.HasPrefix(last, "quelle:") || strings.HasPrefix(last, "quellen:") {
			lines = lines[:len(lines)-1]
			continue
		}
		break
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}

// excerpt reduces a chunk to its first substantial sentences, capped for
// chat display.
func excerpt(text string) string {
	var kept []string
	for _, sentence := range sentenceEnd.Split(text, -1) {
		sentence = strings.TrimSpace(sentence)
		if len([]rune(sentence)) > 20 {
			kept = append(kept, sentence)
		}
		if len(kept) == 3 {
			break
		}
	}
	if len(kept) > 0 {
		return strings.Join(kept, ". ") + "."
	}

	runes := []rune(strings.TrimSpace(text))
	if len(runes) > 200 {
		return string(runes[:200]) + "..."
	}
	return string(runes)
}
