package rag

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBuildPrompt(t *testing.T) {
	chunks := []contextChunk{
		{title: "ÖFFNUNGSZEITEN", text: "Montag bis Freitag von 9 bis 18 Uhr geöffnet."},
		{title: "RÜCKGABE", text: "Rückgabe innerhalb von 30 Tagen mit Kassenbon."},
	}

	prompt, contextText := buildPrompt("Wann habt ihr geöffnet?", chunks, 3, false)

	wantContext := "1. ÖFFNUNGSZEITEN:\nMontag bis Freitag von 9 bis 18 Uhr geöffnet.\n\n" +
		"2. RÜCKGABE:\nRückgabe innerhalb von 30 Tagen mit Kassenbon."
	assert.Equal(t, wantContext, contextText)
	assert.Contains(t, prompt, "Dokumenten-Assistent")
	assert.Contains(t, prompt, "=== DOKUMENT ===\n"+wantContext)
	assert.Contains(t, prompt, "=== FRAGE ===\nWann habt ihr geöffnet?")
	assert.True(t, strings.HasSuffix(prompt, "=== ANTWORT (MAX 2-3 SÄTZE) ==="))
}

func TestBuildPrompt_CapsChunks(t *testing.T) {
	chunks := []contextChunk{
		{title: "EINS", text: "Erster Abschnitt."},
		{title: "ZWEI", text: "Zweiter Abschnitt."},
		{title: "DREI", text: "Dritter Abschnitt."},
		{title: "VIER", text: "Vierter Abschnitt."},
	}

	prompt, contextText := buildPrompt("Was gilt?", chunks, 3, false)

	assert.Contains(t, contextText, "3. DREI:")
	assert.NotContains(t, contextText, "VIER")
	assert.NotContains(t, prompt, "4.")
}

func TestBuildPrompt_SupportStyle(t *testing.T) {
	chunks := []contextChunk{{title: "VERSAND", text: "Versand dauert zwei Werktage."}}

	prompt, _ := buildPrompt("Wie lange dauert der Versand?", chunks, 3, true)

	assert.Contains(t, prompt, "Support-Mitarbeiter")
	assert.NotContains(t, prompt, "Dokumenten-Assistent")
	assert.Contains(t, prompt, "=== DOKUMENT ===")
}

func TestBuildBarePrompt(t *testing.T) {
	prompt := buildBarePrompt("Was ist die Hauptstadt von Österreich?", false)

	assert.Contains(t, prompt, "Dokumenten-Assistent")
	assert.NotContains(t, prompt, "=== DOKUMENT ===")
	assert.Contains(t, prompt, "=== FRAGE ===\nWas ist die Hauptstadt von Österreich?")
	assert.True(t, strings.HasSuffix(prompt, "=== ANTWORT (MAX 2-3 SÄTZE) ==="))

	support := buildBarePrompt("Und jetzt?", true)
	assert.Contains(t, support, "Support-Mitarbeiter")
}

func TestStripCitations(t *testing.T) {
	tests := []struct {
		name   string
		answer string
		want   string
	}{
		{
			name:   "markers mid text",
			answer: "Die Rückgabe [1] ist innerhalb von 30 Tagen [2] möglich.",
			want:   "Die Rückgabe ist innerhalb von 30 Tagen möglich.",
		},
		{
			name:   "marker at line start",
			answer: "[1] Laut Dokument gilt die Garantie zwei Jahre.",
			want:   "Laut Dokument gilt die Garantie zwei Jahre.",
		},
		{
			name:   "trailing quellen line",
			answer: "Der Versand ist kostenfrei.\n\nQuellen: faq.txt, preise.txt",
			want:   "Der Versand ist kostenfrei.",
		},
		{
			name:   "trailing quelle line mixed case",
			answer: "Der Versand ist kostenfrei.\nQUELLE: Abschnitt 2",
			want:   "Der Versand ist kostenfrei.",
		},
		{
			name:   "source mention mid text survives",
			answer: "Die Quelle: siehe Anhang.\nMehr dazu im Handbuch.",
			want:   "Die Quelle: siehe Anhang.\nMehr dazu im Handbuch.",
		},
		{
			name:   "plain answer unchanged",
			answer: "Montag bis Freitag von 9 bis 18 Uhr.",
			want:   "Montag bis Freitag von 9 bis 18 Uhr.",
		},
		{
			name:   "only source line leaves empty answer",
			answer: "Quellen: faq.txt",
			want:   "",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, stripCitations(tt.answer))
		})
	}
}

func TestExcerpt(t *testing.T) {
	t.Run("keeps first three substantial sentences", func(t *testing.T) {
		text := "Die Lieferung erfolgt innerhalb von drei Werktagen. " +
			"Der Versand ist ab 50 Euro kostenfrei. " +
			"Retouren sind innerhalb von 30 Tagen möglich! " +
			"Bei Fragen hilft der Kundendienst gerne weiter."

		got := excerpt(text)

		assert.Equal(t, "Die Lieferung erfolgt innerhalb von drei Werktagen. "+
			"Der Versand ist ab 50 Euro kostenfrei. "+
			"Retouren sind innerhalb von 30 Tagen möglich.", got)
	})

	t.Run("skips short fragments", func(t *testing.T) {
		got := excerpt("Ja. Nein. Die Antwort steht im beiliegenden Handbuch.")

		assert.Equal(t, "Die Antwort steht im beiliegenden Handbuch.", got)
	})

	t.Run("truncates when no sentence is substantial", func(t *testing.T) {
		text := strings.Repeat("Kurz. ", 50)

		got := excerpt(text)

		assert.True(t, strings.HasSuffix(got, "..."))
		assert.Len(t, []rune(got), 203)
		assert.True(t, strings.HasPrefix(got, "Kurz. Kurz."))
	})

	t.Run("short text returned as is", func(t *testing.T) {
		assert.Equal(t, "Siehe Anhang", excerpt("Siehe Anhang"))
	})
}
