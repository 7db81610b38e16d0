package topic

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIndex_BestPicksMatchingTopic(t *testing.T) {
	ix := NewIndex()
	ix.Add("faq.md", "ÖFFNUNGSZEITEN", "ÖFFNUNGSZEITEN\nMontag bis Freitag von 9 bis 18 Uhr geöffnet.")
	ix.Add("retoure.md", "RÜCKGABE", "RÜCKGABE\nArtikel können innerhalb von 30 Tagen zurückgegeben werden.")

	match, ok := ix.Best("Wann sind die Öffnungszeiten?")
	require.True(t, ok)
	assert.Equal(t, "faq.md", match.DocID)
	assert.Equal(t, "ÖFFNUNGSZEITEN", match.Title)
	assert.Greater(t, match.Score, 0.0)

	match, ok = ix.Best("Wie funktioniert die Rückgabe von Artikeln?")
	require.True(t, ok)
	assert.Equal(t, "retoure.md", match.DocID)
}

func TestIndex_BestOnEmptyIndex(t *testing.T) {
	ix := NewIndex()

	_, ok := ix.Best("Öffnungszeiten")
	assert.False(t, ok)
}

func TestIndex_BestWithOnlyStopwords(t *testing.T) {
	ix := NewIndex()
	ix.Add("faq.md", "FAQ", "Öffnungszeiten und Rückgabe")

	_, ok := ix.Best("und oder aber die das???")
	assert.False(t, ok)
}

func TestIndex_BestWithNoTermOverlap(t *testing.T) {
	ix := NewIndex()
	ix.Add("faq.md", "FAQ", "Öffnungszeiten Montag bis Freitag")

	_, ok := ix.Best("Raumfahrt Triebwerke Umlaufbahn")
	assert.False(t, ok)
}

func TestIndex_BigramsDisambiguate(t *testing.T) {
	ix := NewIndex()
	// Same unigrams, different word order. Only the first document
	// contains the bigram "support telefon".
	ix.Add("a.md", "A", "support telefon erreichbar werktags")
	ix.Add("b.md", "B", "telefon support erreichbar werktags")

	match, ok := ix.Best("support telefon")
	require.True(t, ok)
	assert.Equal(t, "a.md", match.DocID)
}

func TestIndex_TieGoesToEarlierInsertion(t *testing.T) {
	ix := NewIndex()
	ix.Add("zweit.md", "Z", "Lieferung dauert drei Werktage")
	ix.Add("erst.md", "E", "Lieferung dauert drei Werktage")

	match, ok := ix.Best("Lieferung")
	require.True(t, ok)
	assert.Equal(t, "zweit.md", match.DocID)
}

func TestIndex_RemoveDropsDocument(t *testing.T) {
	ix := NewIndex()
	ix.Add("faq.md", "FAQ", "Öffnungszeiten Montag bis Freitag")
	ix.Add("retoure.md", "RÜCKGABE", "Rückgabe innerhalb von 30 Tagen")
	require.Equal(t, 2, ix.Len())

	ix.Remove("faq.md")
	assert.Equal(t, 1, ix.Len())

	_, ok := ix.Best("Öffnungszeiten")
	assert.False(t, ok)

	match, ok := ix.Best("Rückgabe")
	require.True(t, ok)
	assert.Equal(t, "retoure.md", match.DocID)

	// Removing an unknown id is a no-op.
	ix.Remove("niemals.md")
	assert.Equal(t, 1, ix.Len())
}

func TestIndex_AddReplacesExistingID(t *testing.T) {
	ix := NewIndex()
	ix.Add("faq.md", "FAQ", "Öffnungszeiten Montag bis Freitag")
	ix.Add("faq.md", "FAQ", "Versand erfolgt mit DHL innerhalb Deutschlands")
	assert.Equal(t, 1, ix.Len())

	_, ok := ix.Best("Öffnungszeiten")
	assert.False(t, ok)

	match, ok := ix.Best("Versand")
	require.True(t, ok)
	assert.Equal(t, "faq.md", match.DocID)
	assert.Contains(t, match.Text, "DHL")
}

func TestIndex_ConcurrentReadersAndWriters(t *testing.T) {
	ix := NewIndex()
	ix.Add("basis.md", "BASIS", "Öffnungszeiten Montag bis Freitag")

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				ix.Best("Öffnungszeiten Montag")
			}
		}()
	}
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			for j := 0; j < 20; j++ {
				id := fmt.Sprintf("doc_%d_%d.md", n, j)
				ix.Add(id, "T", "Versand und Lieferung Informationen")
				ix.Remove(id)
			}
		}(i)
	}
	wg.Wait()

	match, ok := ix.Best("Öffnungszeiten")
	require.True(t, ok)
	assert.Equal(t, "basis.md", match.DocID)
}

func TestExtractTerms(t *testing.T) {
	tests := []struct {
		name string
		text string
		want []string
	}{
		{
			name: "unigrams and bigrams",
			text: "Öffnungszeiten Montag Freitag",
			want: []string{"öffnungszeiten", "montag", "freitag", "öffnungszeiten montag", "montag freitag"},
		},
		{
			name: "stopwords and short tokens dropped",
			text: "die Rückgabe ist ab 30 Tagen möglich",
			want: []string{"rückgabe", "tagen", "möglich", "rückgabe tagen", "tagen möglich"},
		},
		{
			name: "punctuation splits tokens",
			text: "Liefer-Zeit: 3-5 Werktage!",
			want: []string{"liefer", "zeit", "werktage", "liefer zeit", "zeit werktage"},
		},
		{
			name: "empty",
			text: "",
			want: []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, extractTerms(tt.text))
		})
	}
}
