// Package topic provides a per-tenant lexical fallback index. It answers
// which document a question is most likely about when semantic retrieval
// is unavailable or yields nothing, using TF-IDF weighted cosine
// similarity over unigrams and bigrams.
package topic

import (
	"math"
	"strings"
	"sync"
	"unicode"
	"unicode/utf8"
)

// Match is the best-scoring document for a query.
type Match struct {
	DocID string
	Title string
	Text  string
	Score float64
}

type indexedDoc struct {
	id     string
	title  string
	text   string
	terms  []string
	vector map[string]float64
}

// Index is a lexical TF-IDF index over a tenant's documents. Safe for
// concurrent readers; document changes take an exclusive lock and
// rebuild the term weights.
type Index struct {
	mu   sync.RWMutex
	docs []*indexedDoc
	byID map[string]int
	idf  map[string]float64
}

// NewIndex creates an empty index.
func NewIndex() *Index {
	return &Index{byID: make(map[string]int)}
}

// Add indexes a document. Adding an existing id replaces its content
// while keeping the original insertion position.
func (ix *Index) Add(docID, title, text string) {
	doc := &indexedDoc{
		id:    docID,
		title: title,
		text:  text,
		terms: extractTerms(text),
	}

	ix.mu.Lock()
	defer ix.mu.Unlock()

	if pos, ok := ix.byID[docID]; ok {
		ix.docs[pos] = doc
	} else {
		ix.byID[docID] = len(ix.docs)
		ix.docs = append(ix.docs, doc)
	}
	ix.rebuild()
}

// Remove deletes a document from the index. Unknown ids are ignored.
func (ix *Index) Remove(docID string) {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	pos, ok := ix.byID[docID]
	if !ok {
		return
	}
	ix.docs = append(ix.docs[:pos], ix.docs[pos+1:]...)
	delete(ix.byID, docID)
	for i := pos; i < len(ix.docs); i++ {
		ix.byID[ix.docs[i].id] = i
	}
	ix.rebuild()
}

// Len returns the number of indexed documents.
func (ix *Index) Len() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return len(ix.docs)
}

// Best returns the document with the highest cosine similarity to the
// query. The second return is false when the index is empty, the query
// has no usable tokens, or no document shares a term with it. Ties go
// to the earlier-inserted document.
func (ix *Index) Best(query string) (Match, bool) {
	queryTerms := extractTerms(query)
	if len(queryTerms) == 0 {
		return Match{}, false
	}

	ix.mu.RLock()
	defer ix.mu.RUnlock()

	if len(ix.docs) == 0 {
		return Match{}, false
	}

	counts := make(map[string]float64)
	total := 0
	for _, term := range queryTerms {
		if _, ok := ix.idf[term]; ok {
			counts[term]++
			total++
		}
	}
	if total == 0 {
		return Match{}, false
	}

	queryVec := make(map[string]float64, len(counts))
	for term, count := range counts {
		queryVec[term] = count / float64(total) * ix.idf[term]
	}
	normalize(queryVec)

	var best *indexedDoc
	bestScore := 0.0
	for _, doc := range ix.docs {
		score := dot(queryVec, doc.vector)
		if score > bestScore {
			best = doc
			bestScore = score
		}
	}
	if best == nil {
		return Match{}, false
	}

	return Match{DocID: best.id, Title: best.title, Text: best.text, Score: bestScore}, true
}

// rebuild recomputes idf values and document vectors. Callers must hold
// the write lock.
func (ix *Index) rebuild() {
	df := make(map[string]int)
	for _, doc := range ix.docs {
		seen := make(map[string]struct{}, len(doc.terms))
		for _, term := range doc.terms {
			if _, ok := seen[term]; ok {
				continue
			}
			seen[term] = struct{}{}
			df[term]++
		}
	}

	n := float64(len(ix.docs))
	ix.idf = make(map[string]float64, len(df))
	for term, count := range df {
		// Smoothed IDF
		ix.idf[term] = math.Log((1+n)/(1+float64(count))) + 1.0
	}

	for _, doc := range ix.docs {
		counts := make(map[string]float64)
		for _, term := range doc.terms {
			counts[term]++
		}
		vec := make(map[string]float64, len(counts))
		for term, count := range counts {
			vec[term] = count / float64(len(doc.terms)) * ix.idf[term]
		}
		normalize(vec)
		doc.vector = vec
	}
}

// extractTerms tokenizes text into lowercase unigrams and bigrams,
// dropping stopwords and tokens of two runes or fewer.
func extractTerms(text string) []string {
	tokens := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})

	filtered := make([]string, 0, len(tokens))
	for _, token := range tokens {
		if utf8.RuneCountInString(token) <= 2 {
			continue
		}
		if _, ok := stopwords[token]; ok {
			continue
		}
		filtered = append(filtered, token)
	}

	terms := make([]string, 0, len(filtered)*2)
	terms = append(terms, filtered...)
	for i := 0; i+1 < len(filtered); i++ {
		terms = append(terms, filtered[i]+" "+filtered[i+1])
	}
	return terms
}

func normalize(vec map[string]float64) {
	var sum float64
	for _, v := range vec {
		sum += v * v
	}
	if sum == 0 {
		return
	}
	norm := math.Sqrt(sum)
	for term := range vec {
		vec[term] /= norm
	}
}

func dot(a, b map[string]float64) float64 {
	if len(b) < len(a) {
		a, b = b, a
	}
	var sum float64
	for term, v := range a {
		sum += v * b[term]
	}
	return sum
}

// stopwords covers common German and English function words. Tokens of
// two runes or fewer are filtered before the lookup, so short entries
// are omitted.
var stopwords = buildStopwords(
	// German
	"der", "die", "das", "den", "dem", "des", "ein", "eine", "einer",
	"eines", "einem", "einen", "und", "oder", "aber", "doch", "denn",
	"dass", "weil", "wenn", "als", "wie", "ist", "sind", "war", "waren",
	"sein", "hat", "habe", "haben", "hatte", "wird", "werden", "wurde",
	"kann", "können", "soll", "sollte", "muss", "müssen", "darf", "mit",
	"von", "für", "auf", "bei", "aus", "nach", "über", "unter", "durch",
	"gegen", "ohne", "zur", "zum", "sich", "nicht", "auch", "noch",
	"nur", "schon", "dann", "hier", "dort", "was", "wer", "wann",
	"warum", "ich", "ihr", "wir", "sie", "man", "mein", "dein", "kein",
	"sehr", "mehr", "alle", "beim", "vom", "ins",
	// English
	"the", "and", "but", "for", "with", "from", "this", "that", "these",
	"those", "was", "were", "been", "being", "have", "has", "had",
	"does", "did", "will", "would", "could", "should", "may", "might",
	"can", "you", "she", "they", "what", "which", "who", "when",
	"where", "why", "how", "are", "not",
)

func buildStopwords(words ...string) map[string]struct{} {
	m := make(map[string]struct{}, len(words))
	for _, w := range words {
		m[w] = struct{}{}
	}
	return m
}
