package router

import "strings"

// Question carries the routing signals for one request.
type Question struct {
	Text       string
	ChunksUsed int
	ContextLen int
	RSQ        float64
}

// Band awards Weight when a signal crosses Bound. Bands are checked in
// order and the first match wins, so list the tightest bound first.
type Band struct {
	Bound  float64
	Weight float64
}

// Heuristics holds the additive complexity signals as data. Each signal
// contributes its weight independently; the sum is capped at 1.0.
type Heuristics struct {
	// WordBands match when the question word count exceeds Bound.
	WordBands []Band
	// ChunkBands match when the number of retrieved chunks exceeds Bound.
	ChunkBands []Band
	// ContextBands match when the total context length in runes exceeds Bound.
	ContextBands []Band
	// RSQBands match when retrieval confidence falls below Bound. Weak
	// retrieval needs more reasoning from the model, not less.
	RSQBands []Band

	// Keywords are lowercased substrings that mark analytical questions.
	Keywords      []string
	KeywordWeight float64

	// Connectors are lowercased tokens that mark compound questions.
	Connectors      []string
	ConnectorWeight float64
}

// DefaultHeuristics returns the built-in complexity table, tuned for
// German-language support questions.
func DefaultHeuristics() Heuristics {
	return Heuristics{
		WordBands:    []Band{{Bound: 15, Weight: 0.2}, {Bound: 8, Weight: 0.1}},
		ChunkBands:   []Band{{Bound: 3, Weight: 0.2}, {Bound: 1, Weight: 0.1}},
		ContextBands: []Band{{Bound: 2000, Weight: 0.2}, {Bound: 1000, Weight: 0.1}},
		RSQBands:     []Band{{Bound: 0.3, Weight: 0.2}, {Bound: 0.5, Weight: 0.1}},
		Keywords: []string{
			"warum", "weshalb", "wieso", "wie funktioniert", "erkläre",
			"analysiere", "vergleiche", "unterschied", "zusammenhang",
			"begründ", "schlussfolger",
		},
		KeywordWeight:   0.3,
		Connectors:      []string{" und ", " sowie ", " oder "},
		ConnectorWeight: 0.1,
	}
}

// Complexity scores a question in [0,1]. Pure function of the signals and
// the heuristic table.
func (h Heuristics) Complexity(q Question) float64 {
	lower := strings.ToLower(q.Text)

	score := firstAbove(h.WordBands, float64(len(strings.Fields(q.Text))))
	if containsAny(lower, h.Keywords) {
		score += h.KeywordWeight
	}
	score += firstAbove(h.ChunkBands, float64(q.ChunksUsed))
	score += firstAbove(h.ContextBands, float64(q.ContextLen))
	score += firstBelow(h.RSQBands, q.RSQ)
	if containsAny(lower, h.Connectors) {
		score += h.ConnectorWeight
	}

	if score > 1.0 {
		return 1.0
	}
	return score
}

// firstAbove returns the weight of the first band whose bound the value
// strictly exceeds.
func firstAbove(bands []Band, v float64) float64 {
	for _, b := range bands {
		if v > b.Bound {
			return b.Weight
		}
	}
	return 0
}

// firstBelow returns the weight of the first band whose bound the value
// falls strictly under.
func firstBelow(bands []Band, v float64) float64 {
	for _, b := range bands {
		if v < b.Bound {
			return b.Weight
		}
	}
	return 0
}

func containsAny(s string, subs []string) bool {
	for _, sub := range subs {
		if sub != "" && strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
