package rag

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/ragd/internal/document"
	"github.com/fyrsmithlabs/ragd/internal/embeddings"
	"github.com/fyrsmithlabs/ragd/internal/extract"
	"github.com/fyrsmithlabs/ragd/internal/llm"
	"github.com/fyrsmithlabs/ragd/internal/relevance"
	"github.com/fyrsmithlabs/ragd/internal/router"
	"github.com/fyrsmithlabs/ragd/internal/vectorstore"
)

const faqText = `ÖFFNUNGSZEITEN
Montag bis Freitag von 9 bis 18 Uhr geöffnet.
Samstag von 10 bis 14 Uhr geöffnet.

RÜCKGABE
Artikel können innerhalb von 30 Tagen zurückgegeben werden.
Die Rückgabe benötigt den Kassenbon.
`

type generateCall struct {
	model  string
	prompt string
	opts   llm.Options
}

// fakeGenerator records calls and replies from a fixed script.
type fakeGenerator struct {
	mu    sync.Mutex
	calls  []generateCall
	reply  string
	errs   map[string]error
}

var _ llm.Generator = (*fakeGenerator)(nil)

func (g *fakeGenerator) Generate(_ context.Context, model, prompt string, opts llm.Options) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls = append(g.calls, generateCall{model: model, prompt: prompt, opts: opts})
	if err := g.errs[model]; err != nil {
		return "", err
	}
	if g.reply != "" {
		return g.reply, nil
	}
	return "Die Antwort steht im Dokument.", nil
}

func (g *fakeGenerator) Healthy(context.Context) error { return nil }
func (g *fakeGenerator) Close() error                  { return nil }

func (g *fakeGenerator) callCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.calls)
}

func (g *fakeGenerator) lastCall() generateCall {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls[len(g.calls)-1]
}

// cannedStore serves scripted query results so retrieval scores are exact.
type cannedStore struct {
	vectorstore.Store
	mu      sync.Mutex
	hits    []vectorstore.SearchResult
	queries int
	lastK   int
}

func (s *cannedStore) Query(ctx context.Context, tenant string, vector []float32, k int) ([]vectorstore.SearchResult, error) {
	s.mu.Lock()
	s.queries++
	s.lastK = k
	hits := s.hits
	s.mu.Unlock()
	if hits != nil {
		return append([]vectorstore.SearchResult(nil), hits...), nil
	}
	return s.Store.Query(ctx, tenant, vector, k)
}

func (s *cannedStore) queryCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.queries
}

func (s *cannedStore) lastQueryK() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastK
}

type ragEnv struct {
	t       *testing.T
	store   *cannedStore
	gen     *fakeGenerator
	manager *document.Manager
	engine  *Engine
}

type ragEnvConfig struct {
	engine    Config
	relevance relevance.Config
	tenants   map[string]document.Settings
}

func newRAGEnv(t *testing.T, opts ragEnvConfig) *ragEnv {
	t.Helper()

	inner, err := vectorstore.NewChromemStore(vectorstore.ChromemConfig{VectorSize: 64}, nil)
	require.NoError(t, err)
	store := &cannedStore{Store: inner}
	embedder := embeddings.NewHashProvider(64)

	manager, err := document.NewManager(document.Config{
		DataDir: t.TempDir(),
		Tenants: opts.tenants,
	}, document.Dependencies{
		Store:     store,
		Embedder:  embedder,
		Extractor: extract.NewPlainText(),
	}, zap.NewNop())
	require.NoError(t, err)

	gen := &fakeGenerator{}
	rt, err := router.New(router.Config{}, gen, zap.NewNop())
	require.NoError(t, err)
	scorer, err := relevance.NewScorer(opts.relevance)
	require.NoError(t, err)

	engine, err := NewEngine(opts.engine, Dependencies{
		Manager:  manager,
		Embedder: embedder,
		Scorer:   scorer,
		Router:   rt,
	}, zap.NewNop())
	require.NoError(t, err)

	return &ragEnv{t: t, store: store, gen: gen, manager: manager, engine: engine}
}

func (env *ragEnv) ingest(tenant, filename, text string) document.Meta {
	env.t.Helper()
	meta, err := env.manager.Ingest(context.Background(), tenant, filename, []byte(text), "text/plain")
	require.NoError(env.t, err)
	return meta
}

// faqHits mirrors the two chunks of faqText at version 1.
func faqHits(topScore, secondScore float32) []vectorstore.SearchResult {
	return []vectorstore.SearchResult{
		{
			ID:      "faq.txt:v1:0",
			Content: "ÖFFNUNGSZEITEN\n\nMontag bis Freitag von 9 bis 18 Uhr geöffnet.\nSamstag von 10 bis 14 Uhr geöffnet.",
			Score:   topScore,
			Metadata: map[string]string{
				document.MetaTitle: "ÖFFNUNGSZEITEN",
			},
		},
		{
			ID:      "faq.txt:v1:1",
			Content: "RÜCKGABE\n\nArtikel können innerhalb von 30 Tagen zurückgegeben werden.\nDie Rückgabe benötigt den Kassenbon.",
			Score:   secondScore,
			Metadata: map[string]string{
				document.MetaTitle: "RÜCKGABE",
			},
		},
	}
}

func TestNewEngine_Validation(t *testing.T) {
	env := newRAGEnv(t, ragEnvConfig{})
	scorer, err := relevance.NewScorer(relevance.Config{})
	require.NoError(t, err)
	rt, err := router.New(router.Config{}, &fakeGenerator{}, zap.NewNop())
	require.NoError(t, err)

	deps := Dependencies{
		Manager:  env.manager,
		Embedder: embeddings.NewHashProvider(64),
		Scorer:   scorer,
		Router:   rt,
	}

	tests := []struct {
		name   string
		config Config
		mutate func(*Dependencies)
	}{
		{name: "missing manager", mutate: func(d *Dependencies) { d.Manager = nil }},
		{name: "missing embedder", mutate: func(d *Dependencies) { d.Embedder = nil }},
		{name: "missing scorer", mutate: func(d *Dependencies) { d.Scorer = nil }},
		{name: "missing router", mutate: func(d *Dependencies) { d.Router = nil }},
		{name: "negative top_k", config: Config{TopK: -1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := deps
			if tt.mutate != nil {
				tt.mutate(&d)
			}
			_, err := NewEngine(tt.config, d, nil)
			assert.Error(t, err)
		})
	}
}

func TestAnswer_GroundedAnswer(t *testing.T) {
	env := newRAGEnv(t, ragEnvConfig{})
	ctx := context.Background()
	env.ingest("acme", "faq.txt", faqText)
	env.store.hits = faqHits(0.9, 0.5)
	env.gen.reply = "  Der Laden hat werktags von 9 bis 18 Uhr geöffnet.  "

	resp, err := env.engine.Answer(ctx, "acme", "Warum schlägt der Export fehl?", 3, true)
	require.NoError(t, err)

	assert.Equal(t, "Der Laden hat werktags von 9 bis 18 Uhr geöffnet.", resp.Answer)
	assert.Equal(t, ModeRAG, resp.Mode)
	assert.Equal(t, "qwen2.5:7b", resp.Model)
	assert.InDelta(t, 0.775, resp.RSQ, 1e-9)

	require.Len(t, resp.Sources, 2)
	assert.Equal(t, "faq.txt:v1:0", resp.Sources[0].ID)
	assert.Equal(t, "ÖFFNUNGSZEITEN", resp.Sources[0].Title)
	assert.InDelta(t, 0.9, resp.Sources[0].Score, 1e-6)

	require.Equal(t, 1, env.gen.callCount())
	call := env.gen.lastCall()
	assert.Equal(t, "qwen2.5:7b", call.model)
	assert.Equal(t, 400, call.opts.MaxTokens)
	assert.InDelta(t, 0.2, call.opts.Temperature, 1e-9)
	assert.Contains(t, call.prompt, "Dokumenten-Assistent")
	assert.Contains(t, call.prompt, "=== DOKUMENT ===")
	assert.Contains(t, call.prompt, "1. ÖFFNUNGSZEITEN:\nÖFFNUNGSZEITEN")
	assert.Contains(t, call.prompt, "2. RÜCKGABE:\nRÜCKGABE")
	assert.Contains(t, call.prompt, "=== FRAGE ===\nWarum schlägt der Export fehl?")
}

func TestAnswer_LowRelevanceSkipsModel(t *testing.T) {
	env := newRAGEnv(t, ragEnvConfig{})
	ctx := context.Background()
	env.ingest("acme", "faq.txt", faqText)
	env.store.hits = faqHits(0.2, 0.1)

	resp, err := env.engine.Answer(ctx, "acme", "Wie lautet die Antwort?", 3, true)
	require.NoError(t, err)

	assert.Equal(t, ModeFallback, resp.Mode)
	assert.Contains(t, resp.Answer, "leider keine Informationen")
	assert.Empty(t, resp.Model)
	// 0.75*0.2 + 0.25*0.1, below the 0.35 default threshold.
	assert.InDelta(t, 0.175, resp.RSQ, 1e-9)
	assert.Len(t, resp.Sources, 2)

	assert.Zero(t, env.gen.callCount(), "the model must not be invoked below the threshold")
}

func TestAnswer_TopicFallbackGroundsAnswer(t *testing.T) {
	env := newRAGEnv(t, ragEnvConfig{
		relevance: relevance.Config{Threshold: 0.01},
	})
	ctx := context.Background()
	env.ingest("acme", "faq.txt", faqText)
	env.store.hits = []vectorstore.SearchResult{}

	resp, err := env.engine.Answer(ctx, "acme", "rückgabe mit kassenbon", 3, true)
	require.NoError(t, err)

	assert.Equal(t, ModeRAG, resp.Mode)
	assert.Greater(t, resp.RSQ, 0.0)
	require.Len(t, resp.Sources, 1)
	assert.Equal(t, "faq.txt:v1:1", resp.Sources[0].ID)
	assert.Equal(t, "RÜCKGABE", resp.Sources[0].Title)

	require.Equal(t, 1, env.gen.callCount())
	assert.Contains(t, env.gen.lastCall().prompt, "1. RÜCKGABE:")
}

func TestAnswer_NoContextFallsBack(t *testing.T) {
	env := newRAGEnv(t, ragEnvConfig{})
	ctx := context.Background()
	env.ingest("acme", "faq.txt", faqText)
	env.store.hits = []vectorstore.SearchResult{}

	resp, err := env.engine.Answer(ctx, "acme", "xylophon quintessenz", 3, true)
	require.NoError(t, err)

	assert.Equal(t, ModeFallback, resp.Mode)
	assert.Contains(t, resp.Answer, "keine Informationen gefunden")
	assert.Zero(t, resp.RSQ)
	assert.Empty(t, resp.Sources)
	assert.Zero(t, env.gen.callCount())
}

func TestAnswer_UseRAGDisabled(t *testing.T) {
	env := newRAGEnv(t, ragEnvConfig{})
	ctx := context.Background()
	env.ingest("acme", "faq.txt", faqText)

	resp, err := env.engine.Answer(ctx, "acme", "Wann habt ihr geöffnet?", 3, false)
	require.NoError(t, err)

	assert.Equal(t, ModeFallback, resp.Mode)
	assert.Contains(t, resp.Answer, "keine Informationen gefunden")
	assert.Zero(t, env.store.queryCount(), "retrieval must be skipped")
	assert.Zero(t, env.gen.callCount())
}

func TestAnswer_EmptyCorpusFallsBack(t *testing.T) {
	env := newRAGEnv(t, ragEnvConfig{})
	ctx := context.Background()
	env.ingest("acme", "faq.txt", faqText)
	require.NoError(t, env.manager.Delete(ctx, "acme", "faq.txt"))

	resp, err := env.engine.Answer(ctx, "acme", "Wann habt ihr geöffnet?", 3, true)
	require.NoError(t, err)

	assert.Equal(t, ModeFallback, resp.Mode)
	assert.Zero(t, env.store.queryCount())
	assert.Zero(t, env.gen.callCount())
}

func TestAnswer_UnknownTenant(t *testing.T) {
	env := newRAGEnv(t, ragEnvConfig{})

	_, err := env.engine.Answer(context.Background(), "ghost", "Wann habt ihr geöffnet?", 3, true)
	assert.ErrorIs(t, err, document.ErrTenantNotFound)
	assert.Zero(t, env.gen.callCount())
}

func TestAnswer_UnconditionedModelAnswer(t *testing.T) {
	env := newRAGEnv(t, ragEnvConfig{
		engine: Config{AllowUnconditioned: true},
	})
	ctx := context.Background()
	env.ingest("acme", "faq.txt", faqText)
	require.NoError(t, env.manager.Delete(ctx, "acme", "faq.txt"))
	env.gen.reply = "Gerne helfe ich trotzdem weiter."

	resp, err := env.engine.Answer(ctx, "acme", "Wann habt ihr geöffnet?", 3, true)
	require.NoError(t, err)

	assert.Equal(t, ModeRAG, resp.Mode)
	assert.Equal(t, "Gerne helfe ich trotzdem weiter.", resp.Answer)
	assert.NotEmpty(t, resp.Model)
	assert.Empty(t, resp.Sources)

	require.Equal(t, 1, env.gen.callCount())
	assert.NotContains(t, env.gen.lastCall().prompt, "=== DOKUMENT ===")
}

func TestAnswer_SearchKClamp(t *testing.T) {
	env := newRAGEnv(t, ragEnvConfig{})
	ctx := context.Background()
	env.ingest("acme", "faq.txt", faqText)
	env.store.hits = faqHits(0.9, 0.5)

	_, err := env.engine.Answer(ctx, "acme", "Wann habt ihr geöffnet?", 10, true)
	require.NoError(t, err)
	assert.Equal(t, 5, env.store.lastQueryK())

	// topK <= 0 falls back to the configured default plus the margin hit.
	_, err = env.engine.Answer(ctx, "acme", "Wann habt ihr geöffnet?", 0, true)
	require.NoError(t, err)
	assert.Equal(t, 4, env.store.lastQueryK())
}

func TestAnswer_CitationFreeTenant(t *testing.T) {
	env := newRAGEnv(t, ragEnvConfig{
		tenants: map[string]document.Settings{
			"acme": {ShowSources: false, StripCitations: true},
		},
	})
	ctx := context.Background()
	env.ingest("acme", "faq.txt", faqText)
	env.store.hits = faqHits(0.9, 0.5)
	env.gen.reply = "Die Öffnungszeiten [1] stehen im Aushang. [2]\n\nQuellen: Abschnitt 1"

	resp, err := env.engine.Answer(ctx, "acme", "Wann habt ihr geöffnet?", 3, true)
	require.NoError(t, err)

	assert.Equal(t, "Die Öffnungszeiten stehen im Aushang.", resp.Answer)
	assert.Nil(t, resp.Sources)
	assert.Contains(t, env.gen.lastCall().prompt, "Support-Mitarbeiter")
}

func TestAnswer_GenerationFailureDegradesToExcerpt(t *testing.T) {
	env := newRAGEnv(t, ragEnvConfig{})
	ctx := context.Background()
	env.ingest("acme", "faq.txt", faqText)
	env.store.hits = faqHits(0.9, 0.5)
	env.gen.errs = map[string]error{
		"qwen2.5:3b":  errors.New("model unavailable"),
		"llama3.2:1b": errors.New("model unavailable"),
	}

	resp, err := env.engine.Answer(ctx, "acme", "Wann habt ihr geöffnet?", 3, true)
	require.NoError(t, err)

	assert.Equal(t, ModeFallback, resp.Mode)
	assert.Empty(t, resp.Model)
	assert.Contains(t, resp.Answer, "Montag bis Freitag")
	assert.True(t, strings.HasSuffix(resp.Answer, "."))
	assert.InDelta(t, 0.775, resp.RSQ, 1e-9)
	assert.Len(t, resp.Sources, 2)
}
