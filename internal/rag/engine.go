// Package rag answers tenant questions from their indexed documents. The
// engine embeds the question, retrieves candidate chunks, scores retrieval
// confidence, and only invokes the language model when the retrieved
// context is good enough to ground the answer. Everything below the
// confidence threshold gets a fixed fallback response instead of a guess.
package rag

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"
	"unicode/utf8"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/ragd/internal/document"
	"github.com/fyrsmithlabs/ragd/internal/embeddings"
	"github.com/fyrsmithlabs/ragd/internal/relevance"
	"github.com/fyrsmithlabs/ragd/internal/router"
)

var tracer = otel.Tracer("ragd.rag")

// Answer modes.
const (
	ModeGreeting = "greeting"
	ModeRAG      = "rag"
	ModeFallback = "fallback"
)

// Source identifies a retrieved chunk an answer is grounded on.
type Source struct {
	ID    string
	Title string
	Score float64
}

// Response is the outcome of one question.
type Response struct {
	Answer  string
	Sources []Source
	RSQ     float64
	Mode    string
	Model   string
}

// Config holds engine settings.
type Config struct {
	// TopK is the default number of chunks to retrieve when the caller
	// does not request one.
	TopK int

	// MaxContextChunks caps how many retrieved chunks enter the prompt.
	MaxContextChunks int

	// QueryTimeout bounds embedding the question.
	QueryTimeout time.Duration

	// FallbackMessage answers questions with no retrievable context.
	FallbackMessage string

	// LowRelevanceMessage answers questions whose retrieval confidence
	// is below the threshold.
	LowRelevanceMessage string

	// AllowUnconditioned permits a bare model answer for tenants without
	// documents instead of the fallback message.
	AllowUnconditioned bool
}

// ApplyDefaults sets default values for unset fields.
func (c *Config) ApplyDefaults() {
	if c.TopK == 0 {
		c.TopK = 3
	}
	if c.MaxContextChunks == 0 {
		c.MaxContextChunks = 3
	}
	if c.QueryTimeout == 0 {
		c.QueryTimeout = 15 * time.Second
	}
	if c.FallbackMessage == "" {
		c.FallbackMessage = "Dazu habe ich keine Informationen gefunden. " +
			"Können Sie die Frage anders formulieren? Oder sagen Sie mir, wobei ich Ihnen helfen kann."
	}
	if c.LowRelevanceMessage == "" {
		c.LowRelevanceMessage = "Dazu habe ich leider keine Informationen. " +
			"Können Sie die Frage anders formulieren? Oder sagen Sie mir, wobei ich Ihnen konkret helfen kann."
	}
}

// Validate validates the configuration.
func (c Config) Validate() error {
	if c.TopK < 1 {
		return fmt.Errorf("top_k must be at least 1, got %d", c.TopK)
	}
	if c.MaxContextChunks < 1 {
		return fmt.Errorf("max_context_chunks must be at least 1, got %d", c.MaxContextChunks)
	}
	if c.QueryTimeout <= 0 {
		return fmt.Errorf("query_timeout must be positive, got %s", c.QueryTimeout)
	}
	return nil
}

// maxSearchK caps retrieval regardless of the requested top_k.
const maxSearchK = 5

// Dependencies are the collaborators an Engine needs. All are required.
type Dependencies struct {
	Manager  *document.Manager
	Embedder embeddings.Provider
	Scorer   *relevance.Scorer
	Router   *router.Router
}

// Engine answers questions against a tenant's corpus. Stateless and safe
// for concurrent use.
type Engine struct {
	config   Config
	manager  *document.Manager
	embedder embeddings.Provider
	scorer   *relevance.Scorer
	router   *router.Router
	logger   *zap.Logger
}

// NewEngine creates an Engine.
func NewEngine(config Config, deps Dependencies, logger *zap.Logger) (*Engine, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	config.ApplyDefaults()
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid rag config: %w", err)
	}
	if deps.Manager == nil {
		return nil, fmt.Errorf("document manager is required")
	}
	if deps.Embedder == nil {
		return nil, fmt.Errorf("embedding provider is required")
	}
	if deps.Scorer == nil {
		return nil, fmt.Errorf("relevance scorer is required")
	}
	if deps.Router == nil {
		return nil, fmt.Errorf("model router is required")
	}
	return &Engine{
		config:   config,
		manager:  deps.Manager,
		embedder: deps.Embedder,
		scorer:   deps.Scorer,
		router:   deps.Router,
		logger:   logger,
	}, nil
}

// contextChunk is one prompt-ready piece of retrieved context.
type contextChunk struct {
	title string
	text  string
}

// Answer resolves a question for a tenant. topK <= 0 uses the configured
// default. useRAG false skips retrieval entirely.
func (e *Engine) Answer(ctx context.Context, tenant, question string, topK int, useRAG bool) (_ Response, err error) {
	ctx, span := tracer.Start(ctx, "Engine.Answer")
	defer span.End()
	span.SetAttributes(attribute.String("tenant", tenant))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		} else {
			span.SetStatus(codes.Ok, "success")
		}
	}()
	start := time.Now()

	settings, err := e.manager.Settings(tenant)
	if err != nil {
		return Response{}, err
	}
	stats, err := e.manager.Stats(tenant)
	if err != nil {
		return Response{}, err
	}

	if !useRAG || stats.Documents == 0 {
		if e.config.AllowUnconditioned {
			return e.unconditioned(ctx, tenant, question, settings)
		}
		e.logger.Debug("No retrievable context",
			zap.String("tenant", tenant),
			zap.Bool("use_rag", useRAG),
			zap.Int("documents", stats.Documents))
		return e.fallback(e.config.FallbackMessage, 0, nil, settings), nil
	}

	if topK <= 0 {
		topK = e.config.TopK
	}
	// One extra hit feeds the margin term of the confidence score.
	searchK := topK + 1
	if searchK > maxSearchK {
		searchK = maxSearchK
	}

	queryCtx, cancel := context.WithTimeout(ctx, e.config.QueryTimeout)
	vector, err := e.embedder.EmbedQuery(queryCtx, question)
	cancel()
	if err != nil {
		return Response{}, fmt.Errorf("embedding question: %w", err)
	}

	hits, err := e.manager.Search(ctx, tenant, vector, searchK)
	if err != nil {
		return Response{}, err
	}

	scores := make([]float32, 0, len(hits))
	chunks := make([]contextChunk, 0, len(hits))
	sources := make([]Source, 0, len(hits))
	for _, hit := range hits {
		title := hit.Metadata[document.MetaTitle]
		if title == "" {
			title = "Abschnitt"
		}
		scores = append(scores, hit.Score)
		chunks = append(chunks, contextChunk{title: title, text: hit.Content})
		sources = append(sources, Source{ID: hit.ID, Title: title, Score: round3(float64(hit.Score))})
	}

	if len(hits) == 0 {
		match, ok := e.manager.TopicBest(tenant, question)
		if !ok {
			return e.fallback(e.config.FallbackMessage, 0, nil, settings), nil
		}
		scores = []float32{float32(match.Score)}
		chunks = []contextChunk{{title: match.Title, text: match.Text}}
		sources = []Source{{ID: match.DocID, Title: match.Title, Score: round3(match.Score)}}
	}

	rsq := e.scorer.Score(scores)
	span.SetAttributes(
		attribute.Float64("rsq", rsq),
		attribute.Int("hits", len(chunks)),
	)
	if !e.scorer.Sufficient(rsq) {
		// Below the threshold the model is never invoked.
		e.logger.Debug("Retrieval confidence below threshold",
			zap.String("tenant", tenant),
			zap.Float64("rsq", rsq),
			zap.Float64("threshold", e.scorer.Threshold()))
		return e.fallback(e.config.LowRelevanceMessage, rsq, sources, settings), nil
	}

	prompt, contextText := buildPrompt(question, chunks, e.config.MaxContextChunks, settings.StripCitations)
	profile := e.router.Select(question, len(chunks), utf8.RuneCountInString(contextText), rsq)

	mode := ModeRAG
	model := profile.Model
	answer, genErr := e.router.Invoke(ctx, profile, prompt)
	if genErr != nil {
		// Degrade to an excerpt of the best chunk instead of failing the
		// whole request.
		e.logger.Warn("Generation failed, answering with chunk excerpt",
			zap.String("tenant", tenant),
			zap.String("profile", profile.Name),
			zap.Error(genErr))
		answer = excerpt(chunks[0].text)
		mode = ModeFallback
		model = ""
	}

	answer = strings.TrimSpace(answer)
	if settings.StripCitations {
		answer = stripCitations(answer)
	}

	resp := Response{Answer: answer, RSQ: rsq, Mode: mode, Model: model}
	if settings.ShowSources {
		resp.Sources = sources
	}

	e.logger.Info("Question answered",
		zap.String("tenant", tenant),
		zap.String("mode", mode),
		zap.String("model", model),
		zap.Float64("rsq", rsq),
		zap.Int("chunks", len(chunks)),
		zap.Duration("duration", time.Since(start)))
	return resp, nil
}

// unconditioned answers without document context, for tenants that allow
// ungrounded model replies.
func (e *Engine) unconditioned(ctx context.Context, tenant, question string, settings document.Settings) (Response, error) {
	// No retrieval happened, so the weak-retrieval complexity signal
	// must not fire.
	profile := e.router.Select(question, 0, 0, 1)
	answer, err := e.router.Invoke(ctx, profile, buildBarePrompt(question, settings.StripCitations))
	if err != nil {
		return Response{}, fmt.Errorf("generating unconditioned answer: %w", err)
	}
	answer = strings.TrimSpace(answer)
	if settings.StripCitations {
		answer = stripCitations(answer)
	}
	e.logger.Info("Question answered without context",
		zap.String("tenant", tenant),
		zap.String("model", profile.Model))
	return Response{Answer: answer, Mode: ModeRAG, Model: profile.Model}, nil
}

func (e *Engine) fallback(message string, rsq float64, sources []Source, settings document.Settings) Response {
	resp := Response{Answer: message, RSQ: rsq, Mode: ModeFallback}
	if settings.ShowSources {
		resp.Sources = sources
	}
	return resp
}

func round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}
