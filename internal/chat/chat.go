// Package chat is the top-level request pipeline for questions. It runs a
// three-state flow: a deterministic greeting short-circuit, tenant
// resolution, and delegation to the answering engine. The greeting check
// is a fixed phrase match, never a model call, so "hallo" costs neither a
// retrieval nor a generation.
package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/ragd/internal/rag"
)

var tracer = otel.Tracer("ragd.chat")

// ErrEmptyMessage indicates a blank chat message.
var ErrEmptyMessage = errors.New("empty message")

// DefaultGreetingReply answers greeting messages.
const DefaultGreetingReply = "Hallo! Wie kann ich Ihnen mit den Unterlagen weiterhelfen?"

// DefaultGreetings returns the exact-match greeting set. Matching is
// equality on the trimmed, lowercased message, so "hallo zusammen" is a
// real question and goes through retrieval.
func DefaultGreetings() []string {
	return []string{"hallo", "hi", "hey", "guten tag", "guten morgen", "guten abend", "servus", "moin"}
}

// Config holds chat pipeline settings.
type Config struct {
	// Greetings is the exact-match greeting phrase set, lowercased.
	Greetings []string

	// GreetingReply is the fixed response to a greeting.
	GreetingReply string
}

// ApplyDefaults fills unset fields.
func (c *Config) ApplyDefaults() {
	if len(c.Greetings) == 0 {
		c.Greetings = DefaultGreetings()
	}
	if c.GreetingReply == "" {
		c.GreetingReply = DefaultGreetingReply
	}
}

// Answerer resolves a question against a tenant's corpus.
type Answerer interface {
	Answer(ctx context.Context, tenant, question string, topK int, useRAG bool) (rag.Response, error)
}

// TenantResolver reports whether a tenant exists. Resolution must never
// create the tenant.
type TenantResolver interface {
	Resolve(tenant string) error
}

// Events receives chat notifications. May be nil.
type Events interface {
	ChatAnswered(ctx context.Context, tenant, mode, model string, rsq float64, sources int, duration time.Duration)
}

// Handler is the chat request pipeline. Stateless and safe for
// concurrent use.
type Handler struct {
	config    Config
	greetings map[string]struct{}
	engine    Answerer
	resolver  TenantResolver
	events    Events
	logger    *zap.Logger
}

// Dependencies are the collaborators a Handler needs. Engine and Resolver
// are required; Events may be nil.
type Dependencies struct {
	Engine   Answerer
	Resolver TenantResolver
	Events   Events
}

// NewHandler creates a chat Handler.
func NewHandler(config Config, deps Dependencies, logger *zap.Logger) (*Handler, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	config.ApplyDefaults()
	if deps.Engine == nil {
		return nil, fmt.Errorf("answering engine is required")
	}
	if deps.Resolver == nil {
		return nil, fmt.Errorf("tenant resolver is required")
	}

	greetings := make(map[string]struct{}, len(config.Greetings))
	for _, g := range config.Greetings {
		greetings[strings.ToLower(strings.TrimSpace(g))] = struct{}{}
	}

	return &Handler{
		config:    config,
		greetings: greetings,
		engine:    deps.Engine,
		resolver:  deps.Resolver,
		events:    deps.Events,
		logger:    logger,
	}, nil
}

// Handle answers one chat message for a tenant. topK <= 0 uses the
// engine default; useRAG false skips retrieval.
func (h *Handler) Handle(ctx context.Context, tenant, message string, topK int, useRAG bool) (rag.Response, error) {
	ctx, span := tracer.Start(ctx, "Handler.Handle")
	defer span.End()
	span.SetAttributes(attribute.String("tenant", tenant))
	start := time.Now()

	message = strings.TrimSpace(message)
	if message == "" {
		return rag.Response{}, ErrEmptyMessage
	}

	if h.isGreeting(message) {
		span.SetAttributes(attribute.String("mode", rag.ModeGreeting))
		h.logger.Debug("Greeting short-circuit", zap.String("tenant", tenant))
		resp := rag.Response{Answer: h.config.GreetingReply, Mode: rag.ModeGreeting}
		h.publish(ctx, tenant, resp, time.Since(start))
		return resp, nil
	}

	// Unknown tenants fail here; an empty-store query must never stand in
	// for a missing tenant.
	if err := h.resolver.Resolve(tenant); err != nil {
		return rag.Response{}, err
	}

	resp, err := h.engine.Answer(ctx, tenant, message, topK, useRAG)
	if err != nil {
		return rag.Response{}, err
	}
	span.SetAttributes(attribute.String("mode", resp.Mode))
	h.publish(ctx, tenant, resp, time.Since(start))
	return resp, nil
}

func (h *Handler) isGreeting(message string) bool {
	_, ok := h.greetings[strings.ToLower(message)]
	return ok
}

func (h *Handler) publish(ctx context.Context, tenant string, resp rag.Response, duration time.Duration) {
	if h.events == nil {
		return
	}
	h.events.ChatAnswered(ctx, tenant, resp.Mode, resp.Model, resp.RSQ, len(resp.Sources), duration)
}
