// Package events publishes document and chat lifecycle notifications to
// NATS. Publishing is fire-and-forget: a slow or absent broker must never
// delay an ingest or a chat response, so errors are logged and dropped.
// A nil *Publisher is a valid no-op, which is what callers get when no
// broker URL is configured.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

// Config holds NATS connection settings. An empty URL disables publishing.
type Config struct {
	// URL is the NATS server URL, e.g. nats://localhost:4222.
	URL string

	// SubjectPrefix is prepended to every subject. Default: "ragd".
	SubjectPrefix string

	// Token authenticates the connection when set.
	Token string

	// Name identifies the connection on the broker. Default: "ragd".
	Name string
}

// ApplyDefaults fills unset fields.
func (c *Config) ApplyDefaults() {
	if c.SubjectPrefix == "" {
		c.SubjectPrefix = "ragd"
	}
	if c.Name == "" {
		c.Name = "ragd"
	}
}

// DocumentEvent is the payload of ragd.document.* subjects.
type DocumentEvent struct {
	Tenant     string    `json:"tenant"`
	Filename   string    `json:"filename"`
	ChunkCount int       `json:"chunk_count,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

// ChatEvent is the payload of the ragd.chat.answered subject.
type ChatEvent struct {
	Tenant    string        `json:"tenant"`
	Mode      string        `json:"mode"`
	Model     string        `json:"model,omitempty"`
	RSQ       float64       `json:"rsq"`
	Sources   int           `json:"sources"`
	Duration  time.Duration `json:"duration_ns"`
	Timestamp time.Time     `json:"timestamp"`
}

// Publisher emits lifecycle events over core NATS. Safe for concurrent
// use. The zero-value nil pointer is a no-op publisher.
type Publisher struct {
	conn   *nats.Conn
	prefix string
	logger *zap.Logger
}

// New connects to the broker and returns a Publisher. An empty URL
// returns (nil, nil): a valid disabled publisher.
func New(cfg Config, logger *zap.Logger) (*Publisher, error) {
	if cfg.URL == "" {
		return nil, nil
	}
	cfg.ApplyDefaults()
	if logger == nil {
		logger = zap.NewNop()
	}

	opts := []nats.Option{
		nats.Name(cfg.Name),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(5),
		nats.ReconnectWait(time.Second),
	}
	if cfg.Token != "" {
		opts = append(opts, nats.Token(cfg.Token))
	}

	conn, err := nats.Connect(cfg.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("connecting to NATS at %s: %w", cfg.URL, err)
	}
	logger.Info("Connected to NATS", zap.String("url", cfg.URL))

	return &Publisher{
		conn:   conn,
		prefix: cfg.SubjectPrefix,
		logger: logger,
	}, nil
}

// Close flushes buffered messages and drops the connection.
func (p *Publisher) Close() {
	if p == nil || p.conn == nil {
		return
	}
	if err := p.conn.Flush(); err != nil {
		p.logger.Warn("Flushing NATS connection", zap.Error(err))
	}
	p.conn.Close()
}

// DocumentIngested reports a first-time document ingest.
func (p *Publisher) DocumentIngested(ctx context.Context, tenant, filename string, chunkCount int) {
	p.publishDocument(ctx, "document.ingested", tenant, filename, chunkCount)
}

// DocumentUpdated reports an in-place document replacement.
func (p *Publisher) DocumentUpdated(ctx context.Context, tenant, filename string, chunkCount int) {
	p.publishDocument(ctx, "document.updated", tenant, filename, chunkCount)
}

// DocumentDeleted reports a document removal.
func (p *Publisher) DocumentDeleted(ctx context.Context, tenant, filename string) {
	p.publishDocument(ctx, "document.deleted", tenant, filename, 0)
}

// ChatAnswered reports one answered question.
func (p *Publisher) ChatAnswered(ctx context.Context, tenant, mode, model string, rsq float64, sources int, duration time.Duration) {
	if p == nil {
		return
	}
	p.publish(ctx, "chat.answered", ChatEvent{
		Tenant:    tenant,
		Mode:      mode,
		Model:     model,
		RSQ:       rsq,
		Sources:   sources,
		Duration:  duration,
		Timestamp: time.Now().UTC(),
	})
}

func (p *Publisher) publishDocument(ctx context.Context, kind, tenant, filename string, chunkCount int) {
	if p == nil {
		return
	}
	p.publish(ctx, kind, DocumentEvent{
		Tenant:     tenant,
		Filename:   filename,
		ChunkCount: chunkCount,
		Timestamp:  time.Now().UTC(),
	})
}

func (p *Publisher) publish(_ context.Context, kind string, payload any) {
	subject := p.prefix + "." + kind
	data, err := json.Marshal(payload)
	if err != nil {
		p.logger.Warn("Encoding event", zap.String("subject", subject), zap.Error(err))
		return
	}
	if err := p.conn.Publish(subject, data); err != nil {
		p.logger.Warn("Publishing event", zap.String("subject", subject), zap.Error(err))
	}
}
