// Package config provides configuration loading for ragd.
//
// Configuration is loaded from an optional YAML file, then overridden by
// environment variables (RAGD_ prefix). Policy constants for relevance
// scoring and model routing live here so deployments can tune them without
// code changes.
package config

import (
	"fmt"
	"time"

	"github.com/fyrsmithlabs/ragd/internal/chat"
	"github.com/fyrsmithlabs/ragd/internal/logging"
	"github.com/fyrsmithlabs/ragd/internal/router"
)

// Config holds the complete ragd configuration.
type Config struct {
	Server    ServerConfig    `koanf:"server"`
	Logging   logging.Config  `koanf:"logging"`
	Telemetry TelemetryConfig `koanf:"telemetry"`
	Embedding EmbeddingConfig `koanf:"embedding"`
	LLM       LLMConfig       `koanf:"llm"`
	Store     StoreConfig     `koanf:"store"`
	Router    RouterConfig    `koanf:"router"`
	Relevance RelevanceConfig `koanf:"relevance"`
	RAG       RAGConfig       `koanf:"rag"`
	Chat      ChatConfig      `koanf:"chat"`
	Ingest    IngestConfig    `koanf:"ingest"`
	Events    EventsConfig    `koanf:"events"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host            string   `koanf:"host"`
	Port            int      `koanf:"port"`
	ShutdownTimeout Duration `koanf:"shutdown_timeout"`
}

// TelemetryConfig holds OpenTelemetry export configuration.
type TelemetryConfig struct {
	Enabled     bool    `koanf:"enabled"`
	ServiceName string  `koanf:"service_name"`
	Endpoint    string  `koanf:"endpoint"`
	Protocol    string  `koanf:"protocol"` // "grpc" or "http"
	Insecure    bool    `koanf:"insecure"`
	SampleRatio float64 `koanf:"sample_ratio"`
}

// EmbeddingConfig holds embedding provider configuration.
type EmbeddingConfig struct {
	Provider string   `koanf:"provider"` // "ollama" or "fastembed"
	BaseURL  string   `koanf:"base_url"`
	Model    string   `koanf:"model"`
	Timeout  Duration `koanf:"timeout"`
	CacheDir string   `koanf:"cache_dir"` // fastembed model cache
}

// LLMConfig holds the model inference service configuration.
type LLMConfig struct {
	BaseURL   string  `koanf:"base_url"`
	RateLimit float64 `koanf:"rate_limit"` // requests per second, 0 disables
	Burst     int     `koanf:"burst"`
}

// StoreConfig holds vector store configuration.
type StoreConfig struct {
	Provider   string        `koanf:"provider"` // "chromem" or "qdrant"
	VectorSize int           `koanf:"vector_size"`
	Chromem    ChromemConfig `koanf:"chromem"`
	Qdrant     QdrantConfig  `koanf:"qdrant"`
}

// ChromemConfig holds embedded chromem store configuration.
type ChromemConfig struct {
	Path     string `koanf:"path"`
	Compress bool   `koanf:"compress"`
}

// QdrantConfig holds Qdrant gRPC client configuration.
type QdrantConfig struct {
	Host   string `koanf:"host"`
	Port   int    `koanf:"port"`
	UseTLS bool   `koanf:"use_tls"`
	APIKey Secret `koanf:"api_key"`
}

// RouterConfig holds model-router configuration. Keyword lists and tier
// thresholds are data, not code, so they stay tunable per deployment.
type RouterConfig struct {
	Disabled           bool     `koanf:"disabled"`
	DefaultProfile     string   `koanf:"default_profile"`
	ProfilesPath       string   `koanf:"profiles_path"`
	Watch              bool     `koanf:"watch"`
	FastThreshold      float64  `koanf:"fast_threshold"`
	ReasoningThreshold float64  `koanf:"reasoning_threshold"`
	ReasoningKeywords  []string `koanf:"reasoning_keywords"`
	Connectors         []string `koanf:"connectors"`
}

// RelevanceConfig holds RSQ scoring policy.
// The 0.75/0.25 weighting and 0.35 threshold are behavioral constants;
// override only when retuning fallback sensitivity deliberately.
type RelevanceConfig struct {
	TopWeight    float64 `koanf:"top_weight"`
	MarginWeight float64 `koanf:"margin_weight"`
	Threshold    float64 `koanf:"threshold"`
}

// RAGConfig holds answer-pipeline configuration.
type RAGConfig struct {
	TopK               int    `koanf:"top_k"`
	MaxContextChunks   int    `koanf:"max_context_chunks"`
	FallbackReply      string `koanf:"fallback_reply"`
	AllowUnconditioned bool   `koanf:"allow_unconditioned"`
}

// ChatConfig holds the chat pipeline configuration.
type ChatConfig struct {
	Greetings     []string                  `koanf:"greetings"`
	GreetingReply string                    `koanf:"greeting_reply"`
	Tenants       map[string]TenantSettings `koanf:"tenants"`
}

// TenantSettings holds per-tenant response shaping flags.
type TenantSettings struct {
	ShowSources    bool `koanf:"show_sources"`
	StripCitations bool `koanf:"strip_citations"`
}

// IngestConfig holds document ingestion configuration.
type IngestConfig struct {
	DataDir          string   `koanf:"data_dir"`
	SeedDir          string   `koanf:"seed_dir"`
	Redact           bool     `koanf:"redact"`
	AllowlistPath    string   `koanf:"allowlist_path"`
	MaxDocumentBytes int64    `koanf:"max_document_bytes"`
	ExtractorURL     string   `koanf:"extractor_url"`
	ExtractorKey     Secret   `koanf:"extractor_key"`
	ExtractorTimeout Duration `koanf:"extractor_timeout"`
}

// EventsConfig holds NATS lifecycle-event configuration.
// An empty URL disables event publishing.
type EventsConfig struct {
	URL           string `koanf:"url"`
	SubjectPrefix string `koanf:"subject_prefix"`
	Token         Secret `koanf:"token"`
}

// applyDefaults sets default values for missing configuration fields.
func applyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "0.0.0.0"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = Duration(10 * time.Second)
	}

	if cfg.Logging.Level == "" && cfg.Logging.Format == "" {
		cfg.Logging = *logging.NewDefaultConfig()
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
	if !cfg.Logging.Output.Stdout && !cfg.Logging.Output.OTEL {
		cfg.Logging.Output.Stdout = true
	}
	if cfg.Logging.Stacktrace == "" {
		cfg.Logging.Stacktrace = "error"
	}

	if cfg.Telemetry.ServiceName == "" {
		cfg.Telemetry.ServiceName = "ragd"
	}
	if cfg.Telemetry.Endpoint == "" {
		cfg.Telemetry.Endpoint = "localhost:4317"
	}
	if cfg.Telemetry.Protocol == "" {
		cfg.Telemetry.Protocol = "grpc"
	}
	if cfg.Telemetry.SampleRatio == 0 {
		cfg.Telemetry.SampleRatio = 1.0
	}

	if cfg.Embedding.Provider == "" {
		cfg.Embedding.Provider = "ollama"
	}
	if cfg.Embedding.BaseURL == "" {
		cfg.Embedding.BaseURL = "http://localhost:11434"
	}
	if cfg.Embedding.Model == "" {
		cfg.Embedding.Model = "nomic-embed-text"
	}
	if cfg.Embedding.Timeout == 0 {
		cfg.Embedding.Timeout = Duration(15 * time.Second)
	}

	if cfg.LLM.BaseURL == "" {
		cfg.LLM.BaseURL = "http://localhost:11434"
	}
	if cfg.LLM.Burst == 0 {
		cfg.LLM.Burst = 2
	}

	if cfg.Store.Provider == "" {
		cfg.Store.Provider = "chromem"
	}
	if cfg.Store.VectorSize == 0 {
		cfg.Store.VectorSize = 768 // nomic-embed-text dimensions
	}
	if cfg.Store.Chromem.Path == "" {
		cfg.Store.Chromem.Path = "./data/vectorstore"
	}
	if cfg.Store.Qdrant.Host == "" {
		cfg.Store.Qdrant.Host = "localhost"
	}
	if cfg.Store.Qdrant.Port == 0 {
		cfg.Store.Qdrant.Port = 6334
	}

	if cfg.Router.DefaultProfile == "" {
		cfg.Router.DefaultProfile = "standard"
	}
	if cfg.Router.FastThreshold == 0 {
		cfg.Router.FastThreshold = 0.3
	}
	if cfg.Router.ReasoningThreshold == 0 {
		cfg.Router.ReasoningThreshold = 0.7
	}
	if len(cfg.Router.ReasoningKeywords) == 0 {
		cfg.Router.ReasoningKeywords = DefaultReasoningKeywords()
	}
	if len(cfg.Router.Connectors) == 0 {
		cfg.Router.Connectors = DefaultConnectors()
	}

	if cfg.Relevance.TopWeight == 0 {
		cfg.Relevance.TopWeight = 0.75
	}
	if cfg.Relevance.MarginWeight == 0 {
		cfg.Relevance.MarginWeight = 0.25
	}
	if cfg.Relevance.Threshold == 0 {
		cfg.Relevance.Threshold = 0.35
	}

	if cfg.RAG.TopK == 0 {
		cfg.RAG.TopK = 3
	}
	if cfg.RAG.MaxContextChunks == 0 {
		cfg.RAG.MaxContextChunks = 3
	}
	if cfg.RAG.FallbackReply == "" {
		cfg.RAG.FallbackReply = DefaultFallbackReply
	}

	if len(cfg.Chat.Greetings) == 0 {
		cfg.Chat.Greetings = DefaultGreetings()
	}
	if cfg.Chat.GreetingReply == "" {
		cfg.Chat.GreetingReply = DefaultGreetingReply
	}

	if cfg.Ingest.DataDir == "" {
		cfg.Ingest.DataDir = "./data/documents"
	}
	if cfg.Ingest.MaxDocumentBytes == 0 {
		cfg.Ingest.MaxDocumentBytes = 10 * 1024 * 1024 // 10MB
	}
	if cfg.Ingest.ExtractorTimeout == 0 {
		cfg.Ingest.ExtractorTimeout = Duration(30 * time.Second)
	}

	if cfg.Events.SubjectPrefix == "" {
		cfg.Events.SubjectPrefix = "ragd"
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d (must be 1-65535)", c.Server.Port)
	}
	if c.Server.ShutdownTimeout.Duration() <= 0 {
		return fmt.Errorf("shutdown timeout must be positive")
	}

	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("logging: %w", err)
	}

	if c.Telemetry.Enabled {
		if c.Telemetry.ServiceName == "" {
			return fmt.Errorf("telemetry service name required when telemetry is enabled")
		}
		if c.Telemetry.Protocol != "grpc" && c.Telemetry.Protocol != "http" {
			return fmt.Errorf("telemetry protocol must be 'grpc' or 'http', got %q", c.Telemetry.Protocol)
		}
		if c.Telemetry.SampleRatio < 0 || c.Telemetry.SampleRatio > 1 {
			return fmt.Errorf("telemetry sample ratio must be in [0,1], got %v", c.Telemetry.SampleRatio)
		}
	}

	switch c.Embedding.Provider {
	case "ollama", "fastembed":
	default:
		return fmt.Errorf("unknown embedding provider %q", c.Embedding.Provider)
	}
	if c.Embedding.Timeout.Duration() <= 0 {
		return fmt.Errorf("embedding timeout must be positive")
	}

	switch c.Store.Provider {
	case "chromem", "qdrant":
	default:
		return fmt.Errorf("unknown store provider %q", c.Store.Provider)
	}
	if c.Store.VectorSize <= 0 {
		return fmt.Errorf("store vector size must be positive, got %d", c.Store.VectorSize)
	}

	if c.Router.FastThreshold <= 0 || c.Router.FastThreshold >= c.Router.ReasoningThreshold {
		return fmt.Errorf("router thresholds must satisfy 0 < fast (%v) < reasoning (%v)",
			c.Router.FastThreshold, c.Router.ReasoningThreshold)
	}
	if c.Router.ReasoningThreshold > 1 {
		return fmt.Errorf("router reasoning threshold must be <= 1, got %v", c.Router.ReasoningThreshold)
	}

	if c.Relevance.TopWeight < 0 || c.Relevance.MarginWeight < 0 {
		return fmt.Errorf("relevance weights must be non-negative")
	}
	if c.Relevance.Threshold < 0 || c.Relevance.Threshold > 1 {
		return fmt.Errorf("relevance threshold must be in [0,1], got %v", c.Relevance.Threshold)
	}

	if c.RAG.TopK < 1 {
		return fmt.Errorf("rag top_k must be >= 1, got %d", c.RAG.TopK)
	}
	if c.Ingest.MaxDocumentBytes < 1 {
		return fmt.Errorf("ingest max document bytes must be >= 1")
	}

	return nil
}

// DefaultFallbackReply is returned when retrieval confidence is too low to
// ground an answer.
const DefaultFallbackReply = "Dazu habe ich leider keine ausreichenden Informationen in den Unterlagen gefunden. Bitte formulieren Sie die Frage anders oder wenden Sie sich an das Team."

// DefaultGreetingReply answers greeting messages without touching retrieval.
const DefaultGreetingReply = chat.DefaultGreetingReply

// DefaultGreetings returns the exact-match greeting set.
func DefaultGreetings() []string {
	return chat.DefaultGreetings()
}

// DefaultReasoningKeywords returns phrases that indicate a question needs a
// stronger model tier.
func DefaultReasoningKeywords() []string {
	return router.DefaultHeuristics().Keywords
}

// DefaultConnectors returns conjunction tokens that hint at compound questions.
func DefaultConnectors() []string {
	return router.DefaultHeuristics().Connectors
}
