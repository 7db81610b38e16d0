// Ragd is a multi-tenant retrieval-augmented answering daemon.
//
// This binary starts the ragd HTTP server with full service initialization:
// vector store, embeddings, model router, document manager, and the chat
// pipeline.
//
// Configuration is loaded from an optional YAML file, overridden by RAGD_
// environment variables. See internal/config for details.
//
// Usage:
//
//	# Start with defaults (embedded chromem store, local Ollama)
//	ragd
//
//	# Start with a config file
//	ragd --config /etc/ragd/config.yaml
//
//	# Configure via environment
//	RAGD_SERVER_PORT=9090 RAGD_STORE_PROVIDER=qdrant ragd
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/ragd/internal/chat"
	"github.com/fyrsmithlabs/ragd/internal/config"
	"github.com/fyrsmithlabs/ragd/internal/document"
	"github.com/fyrsmithlabs/ragd/internal/embeddings"
	"github.com/fyrsmithlabs/ragd/internal/events"
	"github.com/fyrsmithlabs/ragd/internal/extract"
	ragdhttp "github.com/fyrsmithlabs/ragd/internal/http"
	"github.com/fyrsmithlabs/ragd/internal/llm"
	"github.com/fyrsmithlabs/ragd/internal/logging"
	"github.com/fyrsmithlabs/ragd/internal/project"
	"github.com/fyrsmithlabs/ragd/internal/rag"
	"github.com/fyrsmithlabs/ragd/internal/redact"
	"github.com/fyrsmithlabs/ragd/internal/relevance"
	"github.com/fyrsmithlabs/ragd/internal/router"
	"github.com/fyrsmithlabs/ragd/internal/telemetry"
	"github.com/fyrsmithlabs/ragd/internal/vectorstore"
	"github.com/fyrsmithlabs/ragd/pkg/server"
)

// Version information (set via ldflags during build)
var (
	version   = "dev"
	gitCommit = "unknown"
	buildDate = "unknown"
)

// shutdownGrace bounds telemetry flush during shutdown.
const shutdownGrace = 5 * time.Second

func main() {
	configPath := flag.String("config", "", "path to config file (YAML)")
	flag.Parse()
	args := flag.Args()

	if len(args) > 0 {
		switch args[0] {
		case "version":
			printVersion()
			os.Exit(0)
		default:
			fmt.Fprintf(os.Stderr, "Unknown command: %s\n", args[0])
			fmt.Fprintf(os.Stderr, "\nUsage:\n")
			fmt.Fprintf(os.Stderr, "  ragd [--config FILE]   Start the ragd daemon\n")
			fmt.Fprintf(os.Stderr, "  ragd version           Show version information\n")
			os.Exit(1)
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		log.Printf("Received signal %v, shutting down gracefully...", sig)
		cancel()
	}()

	if err := run(ctx, *configPath); err != nil {
		log.Fatalf("Server error: %v", err)
	}

	log.Println("Server shutdown complete")
}

func printVersion() {
	fmt.Printf("ragd by Fyrsmith Labs\n")
	fmt.Printf("Version:    %s\n", version)
	fmt.Printf("Commit:     %s\n", gitCommit)
	fmt.Printf("Build Date: %s\n", buildDate)
}

// run starts the ragd server and blocks until context is cancelled.
//
// Initialization order: config, telemetry, logger, infrastructure (store,
// embeddings, model client, events), domain services (documents, router,
// relevance, rag, chat, projects), HTTP server. Graceful shutdown runs the
// same order in reverse via deps.Close.
func run(ctx context.Context, configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	tel, err := telemetry.New(ctx, &telemetry.Config{
		Enabled:        cfg.Telemetry.Enabled,
		ServiceName:    cfg.Telemetry.ServiceName,
		ServiceVersion: version,
		Endpoint:       cfg.Telemetry.Endpoint,
		Protocol:       cfg.Telemetry.Protocol,
		Insecure:       cfg.Telemetry.Insecure,
		SampleRatio:    cfg.Telemetry.SampleRatio,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize telemetry: %w", err)
	}

	lg, err := logging.NewLogger(&cfg.Logging, tel.LoggerProvider())
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	logger := lg.Underlying()
	defer func() {
		_ = logger.Sync() // Best-effort sync on shutdown
	}()

	logger.Info("Starting ragd",
		zap.String("version", version),
		zap.Int("port", cfg.Server.Port),
		zap.String("store", cfg.Store.Provider),
		zap.String("embedding_provider", cfg.Embedding.Provider),
		zap.Bool("telemetry", cfg.Telemetry.Enabled))

	deps, err := initDependencies(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize dependencies: %w", err)
	}
	defer deps.Close(tel, logger)

	svcs, err := initServices(ctx, cfg, deps, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize services: %w", err)
	}
	defer svcs.Close()

	logger.Info("Services initialized",
		zap.Int("tenants", len(svcs.manager.Tenants())),
		zap.Bool("events", deps.events != nil),
		zap.Bool("redaction", deps.redactor != nil))

	srv := server.NewServer(server.Config{
		Host:            cfg.Server.Host,
		Port:            cfg.Server.Port,
		ShutdownTimeout: cfg.Server.ShutdownTimeout.Duration(),
	}, logger)

	api, err := ragdhttp.NewServer(ragdhttp.Dependencies{
		Chat:      svcs.chat,
		Documents: svcs.manager,
		Projects:  svcs.projects,
		Reloader:  svcs.router,
		Probes:    buildProbes(deps),
	}, logger, version)
	if err != nil {
		return fmt.Errorf("failed to initialize API: %w", err)
	}
	api.Register(srv.Echo())

	srv.Echo().GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	logger.Info("Server configured",
		zap.String("addr", srv.Addr()),
		zap.String("health_endpoint", "/health"),
		zap.String("api_prefix", "/api/v1"),
		zap.String("metrics_endpoint", "/metrics"))

	return srv.Start(ctx)
}

// dependencies holds infrastructure-level collaborators.
type dependencies struct {
	store    vectorstore.Store
	embedder embeddings.Provider
	gen      *llm.OllamaGenerator
	events   *events.Publisher
	redactor *redact.Redactor
}

// Close releases infrastructure resources.
func (d *dependencies) Close(tel *telemetry.Telemetry, logger *zap.Logger) {
	d.events.Close()
	if d.embedder != nil {
		_ = d.embedder.Close()
	}
	if d.store != nil {
		if err := d.store.Close(); err != nil {
			logger.Warn("Vector store close failed", zap.Error(err))
		}
	}
	if tel != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		if err := tel.Shutdown(shutdownCtx); err != nil {
			logger.Warn("Telemetry shutdown failed", zap.Error(err))
		}
	}
}

// services holds domain-level services.
type services struct {
	manager  *document.Manager
	router   *router.Router
	watcher  *router.Watcher
	engine   *rag.Engine
	chat     *chat.Handler
	projects project.Manager
}

// Close stops background workers.
func (s *services) Close() {
	if s.watcher != nil {
		s.watcher.Stop()
	}
}

// initDependencies connects infrastructure: vector store, embedding
// provider, model client, optional NATS events and redaction.
func initDependencies(_ context.Context, cfg *config.Config, logger *zap.Logger) (*dependencies, error) {
	store, err := vectorstore.New(vectorstore.Config{
		Provider:   cfg.Store.Provider,
		Path:       cfg.Store.Chromem.Path,
		Compress:   cfg.Store.Chromem.Compress,
		VectorSize: cfg.Store.VectorSize,
		Qdrant: vectorstore.QdrantConfig{
			Host:   cfg.Store.Qdrant.Host,
			Port:   cfg.Store.Qdrant.Port,
			UseTLS: cfg.Store.Qdrant.UseTLS,
			APIKey: cfg.Store.Qdrant.APIKey.Value(),
		},
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create vector store: %w", err)
	}

	logger.Info("Vector store initialized",
		zap.String("provider", cfg.Store.Provider),
		zap.Int("vector_size", cfg.Store.VectorSize))

	embedder, err := embeddings.NewProvider(embeddings.ProviderConfig{
		Provider: cfg.Embedding.Provider,
		Model:    cfg.Embedding.Model,
		BaseURL:  cfg.Embedding.BaseURL,
		Timeout:  cfg.Embedding.Timeout.Duration(),
		CacheDir: cfg.Embedding.CacheDir,
	})
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to create embedding provider: %w", err)
	}

	logger.Info("Embedding provider initialized",
		zap.String("provider", cfg.Embedding.Provider),
		zap.String("model", cfg.Embedding.Model),
		zap.Int("dimension", embedder.Dimension()))

	gen, err := llm.NewOllamaGenerator(llm.Config{
		BaseURL:           cfg.LLM.BaseURL,
		RequestsPerSecond: cfg.LLM.RateLimit,
		Burst:             cfg.LLM.Burst,
	}, logger)
	if err != nil {
		_ = embedder.Close()
		_ = store.Close()
		return nil, fmt.Errorf("failed to create model client: %w", err)
	}

	pub, err := events.New(events.Config{
		URL:           cfg.Events.URL,
		SubjectPrefix: cfg.Events.SubjectPrefix,
		Token:         cfg.Events.Token.Value(),
	}, logger)
	if err != nil {
		// Events are best-effort plumbing; a dead broker must not block
		// answering questions.
		logger.Warn("Event publisher unavailable, continuing without events",
			zap.String("url", cfg.Events.URL), zap.Error(err))
		pub = nil
	}

	var redactor *redact.Redactor
	if cfg.Ingest.Redact {
		redactor, err = redact.New(cfg.Ingest.AllowlistPath)
		if err != nil {
			pub.Close()
			_ = embedder.Close()
			_ = store.Close()
			return nil, fmt.Errorf("failed to create redactor: %w", err)
		}
		logger.Info("Secret redaction enabled",
			zap.String("allowlist", cfg.Ingest.AllowlistPath))
	}

	return &dependencies{
		store:    store,
		embedder: embedder,
		gen:      gen,
		events:   pub,
		redactor: redactor,
	}, nil
}

// initServices wires the domain layer on top of the infrastructure.
func initServices(ctx context.Context, cfg *config.Config, deps *dependencies, logger *zap.Logger) (*services, error) {
	extractor, err := buildExtractor(cfg)
	if err != nil {
		return nil, err
	}

	tenantSettings := make(map[string]document.Settings, len(cfg.Chat.Tenants))
	for tenant, s := range cfg.Chat.Tenants {
		tenantSettings[tenant] = document.Settings{
			ShowSources:    s.ShowSources,
			StripCitations: s.StripCitations,
		}
	}

	manager, err := document.NewManager(document.Config{
		DataDir:          cfg.Ingest.DataDir,
		MaxDocumentBytes: cfg.Ingest.MaxDocumentBytes,
		EmbedTimeout:     cfg.Embedding.Timeout.Duration(),
		Tenants:          tenantSettings,
	}, document.Dependencies{
		Store:     deps.store,
		Embedder:  deps.embedder,
		Extractor: extractor,
		Redactor:  deps.redactor,
		Events:    deps.events,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create document manager: %w", err)
	}

	if cfg.Ingest.SeedDir != "" {
		if err := manager.LoadSeed(ctx, cfg.Ingest.SeedDir); err != nil {
			logger.Warn("Seed corpus load failed",
				zap.String("dir", cfg.Ingest.SeedDir), zap.Error(err))
		}
	}

	rtr, err := router.New(router.Config{
		Disabled:           cfg.Router.Disabled,
		DefaultProfile:     cfg.Router.DefaultProfile,
		ProfilesPath:       cfg.Router.ProfilesPath,
		FastThreshold:      cfg.Router.FastThreshold,
		ReasoningThreshold: cfg.Router.ReasoningThreshold,
		Heuristics:         buildHeuristics(cfg),
	}, deps.gen, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create model router: %w", err)
	}

	var watcher *router.Watcher
	if cfg.Router.Watch && cfg.Router.ProfilesPath != "" {
		watcher, err = router.NewWatcher(rtr, logger)
		if err != nil {
			logger.Warn("Profile watcher unavailable", zap.Error(err))
		} else if err := watcher.Start(ctx); err != nil {
			logger.Warn("Profile watcher failed to start", zap.Error(err))
			watcher = nil
		}
	}

	scorer, err := relevance.NewScorer(relevance.Config{
		TopWeight:    cfg.Relevance.TopWeight,
		MarginWeight: cfg.Relevance.MarginWeight,
		Threshold:    cfg.Relevance.Threshold,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create relevance scorer: %w", err)
	}

	engine, err := rag.NewEngine(rag.Config{
		TopK:               cfg.RAG.TopK,
		MaxContextChunks:   cfg.RAG.MaxContextChunks,
		FallbackMessage:    cfg.RAG.FallbackReply,
		AllowUnconditioned: cfg.RAG.AllowUnconditioned,
	}, rag.Dependencies{
		Manager:  manager,
		Embedder: deps.embedder,
		Scorer:   scorer,
		Router:   rtr,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create answer engine: %w", err)
	}

	chatHandler, err := chat.NewHandler(chat.Config{
		Greetings:     cfg.Chat.Greetings,
		GreetingReply: cfg.Chat.GreetingReply,
	}, chat.Dependencies{
		Engine:   engine,
		Resolver: manager,
		Events:   chatEvents(deps.events),
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create chat handler: %w", err)
	}

	return &services{
		manager:  manager,
		router:   rtr,
		watcher:  watcher,
		engine:   engine,
		chat:     chatHandler,
		projects: project.NewManager(),
	}, nil
}

// buildExtractor selects plain-text extraction or the sidecar dispatcher.
func buildExtractor(cfg *config.Config) (extract.Extractor, error) {
	if cfg.Ingest.ExtractorURL == "" {
		return extract.NewPlainText(), nil
	}
	svc, err := extract.NewService(extract.ServiceConfig{
		BaseURL: cfg.Ingest.ExtractorURL,
		APIKey:  cfg.Ingest.ExtractorKey.Value(),
		Timeout: cfg.Ingest.ExtractorTimeout.Duration(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create extraction client: %w", err)
	}
	return extract.NewDispatcher(svc), nil
}

func buildHeuristics(cfg *config.Config) router.Heuristics {
	h := router.DefaultHeuristics()
	if len(cfg.Router.ReasoningKeywords) > 0 {
		h.Keywords = cfg.Router.ReasoningKeywords
	}
	if len(cfg.Router.Connectors) > 0 {
		h.Connectors = cfg.Router.Connectors
	}
	return h
}

// chatEvents avoids handing the chat handler a typed-nil interface.
func chatEvents(pub *events.Publisher) chat.Events {
	if pub == nil {
		return nil
	}
	return pub
}

// buildProbes wires dependency health checks into /health and /status.
func buildProbes(deps *dependencies) map[string]ragdhttp.Probe {
	probes := map[string]ragdhttp.Probe{
		"ollama": deps.gen.Healthy,
	}
	if hc, ok := deps.embedder.(embeddings.HealthChecker); ok {
		probes["embeddings"] = hc.Healthy
	}
	return probes
}
