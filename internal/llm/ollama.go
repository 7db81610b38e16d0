package llm

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"syscall"
	"time"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/ollama"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Config holds configuration for the Ollama generator.
type Config struct {
	// BaseURL is the Ollama server URL. Default: http://localhost:11434
	BaseURL string

	// Model is the default model when a call names none.
	// Default: qwen2.5:7b
	Model string

	// RequestsPerSecond caps the client-side call rate. Zero means
	// unlimited.
	RequestsPerSecond float64

	// Burst is the rate limiter burst size. Default: 1 when a rate
	// is set.
	Burst int

	// RetryBackoff is the wait before the single retry on a transient
	// error. Default: 500ms
	RetryBackoff time.Duration

	// HealthTimeout bounds the Healthy probe. Default: 5s
	HealthTimeout time.Duration
}

// ApplyDefaults sets default values for unset fields.
func (c *Config) ApplyDefaults() {
	if c.BaseURL == "" {
		c.BaseURL = "http://localhost:11434"
	}
	c.BaseURL = strings.TrimRight(c.BaseURL, "/")
	if c.Model == "" {
		c.Model = "qwen2.5:7b"
	}
	if c.Burst == 0 {
		c.Burst = 1
	}
	if c.RetryBackoff == 0 {
		c.RetryBackoff = 500 * time.Millisecond
	}
	if c.HealthTimeout == 0 {
		c.HealthTimeout = 5 * time.Second
	}
}

// Validate validates the configuration.
func (c Config) Validate() error {
	if c.BaseURL == "" {
		return fmt.Errorf("%w: base URL required", ErrInvalidConfig)
	}
	if c.Model == "" {
		return fmt.Errorf("%w: model required", ErrInvalidConfig)
	}
	if c.RequestsPerSecond < 0 {
		return fmt.Errorf("%w: requests per second cannot be negative", ErrInvalidConfig)
	}
	return nil
}

// OllamaGenerator implements Generator against a local Ollama server.
type OllamaGenerator struct {
	llm     *ollama.LLM
	config  Config
	limiter *rate.Limiter
	client  *http.Client
	metrics *Metrics
	logger  *zap.Logger
}

// NewOllamaGenerator creates a generator for the configured server.
// Connectivity is not verified here; use Healthy.
func NewOllamaGenerator(config Config, logger *zap.Logger) (*OllamaGenerator, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	config.ApplyDefaults()
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	client, err := ollama.New(
		ollama.WithServerURL(config.BaseURL),
		ollama.WithModel(config.Model),
	)
	if err != nil {
		return nil, fmt.Errorf("creating ollama client: %w", err)
	}

	limit := rate.Inf
	if config.RequestsPerSecond > 0 {
		limit = rate.Limit(config.RequestsPerSecond)
	}

	return &OllamaGenerator{
		llm:     client,
		config:  config,
		limiter: rate.NewLimiter(limit, config.Burst),
		client:  &http.Client{Timeout: config.HealthTimeout},
		metrics: NewMetrics(logger),
		logger:  logger,
	}, nil
}

// Generate runs one completion against the named model, retrying once
// on a transient failure. The caller's context carries the profile
// timeout and cancels the in-flight call on client disconnect.
func (g *OllamaGenerator) Generate(ctx context.Context, model, prompt string, opts Options) (_ string, genErr error) {
	start := time.Now()
	if model == "" {
		model = g.config.Model
	}
	defer func() {
		g.metrics.RecordGeneration(ctx, model, time.Since(start), genErr)
	}()

	if strings.TrimSpace(prompt) == "" {
		genErr = ErrEmptyPrompt
		return "", genErr
	}

	if err := g.limiter.Wait(ctx); err != nil {
		genErr = fmt.Errorf("rate limit wait: %w", err)
		return "", genErr
	}

	callOpts := buildCallOptions(model, opts)

	text, err := llms.GenerateFromSinglePrompt(ctx, g.llm, prompt, callOpts...)
	if err != nil && isTransient(err) && ctx.Err() == nil {
		g.logger.Warn("generation failed, retrying once",
			zap.String("model", model),
			zap.Error(err),
		)
		select {
		case <-ctx.Done():
			genErr = fmt.Errorf("%w: model %s: %v", ErrGenerationFailed, model, err)
			return "", genErr
		case <-time.After(g.config.RetryBackoff):
		}
		text, err = llms.GenerateFromSinglePrompt(ctx, g.llm, prompt, callOpts...)
	}
	if err != nil {
		genErr = fmt.Errorf("%w: model %s: %v", ErrGenerationFailed, model, err)
		return "", genErr
	}

	return strings.TrimSpace(text), nil
}

// Healthy pings the Ollama tags endpoint.
func (g *OllamaGenerator) Healthy(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.config.BaseURL+"/api/tags", http.NoBody)
	if err != nil {
		return fmt.Errorf("creating health request: %w", err)
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return fmt.Errorf("ollama unreachable: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("ollama returned status %d: %s", resp.StatusCode, string(body))
	}
	return nil
}

// Close releases resources. The underlying HTTP clients need none.
func (g *OllamaGenerator) Close() error {
	return nil
}

func buildCallOptions(model string, opts Options) []llms.CallOption {
	callOpts := []llms.CallOption{llms.WithModel(model)}
	if opts.MaxTokens > 0 {
		callOpts = append(callOpts, llms.WithMaxTokens(opts.MaxTokens))
	}
	if opts.Temperature > 0 {
		callOpts = append(callOpts, llms.WithTemperature(opts.Temperature))
	}
	if len(opts.StopWords) > 0 {
		callOpts = append(callOpts, llms.WithStopWords(opts.StopWords))
	}
	return callOpts
}

// isTransient reports whether an error is worth one retry: timeouts,
// connection drops, throttling, and server-side failures.
func isTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, syscall.ECONNREFUSED) || errors.Is(err, syscall.ECONNRESET) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	msg := strings.ToLower(err.Error())
	for _, marker := range []string{
		"timeout",
		"too many requests",
		"429",
		"internal server error",
		"bad gateway",
		"service unavailable",
		"connection refused",
		"connection reset",
		"unexpected eof",
	} {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}

var _ Generator = (*OllamaGenerator)(nil)
