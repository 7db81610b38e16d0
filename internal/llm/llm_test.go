package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/llms"
	"go.uber.org/zap"
)

type chatRequest struct {
	Model    string `json:"model"`
	Messages []struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"messages"`
	Options struct {
		NumPredict  int      `json:"num_predict"`
		Temperature float64  `json:"temperature"`
		Stop        []string `json:"stop"`
	} `json:"options"`
}

func chatReply(t *testing.T, w http.ResponseWriter, content string) {
	t.Helper()
	w.Header().Set("Content-Type", "application/json")
	err := json.NewEncoder(w).Encode(map[string]any{
		"model":      "test",
		"created_at": time.Now().UTC().Format(time.RFC3339),
		"message":    map[string]string{"role": "assistant", "content": content},
		"done":       true,
	})
	assert.NoError(t, err)
}

func newTestGenerator(t *testing.T, handler http.Handler) *OllamaGenerator {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	gen, err := NewOllamaGenerator(Config{
		BaseURL:      server.URL,
		RetryBackoff: time.Millisecond,
	}, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = gen.Close() })

	return gen
}

func TestConfig_ApplyDefaults(t *testing.T) {
	config := Config{BaseURL: "http://ollama:11434/"}
	config.ApplyDefaults()

	assert.Equal(t, "http://ollama:11434", config.BaseURL)
	assert.Equal(t, "qwen2.5:7b", config.Model)
	assert.Equal(t, 1, config.Burst)
	assert.Equal(t, 500*time.Millisecond, config.RetryBackoff)
	assert.Equal(t, 5*time.Second, config.HealthTimeout)
}

func TestConfig_Validate(t *testing.T) {
	valid := Config{BaseURL: "http://localhost:11434", Model: "qwen2.5:7b"}
	assert.NoError(t, valid.Validate())

	negative := Config{BaseURL: "http://localhost:11434", Model: "qwen2.5:7b", RequestsPerSecond: -1}
	assert.ErrorIs(t, negative.Validate(), ErrInvalidConfig)
}

func TestOllamaGenerator_Generate(t *testing.T) {
	var captured chatRequest
	gen := newTestGenerator(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/chat", r.URL.Path)
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&captured))
		chatReply(t, w, "  Die Öffnungszeiten sind Montag bis Freitag.  ")
	}))

	answer, err := gen.Generate(context.Background(), "qwen2.5:3b", "Wann habt ihr geöffnet?", Options{
		MaxTokens:   150,
		Temperature: 0.1,
		StopWords:   []string{"Frage:"},
	})
	require.NoError(t, err)

	assert.Equal(t, "Die Öffnungszeiten sind Montag bis Freitag.", answer)
	assert.Equal(t, "qwen2.5:3b", captured.Model)
	require.Len(t, captured.Messages, 1)
	assert.Equal(t, "user", captured.Messages[0].Role)
	assert.Equal(t, "Wann habt ihr geöffnet?", captured.Messages[0].Content)
	assert.Equal(t, 150, captured.Options.NumPredict)
	assert.InDelta(t, 0.1, captured.Options.Temperature, 1e-9)
	assert.Equal(t, []string{"Frage:"}, captured.Options.Stop)
}

func TestOllamaGenerator_EmptyModelUsesDefault(t *testing.T) {
	var captured chatRequest
	gen := newTestGenerator(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&captured))
		chatReply(t, w, "ok")
	}))

	_, err := gen.Generate(context.Background(), "", "Frage", Options{})
	require.NoError(t, err)
	assert.Equal(t, "qwen2.5:7b", captured.Model)
}

func TestOllamaGenerator_RetriesOnTransientError(t *testing.T) {
	var attempts atomic.Int32
	gen := newTestGenerator(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if attempts.Add(1) == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			_, _ = w.Write([]byte(`{"error":"internal server error"}`))
			return
		}
		chatReply(t, w, "Antwort nach Wiederholung")
	}))

	answer, err := gen.Generate(context.Background(), "qwen2.5:7b", "Frage", Options{})
	require.NoError(t, err)
	assert.Equal(t, "Antwort nach Wiederholung", answer)
	assert.Equal(t, int32(2), attempts.Load())
}

func TestOllamaGenerator_FailsAfterSingleRetry(t *testing.T) {
	var attempts atomic.Int32
	gen := newTestGenerator(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"internal server error"}`))
	}))

	_, err := gen.Generate(context.Background(), "qwen2.5:7b", "Frage", Options{})
	assert.ErrorIs(t, err, ErrGenerationFailed)
	assert.Equal(t, int32(2), attempts.Load())
}

func TestOllamaGenerator_NoRetryOnPermanentError(t *testing.T) {
	var attempts atomic.Int32
	gen := newTestGenerator(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":"model 'fehlt' not found"}`))
	}))

	_, err := gen.Generate(context.Background(), "fehlt", "Frage", Options{})
	assert.ErrorIs(t, err, ErrGenerationFailed)
	assert.Equal(t, int32(1), attempts.Load())
}

func TestOllamaGenerator_EmptyPrompt(t *testing.T) {
	gen := newTestGenerator(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("server must not be called for an empty prompt")
	}))

	_, err := gen.Generate(context.Background(), "qwen2.5:7b", "   \n\t", Options{})
	assert.ErrorIs(t, err, ErrEmptyPrompt)
}

func TestOllamaGenerator_Healthy(t *testing.T) {
	gen := newTestGenerator(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/tags", r.URL.Path)
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"models":[]}`))
	}))

	assert.NoError(t, gen.Healthy(context.Background()))
}

func TestOllamaGenerator_Unhealthy(t *testing.T) {
	gen := newTestGenerator(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))

	err := gen.Healthy(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "503")
}

func TestBuildCallOptions(t *testing.T) {
	opts := buildCallOptions("qwen2.5:3b", Options{
		MaxTokens:   150,
		Temperature: 0.1,
		StopWords:   []string{"Frage:"},
	})

	var resolved llms.CallOptions
	for _, opt := range opts {
		opt(&resolved)
	}

	assert.Equal(t, "qwen2.5:3b", resolved.Model)
	assert.Equal(t, 150, resolved.MaxTokens)
	assert.InDelta(t, 0.1, resolved.Temperature, 1e-9)
	assert.Equal(t, []string{"Frage:"}, resolved.StopWords)
}

func TestBuildCallOptions_ZeroValuesOmitted(t *testing.T) {
	opts := buildCallOptions("qwen2.5:7b", Options{})

	var resolved llms.CallOptions
	for _, opt := range opts {
		opt(&resolved)
	}

	assert.Equal(t, "qwen2.5:7b", resolved.Model)
	assert.Zero(t, resolved.MaxTokens)
	assert.Zero(t, resolved.Temperature)
	assert.Empty(t, resolved.StopWords)
}

func TestIsTransient(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"deadline exceeded", context.DeadlineExceeded, true},
		{"throttled", errors.New("429 Too Many Requests"), true},
		{"server error", errors.New("error response: internal server error"), true},
		{"bad gateway", errors.New("502 Bad Gateway"), true},
		{"connection refused", errors.New("dial tcp 127.0.0.1:11434: connect: connection refused"), true},
		{"model missing", errors.New("error response: model 'fehlt' not found"), false},
		{"plain error", errors.New("boom"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, isTransient(tt.err))
		})
	}
}
