// internal/logging/logger_test.go
package logging

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestNewLogger(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{
			name:   "defaults are valid",
			mutate: func(*Config) {},
		},
		{
			name:   "console format",
			mutate: func(c *Config) { c.Format = "console" },
		},
		{
			name:    "unknown format rejected",
			mutate:  func(c *Config) { c.Format = "logfmt" },
			wantErr: true,
		},
		{
			name:    "unknown level rejected",
			mutate:  func(c *Config) { c.Level = "loud" },
			wantErr: true,
		},
		{
			name: "no outputs rejected",
			mutate: func(c *Config) {
				c.Output.Stdout = false
				c.Output.OTEL = false
			},
			wantErr: true,
		},
		{
			name:    "negative caller skip rejected",
			mutate:  func(c *Config) { c.Caller.Skip = -1 },
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewDefaultConfig()
			tt.mutate(cfg)

			logger, err := NewLogger(cfg, nil)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.NotNil(t, logger)
			assert.NoError(t, logger.Sync())
		})
	}
}

func TestLoggerContextFields(t *testing.T) {
	tl := NewTestLogger()

	ctx := WithTenant(context.Background(), "acme")
	ctx = WithDocument(ctx, "handbook.txt")
	ctx = WithRequestID(ctx, "req-123")

	tl.Info(ctx, "ingest complete", zap.Int("chunks", 4))

	entries := tl.All()
	require.Len(t, entries, 1)

	fields := entries[0].ContextMap()
	assert.Equal(t, "acme", fields["tenant_id"])
	assert.Equal(t, "handbook.txt", fields["document"])
	assert.Equal(t, "req-123", fields["request_id"])
	assert.Equal(t, int64(4), fields["chunks"])
}

func TestLoggerNamed(t *testing.T) {
	tl := NewTestLogger()

	child := tl.Named("vectorstore")
	child.Info(context.Background(), "hello")

	entries := tl.All()
	require.Len(t, entries, 1)
	assert.Equal(t, "vectorstore", entries[0].LoggerName)
}

func TestTraceLevelGating(t *testing.T) {
	core, observed := observer.New(zapcore.DebugLevel)
	logger := &Logger{zap: zap.New(core), config: NewDefaultConfig()}

	logger.Trace(context.Background(), "wire detail")
	assert.Equal(t, 0, observed.Len(), "trace should be filtered below debug")

	logger.Debug(context.Background(), "debug detail")
	assert.Equal(t, 1, observed.Len())
}

func TestLevelFromString(t *testing.T) {
	level, err := LevelFromString("trace")
	require.NoError(t, err)
	assert.Equal(t, TraceLevel, level)

	level, err = LevelFromString("warn")
	require.NoError(t, err)
	assert.Equal(t, zapcore.WarnLevel, level)

	_, err = LevelFromString("shout")
	assert.Error(t, err)
}
