package telemetry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDisabledTelemetryIsNoop(t *testing.T) {
	tel, err := New(context.Background(), &Config{Enabled: false})
	require.NoError(t, err)

	assert.False(t, tel.Degraded())
	assert.NotNil(t, tel.Tracer("ragd.test"))
	assert.NotNil(t, tel.Meter("ragd.test"))
	assert.Nil(t, tel.LoggerProvider())
	assert.NoError(t, tel.Shutdown(context.Background()))
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"disabled ignores everything", Config{Enabled: false}, false},
		{"enabled with defaults", func() Config {
			c := Config{Enabled: true}
			c.ApplyDefaults()
			return c
		}(), false},
		{"bad protocol", Config{Enabled: true, ServiceName: "ragd", Endpoint: "x:1", Protocol: "udp"}, true},
		{"bad ratio", Config{Enabled: true, ServiceName: "ragd", Endpoint: "x:1", Protocol: "grpc", SampleRatio: 2}, true},
		{"missing endpoint", Config{Enabled: true, ServiceName: "ragd", Protocol: "grpc"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestStripScheme(t *testing.T) {
	assert.Equal(t, "collector:4318", stripScheme("https://collector:4318"))
	assert.Equal(t, "collector:4318", stripScheme("http://collector:4318"))
	assert.Equal(t, "collector:4318", stripScheme("collector:4318"))
}

func TestNilTelemetryAccessorsAreSafe(t *testing.T) {
	var tel *Telemetry
	assert.NotNil(t, tel.Tracer("ragd.test"))
	assert.NotNil(t, tel.Meter("ragd.test"))
	assert.Nil(t, tel.LoggerProvider())
	assert.False(t, tel.Degraded())
	assert.NoError(t, tel.Shutdown(context.Background()))
}
