package telemetry

import (
	"fmt"
	"time"
)

// Config holds OpenTelemetry configuration.
type Config struct {
	// Enabled controls whether OTLP exporters are created at all.
	// When false, New returns a no-op instance and global providers stay
	// untouched.
	Enabled bool

	ServiceName    string
	ServiceVersion string

	// Endpoint is the OTLP collector endpoint (host:port).
	Endpoint string

	// Protocol selects the exporter transport: "grpc" (default) or "http".
	Protocol string

	// Insecure disables TLS on the exporter connection.
	Insecure bool

	// SampleRatio is the head-sampling ratio in [0,1]; wrapped in a
	// parent-based sampler so propagated decisions win.
	SampleRatio float64

	// MetricInterval is the periodic reader export interval.
	MetricInterval time.Duration

	// ShutdownTimeout bounds provider shutdown when the caller's context
	// has no deadline.
	ShutdownTimeout time.Duration
}

// ApplyDefaults sets default values for unset fields.
func (c *Config) ApplyDefaults() {
	if c.ServiceName == "" {
		c.ServiceName = "ragd"
	}
	if c.Endpoint == "" {
		c.Endpoint = "localhost:4317"
	}
	if c.Protocol == "" {
		c.Protocol = "grpc"
	}
	if c.SampleRatio == 0 {
		c.SampleRatio = 1.0
	}
	if c.MetricInterval == 0 {
		c.MetricInterval = 30 * time.Second
	}
	if c.ShutdownTimeout == 0 {
		c.ShutdownTimeout = 5 * time.Second
	}
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if !c.Enabled {
		return nil
	}
	if c.ServiceName == "" {
		return fmt.Errorf("service name required when telemetry is enabled")
	}
	if c.Endpoint == "" {
		return fmt.Errorf("endpoint required when telemetry is enabled")
	}
	if c.Protocol != "grpc" && c.Protocol != "http" {
		return fmt.Errorf("protocol must be 'grpc' or 'http', got %q", c.Protocol)
	}
	if c.SampleRatio < 0 || c.SampleRatio > 1 {
		return fmt.Errorf("sample ratio must be in [0,1], got %v", c.SampleRatio)
	}
	return nil
}
