package vectorstore

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	grpccodes "google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func TestQdrantConfig_ApplyDefaults(t *testing.T) {
	config := QdrantConfig{}
	config.ApplyDefaults()

	assert.Equal(t, "localhost", config.Host)
	assert.Equal(t, 6334, config.Port)
	assert.Equal(t, uint64(768), config.VectorSize)
	assert.Equal(t, 3, config.MaxRetries)
	assert.Equal(t, time.Second, config.RetryBackoff)
	assert.Equal(t, 50*1024*1024, config.MaxMessageSize)
	assert.Equal(t, 5, config.CircuitBreakerThreshold)
}

func TestQdrantConfig_Validate(t *testing.T) {
	valid := QdrantConfig{Host: "localhost", Port: 6334, VectorSize: 768}
	assert.NoError(t, valid.Validate())

	tests := []struct {
		name   string
		config QdrantConfig
	}{
		{"missing host", QdrantConfig{Port: 6334, VectorSize: 768}},
		{"zero port", QdrantConfig{Host: "localhost", VectorSize: 768}},
		{"port out of range", QdrantConfig{Host: "localhost", Port: 70000, VectorSize: 768}},
		{"zero vector size", QdrantConfig{Host: "localhost", Port: 6334}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, tt.config.Validate(), ErrInvalidConfig)
		})
	}
}

func TestPointID_Deterministic(t *testing.T) {
	first := pointID("kunde_a", "faq.md:v1:0")
	second := pointID("kunde_a", "faq.md:v1:0")
	assert.Equal(t, first, second)

	assert.NotEqual(t, first, pointID("kunde_b", "faq.md:v1:0"))
	assert.NotEqual(t, first, pointID("kunde_a", "faq.md:v2:0"))
}

func TestIsTransientError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"unavailable", status.Error(grpccodes.Unavailable, "down"), true},
		{"deadline exceeded", status.Error(grpccodes.DeadlineExceeded, "slow"), true},
		{"aborted", status.Error(grpccodes.Aborted, "conflict"), true},
		{"resource exhausted", status.Error(grpccodes.ResourceExhausted, "quota"), true},
		{"not found", status.Error(grpccodes.NotFound, "missing"), false},
		{"invalid argument", status.Error(grpccodes.InvalidArgument, "bad"), false},
		{"plain error", errors.New("boom"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, isTransientError(tt.err))
		})
	}
}
