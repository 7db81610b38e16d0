package monitor

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFormatRate(t *testing.T) {
	assert.Equal(t, "0.0 req/min", FormatRate(0))
	assert.Equal(t, "12.5 req/min", FormatRate(12.5))
	assert.Equal(t, "3.3 req/min", FormatRate(3.333))
}

func TestFormatRSQ(t *testing.T) {
	assert.Equal(t, "0.000", FormatRSQ(0))
	assert.Equal(t, "0.350", FormatRSQ(0.35))
	assert.Equal(t, "0.825", FormatRSQ(0.825))
}

func TestFormatPercentage(t *testing.T) {
	assert.Equal(t, "0.0%", FormatPercentage(0))
	assert.Equal(t, "50.0%", FormatPercentage(0.5))
	assert.Equal(t, "100.0%", FormatPercentage(1))
}

func TestFormatCount(t *testing.T) {
	assert.Equal(t, "0", FormatCount(0))
	assert.Equal(t, "9999", FormatCount(9999))
	assert.Equal(t, "10.0k", FormatCount(10_000))
	assert.Equal(t, "12.3k", FormatCount(12_345))
}

func TestFormatUptime(t *testing.T) {
	assert.Equal(t, "0m", FormatUptime(0))
	assert.Equal(t, "5m", FormatUptime(330))
	assert.Equal(t, "1h 0m", FormatUptime(3600))
	assert.Equal(t, "2h 30m", FormatUptime(9000))
}
