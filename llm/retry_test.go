package llm

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRetryConfig_BackoffGrowsAndCaps(t *testing.T) {
	cfg := RetryConfig{
		MaxAttempts:       5,
		BackoffBase:       time.Second,
		BackoffMultiplier: 2.0,
		MaxBackoff:        3 * time.Second,
	}

	// Jitter is +/-25%, so assert against the band rather than the exact value.
	band := func(want time.Duration) (time.Duration, time.Duration) {
		return time.Duration(float64(want) * 0.75), time.Duration(float64(want) * 1.25)
	}

	lo, hi := band(time.Second)
	d := cfg.backoff(1)
	assert.GreaterOrEqual(t, d, lo)
	assert.LessOrEqual(t, d, hi)

	lo, hi = band(2 * time.Second)
	d = cfg.backoff(2)
	assert.GreaterOrEqual(t, d, lo)
	assert.LessOrEqual(t, d, hi)

	// Attempt 3 would be 4s uncapped; MaxBackoff holds it at 3s.
	lo, hi = band(3 * time.Second)
	d = cfg.backoff(3)
	assert.GreaterOrEqual(t, d, lo)
	assert.LessOrEqual(t, d, hi)
}
