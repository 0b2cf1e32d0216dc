package backoff

import (
	"testing"
	"time"

	"github.com/architeacher/svc-commerce-saga/internal/config"
	"github.com/stretchr/testify/assert"
)

func TestExponentialBackoff(t *testing.T) {
	t.Parallel()

	cfg := config.BackoffConfig{
		BaseDelay:  1 * time.Second,
		Multiplier: 2.0,
		Jitter:     0.2,
		MaxDelay:   60 * time.Second,
	}

	tests := []struct {
		name        string
		retries     int
		minExpected time.Duration
		maxExpected time.Duration
	}{
		{
			name:        "no retries uses base delay",
			retries:     0,
			minExpected: 1 * time.Second,
			maxExpected: 1 * time.Second,
		},
		{
			name:        "first retry doubles",
			retries:     1,
			minExpected: 1600 * time.Millisecond,
			maxExpected: 2400 * time.Millisecond,
		},
		{
			name:        "third retry",
			retries:     3,
			minExpected: 6400 * time.Millisecond,
			maxExpected: 9600 * time.Millisecond,
		},
		{
			name:        "high retry count capped at max delay",
			retries:     20,
			minExpected: 48 * time.Second,
			maxExpected: 72 * time.Second,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			strategy := NewExponentialStrategy(cfg)

			for i := 0; i < 50; i++ {
				got := strategy.Backoff(tt.retries)
				assert.GreaterOrEqual(t, got, tt.minExpected)
				assert.LessOrEqual(t, got, tt.maxExpected)
			}
		})
	}
}
