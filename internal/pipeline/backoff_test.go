package pipeline

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNextDelay(t *testing.T) {
	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{0, 10 * time.Second},
		{1, 12 * time.Second},
		{5, 20 * time.Second},
		{9, 28 * time.Second},
		{10, 30 * time.Second},
		{11, 30 * time.Second},
		{89, 30 * time.Second},
		{-1, 10 * time.Second},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, NextDelay(tt.attempt), "attempt %d", tt.attempt)
	}
}

func TestNextDelay_MonotonicUntilCap(t *testing.T) {
	prev := NextDelay(0)
	for attempt := 1; attempt < MaxPollAttempts; attempt++ {
		next := NextDelay(attempt)
		assert.GreaterOrEqual(t, next, prev)
		assert.LessOrEqual(t, next, 30*time.Second)
		prev = next
	}
}
