package pipeline

import "time"

// MaxPollAttempts is the hard ceiling on polling steps per job. Timeout is
// enforced by attempt count, not wall clock; with the delay cap below the
// worst case is in the tens of minutes.
const MaxPollAttempts = 90

const (
	baseDelay      = 10 * time.Second
	delayIncrement = 2 * time.Second
	maxDelay       = 30 * time.Second
)

// NextDelay computes the wait before the next polling step. The schedule
// starts at 10s, grows by 2s per completed attempt and caps at 30s. Pure so
// it can be tested apart from the queue client.
func NextDelay(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}

	delay := baseDelay + time.Duration(attempt)*delayIncrement
	if delay > maxDelay {
		return maxDelay
	}
	return delay
}
