package sender

import (
	"math"
	"time"
)

const (
	retrySlot     = 10 * time.Second
	minRetryDelay = 10 * time.Second
	maxRetryDelay = time.Hour
)

// NextDelay maps the consecutive-failure count to a retry delay: a fixed 10s
// for the first failure, then a random point in an exponentially growing
// window, clamped to [10s, 1h]. rnd must return values in [0, 1).
func NextDelay(consecutiveErrors int, rnd func() float64) time.Duration {
	if consecutiveErrors <= 1 {
		return minRetryDelay
	}
	slot := (math.Pow(2, float64(consecutiveErrors)) - 1) / 2
	candidateMs := math.Floor(rnd()*slot*float64(retrySlot.Milliseconds())) + 1

	// Compare in float space: large counts overflow a Duration.
	switch {
	case math.IsNaN(candidateMs), candidateMs < float64(minRetryDelay.Milliseconds()):
		return minRetryDelay
	case candidateMs > float64(maxRetryDelay.Milliseconds()):
		return maxRetryDelay
	}
	return time.Duration(candidateMs) * time.Millisecond
}
