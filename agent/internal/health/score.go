package health

import "github.com/obsidianstack/insightchannel/agent/internal/sender"

// Weight constants for the score formula.
// They must sum to 1.0.
const (
	weightDelivery = 0.50
	weightStreak   = 0.30
	weightRetry    = 0.20
)

// State constants returned by the score calculator.
const (
	StateHealthy  = "healthy"
	StateDegraded = "degraded"
	StateCritical = "critical"
	StateUnknown  = "unknown"
)

// Thresholds that map a score to a health state.
const (
	ThresholdHealthy  = 85.0
	ThresholdDegraded = 60.0
)

// StreakLimit is the number of consecutive failed batches at which the
// streak factor reaches zero.
const StreakLimit = 5

// Input holds the channel counters fed into the score formula.
type Input struct {
	Accepted          uint64
	Dropped           uint64
	Retried           uint64
	ConsecutiveErrors int
}

// FromStats extracts the score inputs from a sender snapshot.
func FromStats(st sender.Stats) Input {
	return Input{
		Accepted:          st.ItemsAccepted,
		Dropped:           st.ItemsDropped,
		Retried:           st.ItemsRetried,
		ConsecutiveErrors: st.ConsecutiveErrors,
	}
}

// Output is the result of the score calculation.
type Output struct {
	// Score is the composite health score in the range 0–100.
	Score float64 `json:"score"`

	// State is one of: "healthy", "degraded", "critical", "unknown".
	State string `json:"state"`

	// The three factor values (each 0–1) used to compute Score.
	DeliveryFactor float64 `json:"delivery_factor"`
	StreakFactor   float64 `json:"streak_factor"`
	RetryFactor    float64 `json:"retry_factor"`

	ConsecutiveErrors int `json:"consecutive_errors"`
}

// Compute calculates the channel score:
//
//	score = (
//	    accepted/(accepted+dropped)      * 0.50  +
//	    (1 - streak/StreakLimit)         * 0.30  +   // streak capped at StreakLimit
//	    accepted/(accepted+retried)      * 0.20
//	) * 100
//
// A ratio with an empty denominator counts as 1. A channel that has sent
// nothing and has no failure streak is "unknown".
func Compute(in Input) Output {
	if in.Accepted == 0 && in.Dropped == 0 && in.Retried == 0 && in.ConsecutiveErrors == 0 {
		return Output{State: StateUnknown}
	}

	deliveryFactor := ratio(in.Accepted, in.Accepted+in.Dropped)
	streakFactor := 1 - clamp01(float64(in.ConsecutiveErrors)/StreakLimit)
	retryFactor := ratio(in.Accepted, in.Accepted+in.Retried)

	score := (deliveryFactor*weightDelivery +
		streakFactor*weightStreak +
		retryFactor*weightRetry) * 100

	return Output{
		Score:             score,
		State:             stateFromScore(score),
		DeliveryFactor:    deliveryFactor,
		StreakFactor:      streakFactor,
		RetryFactor:       retryFactor,
		ConsecutiveErrors: in.ConsecutiveErrors,
	}
}

func ratio(num, den uint64) float64 {
	if den == 0 {
		return 1
	}
	return float64(num) / float64(den)
}

// stateFromScore maps a numeric score to a named health state.
func stateFromScore(score float64) string {
	switch {
	case score >= ThresholdHealthy:
		return StateHealthy
	case score >= ThresholdDegraded:
		return StateDegraded
	default:
		return StateCritical
	}
}

// clamp01 restricts v to the range [0, 1].
func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
