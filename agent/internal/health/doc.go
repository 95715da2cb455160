// Package health derives a composite delivery score for the telemetry channel.
//
// score.go provides the pure Compute(Input) function that calculates the
// score (0–100) from delivery ratio (50%), failure streak (30%) and retry
// pressure (20%). handler.go serves the result on the agent's /healthz route.
//
// Health state thresholds: Healthy ≥85, Degraded 60–84, Critical <60, Unknown.
package health
