// Package metrics renders and parses the Prometheus text exposition format
// without a client registry.
//
// Components keep their own counters and expose them as a slice of
// dto.MetricFamily built with Counter and Gauge. Handler serves a collect
// function at /metrics; Write sorts families by name so output is stable.
// Parse and Sum read an exposition back, which the tests and the agent's
// self-check use.
package metrics
