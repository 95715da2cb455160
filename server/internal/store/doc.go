// Package store keeps envelopes accepted by the collector in memory, grouped
// by instrumentation key, with TTL eviction and a per-key cap. The query API
// reads from it; nothing is persisted.
package store
