// Package storage provides the per-instance durable storage behind the
// durable send buffer: an ordered list of serialized payloads per key.
//
// NewMemory keeps lists in a map and is used in tests and when no storage
// directory is configured. NewFile writes one JSON file per key under a
// directory, replacing it atomically on every Save so a crash mid-write never
// leaves a truncated list behind.
//
// Available(store) probes a store with a write/read/remove round trip; the
// send buffer only selects its durable variant when the probe succeeds.
package storage
