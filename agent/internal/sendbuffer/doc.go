// Package sendbuffer holds serialized telemetry payloads between Process and
// delivery.
//
// A payload is an opaque string; its value is its identity. Each buffer keeps
// two ordered lists: queued payloads that have never been dispatched, and
// in-flight payloads handed to a transport whose outcome is pending.
// MarkAsSent moves payloads from queued to in-flight; ClearSent removes them
// once resolved. Nothing is reordered in place.
//
// Two variants implement Buffer:
//   - Array keeps both lists in memory only.
//   - Durable mirrors both lists to a storage.Store on every mutation under
//     <prefix>AI_buffer and <prefix>AI_sentBuffer, and restores them on
//     construction so queued telemetry survives a restart. In-flight payloads
//     from the previous run are re-queued because their outcome is unknown.
//
// New picks Durable when it is enabled and the store passes
// storage.Available, otherwise Array.
//
// Buffers are not safe for concurrent use; the sender serializes access.
package sendbuffer
