// Package ingest implements the collector's HTTP surface.
//
// Routes() returns a chi router serving:
//
//	POST /v2/track, /v2.1/track  — batch ingestion (auth middleware applies)
//	GET  /api/v1/envelopes?ikey= — accepted envelopes for one key
//	GET  /api/v1/keys            — instrumentation keys with stored envelopes
//	GET  /metrics                — ingestion counters, text exposition
//	GET  /healthz                — liveness
//
// A track body is a JSON array of envelopes or newline-delimited envelopes,
// optionally gzip-encoded. Each envelope needs name, an RFC 3339 time, iKey
// and data.baseType. A body that splits into envelopes is answered with a
// types.BatchResponse: 200 when every envelope was accepted, 206 with a
// per-index 400 error for each invalid one, 400 when none was accepted.
// Unreadable bodies get an error object instead. Both carry the appId.
//
// A fault script answers the first batches with configured statuses instead of
// ingesting them, so channel retries can be exercised end to end.
package ingest
