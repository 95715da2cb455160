// Package sender batches serialized telemetry envelopes and delivers them to
// a collector track endpoint.
//
// Sender.Process validates, samples and serializes an envelope.Item through
// an EnvelopeBuilder, then appends the payload to a sendbuffer.Buffer. A
// payload that would push the batch past max_batch_size_bytes flushes the
// existing buffer first. Otherwise a single flush timer fires after
// max_batch_interval; arming is a no-op while a timer exists.
//
// One transport is bound at construction and never changes:
//   - fire-and-forget posts without reading the outcome (bodies over 64 KiB
//     fall back to request/response)
//   - request/response reconciles from the status code and body
//   - legacy posts text/plain and reconciles from the body only
//
// Reconciliation: any 2xx other than 206 is success and resets the error
// counter. 408, 429, 500, 503 and network errors re-queue the batch at the
// tail and push the next flush out by NextDelay (10s, then random
// exponential up to 1h). A 206 is split per item using the errors array.
// Everything else drops the batch. Retries are unbounded.
//
// All state is guarded by one mutex. Transport calls run outside it and
// reconcile by re-acquiring it. The post and dispatch fields are injectable
// for tests.
package sender
