// Package envelope turns a domain telemetry Item into the serialized
// wire-format envelope the collector accepts.
//
// Builder.Validate enforces the fields each kind requires (an event needs a
// name, a metric a name and value, an exception a type, and so on).
// Builder.Build renders the envelope:
//
//	{"name":"Microsoft.ApplicationInsights.<ikey>.Event","time":"...","iKey":"...",
//	 "sampleRate":50,"tags":{...},"data":{"baseType":"EventData","baseData":{...}}}
//
// Items without an ai.operation.id tag are given one (a dashless uuid) so the
// sampler and the collector can correlate them.
package envelope
