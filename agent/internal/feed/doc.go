// Package feed reads telemetry items for the agent from newline-delimited
// JSON, one envelope.Item per line.
//
// Blank lines are skipped. A line that does not decode is logged and counted
// but does not stop the feed, matching how the channel treats a bad item: the
// item is dropped, the pipeline keeps running.
package feed
