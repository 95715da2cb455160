// Package types defines the wire types shared by the agent-side channel and
// the collector: the batch-acceptance response returned for every POST to the
// track endpoint.
package types
