package sender

import "time"

// Stats is a point-in-time copy of the sender's counters and gauges.
type Stats struct {
	// Counters.
	Enqueued              uint64
	BatchesSent           uint64
	ItemsAccepted         uint64
	ItemsRetried          uint64
	ItemsDropped          uint64
	ItemsRejected         uint64
	ItemsSampledOut       uint64
	EagerFlushes          uint64
	DiagnosticsSuppressed uint64

	// Gauges.
	Queued            int
	InFlight          int
	ConsecutiveErrors int
	LastSend          time.Time
}
