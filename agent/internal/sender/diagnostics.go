package sender

import (
	"log/slog"
	"sync/atomic"

	"golang.org/x/time/rate"
)

// MsgID tags every diagnostic so operators can filter on it.
type MsgID string

const (
	MsgSenderNotInitialized        MsgID = "SenderNotInitialized"
	MsgInvalidEvent                MsgID = "InvalidEvent"
	MsgItemSampledOut              MsgID = "ItemSampledOut"
	MsgTransmissionFailed          MsgID = "TransmissionFailed"
	MsgTransmissionRetried         MsgID = "TransmissionRetried"
	MsgPartialSuccess              MsgID = "PartialSuccess"
	MsgFailedToSendQueuedTelemetry MsgID = "FailedToSendQueuedTelemetry"
	MsgFireAndForgetRejected       MsgID = "FireAndForgetRejected"
	MsgPanicRecovered              MsgID = "PanicRecovered"
)

// Warnings share a token bucket so a failing collector cannot flood the host's logs.
const (
	diagBurst      = 25
	diagRatePerSec = 1
)

type diagnostics struct {
	logger     *slog.Logger
	limiter    *rate.Limiter
	suppressed atomic.Uint64
}

func newDiagnostics(logger *slog.Logger) *diagnostics {
	return &diagnostics{
		logger:  logger,
		limiter: rate.NewLimiter(rate.Limit(diagRatePerSec), diagBurst),
	}
}

func (d *diagnostics) warn(id MsgID, msg string, args ...any) {
	if !d.limiter.Allow() {
		d.suppressed.Add(1)
		return
	}
	d.logger.Warn(msg, append([]any{"msg_id", string(id)}, args...)...)
}

// critical is never throttled.
func (d *diagnostics) critical(id MsgID, msg string, args ...any) {
	d.logger.Error(msg, append([]any{"msg_id", string(id)}, args...)...)
}

func (d *diagnostics) debug(msg string, args ...any) {
	d.logger.Debug(msg, args...)
}
