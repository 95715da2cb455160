package sender

import (
	dto "github.com/prometheus/client_model/go"

	"github.com/obsidianstack/insightchannel/pkg/metrics"
)

// Collect reports the sender's counters as metric families.
func (s *Sender) Collect() []*dto.MetricFamily {
	st := s.Stats()
	transport := s.transport.String()
	return []*dto.MetricFamily{
		metrics.Counter("insight_channel_items_enqueued_total", "Items accepted into the send buffer.", float64(st.Enqueued)),
		metrics.Counter("insight_channel_batches_sent_total", "Batches handed to the transport.", float64(st.BatchesSent), "transport", transport),
		metrics.Counter("insight_channel_items_accepted_total", "Items acknowledged by the collector.", float64(st.ItemsAccepted)),
		metrics.Counter("insight_channel_items_retried_total", "Items re-queued after a retriable failure.", float64(st.ItemsRetried)),
		metrics.Counter("insight_channel_items_dropped_total", "Items dropped after a terminal failure.", float64(st.ItemsDropped)),
		metrics.Counter("insight_channel_items_rejected_total", "Items rejected before buffering.", float64(st.ItemsRejected)),
		metrics.Counter("insight_channel_items_sampled_out_total", "Items discarded by sampling.", float64(st.ItemsSampledOut)),
		metrics.Counter("insight_channel_eager_flushes_total", "Flushes forced by the batch byte budget.", float64(st.EagerFlushes)),
		metrics.Counter("insight_channel_diagnostics_suppressed_total", "Warnings dropped by the diagnostic rate limit.", float64(st.DiagnosticsSuppressed)),
		metrics.Gauge("insight_channel_queue_items", "Items waiting to be sent.", float64(st.Queued)),
		metrics.Gauge("insight_channel_in_flight_items", "Items handed to a transport and awaiting an outcome.", float64(st.InFlight)),
		metrics.Gauge("insight_channel_consecutive_errors", "Failed batches since the last full success.", float64(st.ConsecutiveErrors)),
	}
}
