package sender

import (
	"bytes"
	"net/http"
	"testing"

	"github.com/obsidianstack/insightchannel/pkg/metrics"
)

func TestCollect(t *testing.T) {
	h := newHarness(t, nil)
	h.process("A", "B", "invalid")
	h.respond(http.StatusServiceUnavailable, "")
	h.s.TriggerSend(true)
	h.deliver()

	var buf bytes.Buffer
	if err := metrics.Write(&buf, h.s.Collect()); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	mfs, err := metrics.Parse(&buf)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	want := map[string]float64{
		"insight_channel_items_enqueued_total": 2,
		"insight_channel_batches_sent_total":   1,
		"insight_channel_items_retried_total":  2,
		"insight_channel_items_rejected_total": 1,
		"insight_channel_queue_items":          2,
		"insight_channel_in_flight_items":      0,
		"insight_channel_consecutive_errors":   1,
	}
	for name, v := range want {
		if got := metrics.Sum(mfs[name]); got != v {
			t.Errorf("%s = %v, want %v", name, got, v)
		}
	}
}
