package metrics

import (
	"bytes"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	dto "github.com/prometheus/client_model/go"
)

func TestWriteParseRoundTrip(t *testing.T) {
	families := []*dto.MetricFamily{
		Gauge("insight_queue_items", "Items waiting.", 4),
		Counter("insight_items_dropped_total", "Items dropped.", 2, "reason", "terminal"),
	}

	var buf bytes.Buffer
	if err := Write(&buf, families); err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	out := buf.String()
	if strings.Index(out, "insight_items_dropped_total") > strings.Index(out, "insight_queue_items") {
		t.Errorf("families not sorted by name:\n%s", out)
	}
	if !strings.Contains(out, `insight_items_dropped_total{reason="terminal"} 2`) {
		t.Errorf("labelled counter missing:\n%s", out)
	}

	mfs, err := Parse(&buf)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if got := Sum(mfs["insight_queue_items"]); got != 4 {
		t.Errorf("insight_queue_items = %v, want 4", got)
	}
	if got := mfs["insight_items_dropped_total"].GetType(); got != dto.MetricType_COUNTER {
		t.Errorf("dropped type = %v, want COUNTER", got)
	}
}

func TestSum(t *testing.T) {
	if got := Sum(nil); got != 0 {
		t.Errorf("Sum(nil) = %v, want 0", got)
	}
	mfs, err := Parse(strings.NewReader("# TYPE x counter\nx{a=\"1\"} 3\nx{a=\"2\"} 4\n"))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if got := Sum(mfs["x"]); got != 7 {
		t.Errorf("Sum(x) = %v, want 7", got)
	}
}

func TestParse_Garbage(t *testing.T) {
	if _, err := Parse(strings.NewReader("{{not metrics")); err == nil {
		t.Error("Parse(garbage): expected error, got nil")
	}
}

func TestHandler(t *testing.T) {
	calls := 0
	h := Handler(func() []*dto.MetricFamily {
		calls++
		return []*dto.MetricFamily{Counter("insight_batches_sent_total", "Batches sent.", float64(calls))}
	})

	srv := httptest.NewServer(h)
	defer srv.Close()

	for want := 1; want <= 2; want++ {
		resp, err := http.Get(srv.URL)
		if err != nil {
			t.Fatalf("GET: %v", err)
		}
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		if !strings.HasPrefix(resp.Header.Get("Content-Type"), "text/plain") {
			t.Errorf("Content-Type = %q, want text/plain", resp.Header.Get("Content-Type"))
		}
		mfs, err := Parse(bytes.NewReader(body))
		if err != nil {
			t.Fatalf("Parse() error = %v", err)
		}
		if got := Sum(mfs["insight_batches_sent_total"]); got != float64(want) {
			t.Errorf("round %d: value = %v, want %d", want, got, want)
		}
	}
}
