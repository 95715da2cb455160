package sender

import (
	"math"
	"testing"

	"github.com/obsidianstack/insightchannel/agent/internal/envelope"
)

func withOp(kind envelope.Kind, op string) envelope.Item {
	return envelope.Item{Kind: kind, Name: "x", Tags: map[string]string{envelope.TagOperationID: op}}
}

func TestSamplingScore(t *testing.T) {
	cases := []struct {
		key  string
		want float64
	}{
		{"abc", 46.1236},
		{"op-1", 5.0010},
		{"0123456789abcdef", 33.5693},
	}
	for _, tc := range cases {
		if got := samplingScore(tc.key); math.Abs(got-tc.want) > 0.001 {
			t.Errorf("samplingScore(%q) = %v, want ~%v", tc.key, got, tc.want)
		}
	}
}

func TestSampledIn(t *testing.T) {
	never := func() float64 { t.Fatal("rnd called for item with operation id"); return 0 }
	cases := []struct {
		name string
		pct  float64
		item envelope.Item
		want bool
	}{
		{"full rate keeps everything", 100, withOp(envelope.KindEvent, "abc"), true},
		{"zero rate drops events", 0, withOp(envelope.KindEvent, "op-1"), false},
		{"metrics are never sampled", 0, withOp(envelope.KindMetric, "abc"), true},
		{"score below rate is kept", 10, withOp(envelope.KindTrace, "op-1"), true},
		{"score above rate is dropped", 40, withOp(envelope.KindTrace, "abc"), false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := sampledIn(tc.pct, tc.item, never); got != tc.want {
				t.Errorf("sampledIn(%v) = %v, want %v", tc.pct, got, tc.want)
			}
		})
	}
}

func TestSampledIn_NoOperationIDUsesRandom(t *testing.T) {
	it := envelope.Item{Kind: envelope.KindEvent, Name: "x"}
	if !sampledIn(50, it, func() float64 { return 0.2 }) {
		t.Error("sampledIn with rnd 0.2 at 50% = false, want true")
	}
	if sampledIn(50, it, func() float64 { return 0.8 }) {
		t.Error("sampledIn with rnd 0.8 at 50% = true, want false")
	}
}

func TestSampledIn_SameOperationSameDecision(t *testing.T) {
	a := withOp(envelope.KindRequest, "0123456789abcdef")
	b := withOp(envelope.KindDependency, "0123456789abcdef")
	for _, pct := range []float64{10, 33, 34, 90} {
		if sampledIn(pct, a, nil) != sampledIn(pct, b, nil) {
			t.Errorf("items sharing an operation id diverged at %v%%", pct)
		}
	}
}
