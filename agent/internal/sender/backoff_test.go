package sender

import (
	"testing"
	"time"
)

func TestNextDelay_FirstFailureIsFixed(t *testing.T) {
	for _, n := range []int{-1, 0, 1} {
		if got := NextDelay(n, func() float64 { return 0.99 }); got != 10*time.Second {
			t.Errorf("NextDelay(%d) = %v, want 10s", n, got)
		}
	}
}

func TestNextDelay(t *testing.T) {
	cases := []struct {
		name string
		n    int
		rnd  float64
		want time.Duration
	}{
		// slot = (2^3-1)/2 = 3.5; floor(0.5*3.5*10000)+1 = 17501ms
		{"mid window", 3, 0.5, 17501 * time.Millisecond},
		{"zero jitter clamps to floor", 5, 0, 10 * time.Second},
		{"small window clamps to floor", 2, 0.1, 10 * time.Second},
		{"large count clamps to cap", 30, 0.9, time.Hour},
		{"huge count does not overflow", 2000, 0.5, time.Hour},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := NextDelay(tc.n, func() float64 { return tc.rnd })
			if got != tc.want {
				t.Errorf("NextDelay(%d) = %v, want %v", tc.n, got, tc.want)
			}
		})
	}
}

func TestNextDelay_AlwaysInRange(t *testing.T) {
	rnds := []float64{0, 0.001, 0.25, 0.5, 0.75, 0.999999}
	for n := 2; n <= 40; n++ {
		for _, r := range rnds {
			got := NextDelay(n, func() float64 { return r })
			if got < 10*time.Second || got > time.Hour {
				t.Errorf("NextDelay(%d) with rnd %v = %v, want within [10s, 1h]", n, r, got)
			}
		}
	}
}
