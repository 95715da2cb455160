package sender

import (
	"math"

	"github.com/obsidianstack/insightchannel/agent/internal/envelope"
)

// sampledIn decides whether it is kept at pct percent. Metrics are always
// kept. Items sharing an operation id are kept or dropped together.
func sampledIn(pct float64, it envelope.Item, rnd func() float64) bool {
	if pct >= 100 || it.Kind == envelope.KindMetric {
		return true
	}
	var score float64
	if id := it.OperationID(); id != "" {
		score = samplingScore(id)
	} else {
		score = rnd() * 100
	}
	return score < pct
}

// samplingScore maps key onto [0, 100] with a djb2 hash folded to int32.
func samplingScore(key string) float64 {
	for len(key) < 8 {
		key += key
	}
	var hash int32 = 5381
	for i := 0; i < len(key); i++ {
		hash = (hash << 5) + hash + int32(key[i])
	}
	h := math.Abs(float64(hash))
	return h / math.MaxInt32 * 100
}
