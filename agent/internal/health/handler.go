package health

import (
	"encoding/json"
	"net/http"

	"github.com/obsidianstack/insightchannel/agent/internal/sender"
)

// Handler serves the current channel score as JSON. A critical channel
// answers 503 so orchestrator probes can act on it.
func Handler(stats func() sender.Stats) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		out := Compute(FromStats(stats()))
		code := http.StatusOK
		if out.State == StateCritical {
			code = http.StatusServiceUnavailable
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		json.NewEncoder(w).Encode(out) //nolint:errcheck
	})
}
