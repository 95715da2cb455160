package ingest

import (
	"sync"

	"github.com/obsidianstack/insightchannel/server/internal/config"
)

// faultScript hands out scripted failure statuses in order until exhausted.
type faultScript struct {
	mu    sync.Mutex
	steps []config.FaultStep
}

func newFaultScript(steps []config.FaultStep) *faultScript {
	return &faultScript{steps: append([]config.FaultStep(nil), steps...)}
}

// next returns the status for the next batch, or 0 once the script is done.
func (f *faultScript) next() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	for len(f.steps) > 0 {
		s := &f.steps[0]
		if s.Count > 0 {
			s.Count--
			return s.Status
		}
		f.steps = f.steps[1:]
	}
	return 0
}
