package compute

import (
	"sync"
	"time"

	"github.com/LeanderLXZ/catboost/pkg/log"
)

// Profiler records named span timings and accumulates totals per label.
type Profiler struct {
	mu     sync.Mutex
	totals map[string]time.Duration
	counts map[string]int
	logger *log.Logger
}

func newProfiler() *Profiler {
	return &Profiler{
		totals: make(map[string]time.Duration),
		counts: make(map[string]int),
		logger: log.GetLoggerWithName("compute.profiler"),
	}
}

// Profile starts a span. The returned stop function records its duration.
//
//	defer ctx.Profiler().Profile("compute best splits")()
func (p *Profiler) Profile(label string) func() {
	start := time.Now()
	return func() {
		elapsed := time.Since(start)
		p.mu.Lock()
		p.totals[label] += elapsed
		p.counts[label]++
		p.mu.Unlock()
		p.logger.Debug("span", "label", label, "elapsed", elapsed.String())
	}
}

// Total returns the accumulated time spent in label.
func (p *Profiler) Total(label string) time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.totals[label]
}

// Count returns how many spans completed under label.
func (p *Profiler) Count(label string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.counts[label]
}
