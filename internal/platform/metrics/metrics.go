package metrics

import (
	"sync"
	"sync/atomic"
	"time"
)

type Collector struct {
	totalRequests   uint64
	errorRequests   uint64
	rateLimited     uint64
	totalDurationMs uint64

	reviews      uint64
	scoreRuns    uint64
	scoresFailed uint64

	mu          sync.Mutex
	transitions map[string]uint64
}

func New() *Collector {
	return &Collector{transitions: map[string]uint64{}}
}

func (c *Collector) Record(status int, duration time.Duration) {
	atomic.AddUint64(&c.totalRequests, 1)
	if status >= 500 {
		atomic.AddUint64(&c.errorRequests, 1)
	}
	if status == 429 {
		atomic.AddUint64(&c.rateLimited, 1)
	}
	atomic.AddUint64(&c.totalDurationMs, uint64(duration.Milliseconds()))
}

// Transition counts a task status change by target status.
func (c *Collector) Transition(to string) {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.transitions[to]++
	c.mu.Unlock()
}

func (c *Collector) Review() {
	if c == nil {
		return
	}
	atomic.AddUint64(&c.reviews, 1)
}

// ScoreRun counts one recalculation run and the employees that failed in it.
func (c *Collector) ScoreRun(failed int) {
	if c == nil {
		return
	}
	atomic.AddUint64(&c.scoreRuns, 1)
	atomic.AddUint64(&c.scoresFailed, uint64(max(failed, 0)))
}

func (c *Collector) Snapshot() map[string]any {
	total := atomic.LoadUint64(&c.totalRequests)
	errs := atomic.LoadUint64(&c.errorRequests)
	limited := atomic.LoadUint64(&c.rateLimited)
	totalMs := atomic.LoadUint64(&c.totalDurationMs)
	avg := float64(0)
	if total > 0 {
		avg = float64(totalMs) / float64(total)
	}

	c.mu.Lock()
	transitions := make(map[string]uint64, len(c.transitions))
	for status, n := range c.transitions {
		transitions[status] = n
	}
	c.mu.Unlock()

	return map[string]any{
		"requestsTotal":      total,
		"errorsTotal":        errs,
		"rateLimitedTotal":   limited,
		"avgDurationMs":      avg,
		"totalDurationMs":    totalMs,
		"taskTransitions":    transitions,
		"reviewsTotal":       atomic.LoadUint64(&c.reviews),
		"scoreRunsTotal":     atomic.LoadUint64(&c.scoreRuns),
		"scoreFailuresTotal": atomic.LoadUint64(&c.scoresFailed),
	}
}
