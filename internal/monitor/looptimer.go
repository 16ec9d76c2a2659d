package monitor

import (
	"fmt"
	"time"
)

// LoopStats summarizes the iterations measured by a LoopTimer.
type LoopStats struct {
	Min   time.Duration `json:"min"`
	Max   time.Duration `json:"max"`
	Avg   time.Duration `json:"avg"`
	Count int           `json:"count"`
}

func (s LoopStats) String() string {
	return fmt.Sprintf("min=%s max=%s avg=%s count=%d", s.Min, s.Max, s.Avg, s.Count)
}

// LoopTimer measures Start/Stop spans and keeps running aggregates.
type LoopTimer struct {
	opts    options
	started time.Time
	running bool
	count   int
	total   time.Duration
	min     time.Duration
	max     time.Duration
}

func NewLoopTimer(opts ...Option) *LoopTimer {
	return &LoopTimer{opts: newOptions(opts)}
}

func (t *LoopTimer) Start() {
	t.started = t.opts.now()
	t.running = true
}

// Stop records the span since Start. A Stop without a matching Start is ignored.
func (t *LoopTimer) Stop() time.Duration {
	if !t.running {
		return 0
	}
	elapsed := t.opts.now().Sub(t.started)
	t.running = false
	if t.count == 0 || elapsed < t.min {
		t.min = elapsed
	}
	if elapsed > t.max {
		t.max = elapsed
	}
	t.count++
	t.total += elapsed
	return elapsed
}

// Stats reports the aggregates; ok is false before the first recorded span.
func (t *LoopTimer) Stats() (LoopStats, bool) {
	if t.count == 0 {
		return LoopStats{}, false
	}
	return LoopStats{
		Min:   t.min,
		Max:   t.max,
		Avg:   t.total / time.Duration(t.count),
		Count: t.count,
	}, true
}

func (t *LoopTimer) Reset() {
	t.count = 0
	t.total = 0
	t.min = 0
	t.max = 0
	t.running = false
}
