package monitor

import (
	"time"

	"github.com/rs/zerolog/log"
)

// FrequencyMonitor counts loop iterations and reports the average rate once per
// interval.
type FrequencyMonitor struct {
	opts     options
	interval time.Duration
	last     time.Time
	count    int
}

func NewFrequencyMonitor(interval time.Duration, opts ...Option) *FrequencyMonitor {
	if interval <= 0 {
		interval = time.Second
	}
	o := newOptions(opts)
	return &FrequencyMonitor{opts: o, interval: interval, last: o.now()}
}

// Tick records one iteration. It returns the rate in Hz and true when the
// interval has elapsed, then starts a new interval.
func (m *FrequencyMonitor) Tick() (float64, bool) {
	m.count++
	now := m.opts.now()
	elapsed := now.Sub(m.last)
	if elapsed < m.interval {
		return 0, false
	}
	hz := float64(m.count) / elapsed.Seconds()
	m.count = 0
	m.last = now
	return hz, true
}

// LogIfReady ticks and logs the rate when an interval completes.
func (m *FrequencyMonitor) LogIfReady(msg string) {
	if hz, ok := m.Tick(); ok {
		log.Info().Float64("hz", hz).Msg(msg)
	}
}

// MovingAverageFrequency reports the rate over the last window iterations.
type MovingAverageFrequency struct {
	opts   options
	last   time.Time
	deltas []time.Duration
	next   int
	sum    time.Duration
}

func NewMovingAverageFrequency(window int, opts ...Option) *MovingAverageFrequency {
	if window <= 0 {
		window = 100
	}
	o := newOptions(opts)
	return &MovingAverageFrequency{opts: o, last: o.now(), deltas: make([]time.Duration, 0, window)}
}

// Tick records one iteration and returns the windowed rate once the window is
// full.
func (m *MovingAverageFrequency) Tick() (float64, bool) {
	now := m.opts.now()
	delta := now.Sub(m.last)
	m.last = now
	if len(m.deltas) < cap(m.deltas) {
		m.deltas = append(m.deltas, delta)
	} else {
		m.sum -= m.deltas[m.next]
		m.deltas[m.next] = delta
		m.next = (m.next + 1) % len(m.deltas)
	}
	m.sum += delta
	if len(m.deltas) < cap(m.deltas) {
		return 0, false
	}
	return m.Frequency(), true
}

// Frequency returns the rate over the samples seen so far, or 0 without any.
func (m *MovingAverageFrequency) Frequency() float64 {
	if len(m.deltas) == 0 || m.sum <= 0 {
		return 0
	}
	avg := m.sum.Seconds() / float64(len(m.deltas))
	return 1 / avg
}

// InstantFrequency reports the rate implied by the last iteration alone.
type InstantFrequency struct {
	opts options
	last time.Time
}

func NewInstantFrequency(opts ...Option) *InstantFrequency {
	o := newOptions(opts)
	return &InstantFrequency{opts: o, last: o.now()}
}

func (m *InstantFrequency) Tick() float64 {
	now := m.opts.now()
	delta := now.Sub(m.last)
	m.last = now
	if delta <= 0 {
		return 0
	}
	return 1 / delta.Seconds()
}
