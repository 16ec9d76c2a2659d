package monitor

import (
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// ConnectionStats is a snapshot of a ConnectionMonitor.
type ConnectionStats struct {
	Total               int           `json:"total"`
	Successful          int           `json:"successful"`
	Failed              int           `json:"failed"`
	SuccessRate         float64       `json:"success_rate"`
	ConsecutiveFailures int           `json:"consecutive_failures"`
	LastError           string        `json:"last_error,omitempty"`
	Uptime              time.Duration `json:"uptime"`
}

// ConnectionMonitor counts operation outcomes and warns once consecutive
// failures reach the alert threshold.
type ConnectionMonitor struct {
	opts      options
	threshold int

	mu          sync.Mutex
	total       int
	successful  int
	failed      int
	consecutive int
	lastErr     string
	start       time.Time
}

func NewConnectionMonitor(threshold int, opts ...Option) *ConnectionMonitor {
	if threshold <= 0 {
		threshold = 5
	}
	o := newOptions(opts)
	return &ConnectionMonitor{opts: o, threshold: threshold, start: o.now()}
}

func (m *ConnectionMonitor) RecordSuccess() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.total++
	m.successful++
	m.consecutive = 0
}

// RecordFailure counts a failure and reports whether the alert threshold is
// reached.
func (m *ConnectionMonitor) RecordFailure(err error) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.total++
	m.failed++
	m.consecutive++
	if err != nil {
		m.lastErr = err.Error()
	}
	if m.consecutive < m.threshold {
		return false
	}
	log.Warn().
		Int("consecutive_failures", m.consecutive).
		Int("threshold", m.threshold).
		Str("last_error", m.lastErr).
		Msg("monitor.ConnectionMonitor failure threshold reached")
	return true
}

func (m *ConnectionMonitor) Stats() ConnectionStats {
	m.mu.Lock()
	defer m.mu.Unlock()
	var rate float64
	if m.total > 0 {
		rate = float64(m.successful) / float64(m.total) * 100
	}
	return ConnectionStats{
		Total:               m.total,
		Successful:          m.successful,
		Failed:              m.failed,
		SuccessRate:         rate,
		ConsecutiveFailures: m.consecutive,
		LastError:           m.lastErr,
		Uptime:              m.opts.now().Sub(m.start),
	}
}

func (m *ConnectionMonitor) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.total = 0
	m.successful = 0
	m.failed = 0
	m.consecutive = 0
	m.lastErr = ""
	m.start = m.opts.now()
}
