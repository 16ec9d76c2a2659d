package monitor

import (
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// Watchdog detects a loop that stopped kicking it. Check fires once per stall.
type Watchdog struct {
	opts    options
	timeout time.Duration

	mu        sync.Mutex
	lastKick  time.Time
	triggered bool
}

func NewWatchdog(timeout time.Duration, opts ...Option) *Watchdog {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	o := newOptions(opts)
	return &Watchdog{opts: o, timeout: timeout, lastKick: o.now()}
}

func (w *Watchdog) Timeout() time.Duration { return w.timeout }

func (w *Watchdog) Kick() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.lastKick = w.opts.now()
	w.triggered = false
}

// Check reports true the first time the timeout is exceeded since the last
// Kick.
func (w *Watchdog) Check() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	elapsed := w.opts.now().Sub(w.lastKick)
	if elapsed <= w.timeout || w.triggered {
		return false
	}
	w.triggered = true
	log.Warn().Dur("idle", elapsed).Dur("timeout", w.timeout).Msg("monitor.Watchdog stalled")
	return true
}

func (w *Watchdog) Healthy() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.opts.now().Sub(w.lastKick) < w.timeout
}
