package monitor

import (
	"encoding/json"
	"fmt"
	"maps"
	"os"
	"sync"
	"time"

	"github.com/eapache/queue"
	"github.com/rs/zerolog/log"
)

// Entry is one timestamped snapshot of field values.
type Entry struct {
	Timestamp time.Time      `json:"timestamp"`
	Data      map[string]any `json:"data"`
}

// DataLogger keeps the most recent entries up to a fixed capacity, dropping the
// oldest first.
type DataLogger struct {
	opts options
	max  int

	mu sync.Mutex
	q  *queue.Queue
}

func NewDataLogger(maxEntries int, opts ...Option) *DataLogger {
	if maxEntries <= 0 {
		maxEntries = 1000
	}
	return &DataLogger{opts: newOptions(opts), max: maxEntries, q: queue.New()}
}

// Log appends a copy of data.
func (l *DataLogger) Log(data map[string]any) {
	entry := Entry{Timestamp: l.opts.now(), Data: maps.Clone(data)}
	l.mu.Lock()
	defer l.mu.Unlock()
	for l.q.Length() >= l.max {
		l.q.Remove()
	}
	l.q.Add(entry)
}

func (l *DataLogger) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.q.Length()
}

// Last returns up to n of the newest entries, oldest first.
func (l *DataLogger) Last(n int) []Entry {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.lastLocked(n)
}

func (l *DataLogger) lastLocked(n int) []Entry {
	size := l.q.Length()
	if n > size {
		n = size
	}
	if n <= 0 {
		return nil
	}
	out := make([]Entry, 0, n)
	for i := size - n; i < size; i++ {
		out = append(out, l.q.Get(i).(Entry))
	}
	return out
}

// SaveFile writes every entry to path as indented JSON.
func (l *DataLogger) SaveFile(path string) error {
	l.mu.Lock()
	entries := l.lastLocked(l.q.Length())
	l.mu.Unlock()
	if entries == nil {
		entries = []Entry{}
	}
	payload, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return fmt.Errorf("monitor: encode data log: %w", err)
	}
	if err := os.WriteFile(path, payload, 0o644); err != nil {
		return fmt.Errorf("monitor: write data log: %w", err)
	}
	log.Info().Int("entries", len(entries)).Str("path", path).Msg("monitor.DataLogger saved")
	return nil
}

func (l *DataLogger) Clear() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.q = queue.New()
}
