package observability

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce sync.Once

	connectAttempts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "plcbridge",
			Subsystem: "session",
			Name:      "connect_attempts_total",
			Help:      "Client dial attempts by result.",
		},
		[]string{"result"},
	)
	reconnects = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "plcbridge",
			Subsystem: "session",
			Name:      "reconnects_total",
			Help:      "Automatic reconnect cycles by outcome.",
		},
		[]string{"outcome"},
	)
	frames = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "plcbridge",
			Subsystem: "session",
			Name:      "frames_total",
			Help:      "Fixed-size records moved on the wire.",
		},
		[]string{"role", "direction"},
	)
	frameBytes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "plcbridge",
			Subsystem: "session",
			Name:      "bytes_total",
			Help:      "Record bytes moved on the wire.",
		},
		[]string{"role", "direction"},
	)
	ioErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "plcbridge",
			Subsystem: "session",
			Name:      "io_errors_total",
			Help:      "Mid-session I/O failures by operation.",
		},
		[]string{"role", "op"},
	)
	exchangeDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "plcbridge",
			Subsystem: "session",
			Name:      "exchange_duration_seconds",
			Help:      "Send plus receive round trip duration.",
			Buckets:   []float64{.0005, .001, .0025, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"role"},
	)
	clientState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "plcbridge",
			Subsystem: "client",
			Name:      "state",
			Help:      "Client session state per remote address (0 disconnected, 1 connecting, 2 connected, 3 closed).",
		},
		[]string{"address"},
	)
	activeConns = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "plcbridge",
			Subsystem: "server",
			Name:      "active_connections",
			Help:      "Peers currently served.",
		},
	)
	handlerErrors = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "plcbridge",
			Subsystem: "server",
			Name:      "handler_errors_total",
			Help:      "Handler failures that dropped a peer.",
		},
	)
	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "plcbridge",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Admin HTTP requests.",
		},
		[]string{"method", "path", "status"},
	)
	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "plcbridge",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Admin HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)

func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			connectAttempts,
			reconnects,
			frames,
			frameBytes,
			ioErrors,
			exchangeDuration,
			clientState,
			activeConns,
			handlerErrors,
			httpRequests,
			httpDuration,
		)
	})
}

func RecordConnectAttempt(success bool) {
	RegisterMetrics()
	result := "failure"
	if success {
		result = "success"
	}
	connectAttempts.WithLabelValues(result).Inc()
}

// RecordReconnect counts one finished reconnect cycle; outcome is "success",
// "exhausted", or "aborted".
func RecordReconnect(outcome string) {
	RegisterMetrics()
	reconnects.WithLabelValues(outcome).Inc()
}

func RecordFrame(role, direction string, size int) {
	RegisterMetrics()
	frames.WithLabelValues(role, direction).Inc()
	frameBytes.WithLabelValues(role, direction).Add(float64(size))
}

func RecordIOError(role, op string) {
	RegisterMetrics()
	ioErrors.WithLabelValues(role, op).Inc()
}

func ObserveExchange(role string, d time.Duration) {
	RegisterMetrics()
	exchangeDuration.WithLabelValues(role).Observe(d.Seconds())
}

// SetClientState records the state of the client session dialing address.
func SetClientState(address string, state int) {
	RegisterMetrics()
	clientState.WithLabelValues(address).Set(float64(state))
}

func AddActiveConns(delta int) {
	RegisterMetrics()
	activeConns.Add(float64(delta))
}

func RecordHandlerError() {
	RegisterMetrics()
	handlerErrors.Inc()
}

func RecordHTTPRequest(method, path string, status int, duration time.Duration) {
	RegisterMetrics()
	statusLabel := strconv.Itoa(status)
	httpRequests.WithLabelValues(method, path, statusLabel).Inc()
	httpDuration.WithLabelValues(method, path, statusLabel).Observe(duration.Seconds())
}
