// Package monitor owns the loop bookkeeping an application wraps around a
// session: rate measurement, pacing, timing stats, connection health, a bounded
// value log, and a stall watchdog. Nothing here touches the wire.
package monitor
