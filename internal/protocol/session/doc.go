// Package session owns the TCP transport for fixed-size records.
//
// Ownership boundary:
// - client session state machine with bounded reconnect
// - server acceptor and per-connection exchange loop
// - retry/backoff and timeout configuration
//
// Every message on the wire is exactly one record of the session schema; the
// record width is the only frame boundary.
package session
