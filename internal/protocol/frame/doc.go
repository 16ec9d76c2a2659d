// Package frame owns the fixed-size binary record exchanged on the wire.
//
// A record is the schema's fields packed back to back with no header, tag, or
// checksum; its width is the only framing. Records are written and read whole.
package frame
