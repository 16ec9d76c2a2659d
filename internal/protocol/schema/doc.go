// Package schema owns the field layout of the exchanged data block.
//
// Ownership boundary:
// - IEC 61131-3 scalar type codes and their fixed widths
// - tagged field values and per-type range checks
// - two-phase builder producing an immutable, packed layout
package schema
