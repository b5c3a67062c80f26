// Package snapshot serialises device assignments to and from the tabular
// exchange schema.
//
// The schema is a flat table with one row per device: panel, circuit,
// device_id, address, type, level, room, current_draw. Two physical forms
// are supported, CSV and XLSX, carrying identical columns so a snapshot
// round-trips through either.
//
// Reads are forgiving at row granularity: a malformed row becomes a
// RowFailure in the ReadResult rather than aborting the whole import. Only
// structural problems (missing or mismatched header) fail the read.
package snapshot
