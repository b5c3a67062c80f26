// Package circuit holds the core data model for Loop Logic Core: addressable
// devices, the signalling circuits they are wired onto, panels grouping those
// circuits, the per-circuit address pool, and the validation engine that
// grades proposed address assignments.
//
// # Key Types
//
//   - Device: one addressable device (position, address, lock state, draw)
//   - Circuit: a bounded address space owning its device collection
//   - Panel: a lazily-created named group of circuits
//   - AddressPool: address → occupant map enforcing uniqueness
//   - Result / Issue / Severity: graded validation findings
//
// # Invariants
//
//   - At most one device occupies a given address on a circuit at any time.
//   - An address is either free or occupied, never both; releasing a free
//     address is a no-op.
//   - Circuit utilization is derived from the live device collection on every
//     read; there is no cached value that can go stale.
//   - A device's assigned address is meaningful only relative to its owning
//     circuit, and moving a device physically never changes its address.
//
// # Validation
//
// CheckAssignment gates every address mutation: range, duplicate/lock,
// capacity-threshold, electrical-limit, and positional-hint rules, in that
// order. Only error-severity issues block; capacity findings (warning above
// the safe threshold, critical above 95%) are advisory. ValidateCircuit
// aggregates circuit-wide checks including a defensive multi-occupancy scan.
//
// The package is pure state and pure functions: no persistence, no logging,
// no concurrency. Orchestration lives in the assignment, balancing and
// commissioning packages.
package circuit
