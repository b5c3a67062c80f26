// Package assignment orchestrates address allocation on signalling circuits.
//
// The Engine covers three operations:
//
//   - AssignDevice: single-device assignment with auto-address search,
//     electrical validation, and fail-closed semantics (no partial state on
//     a blocked assignment).
//   - AutoAssign: batch assignment of a circuit's devices, ordered by a
//     Strategy (sequential, by_floor, by_zone, by_device_type, optimized).
//     Per-device failures are recorded in the BatchResult without aborting
//     the rest of the batch, and the pass honours context cancellation
//     between devices.
//   - Remove: releases a device's address and detaches it, idempotently.
//
// Locked devices are never mutated by auto-assignment regardless of options;
// manually-addressed devices are skipped when RespectLocks is set.
//
// All mutations flow through circuit.AddressPool and are gated by
// circuit.CheckAssignment — the engine never writes address state directly.
package assignment
