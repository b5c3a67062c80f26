// Package balancing redistributes devices across signalling circuits to
// even out per-circuit load.
//
// System imbalance is measured as the standard deviation of device
// utilization across circuits. A balancing pass pulls devices off circuits
// above the target utilization and places them on circuits below half the
// target, preferring destinations with the most headroom. Every move runs
// through the assignment engine as a remove-then-assign pair, so the full
// validation path gates each relocation.
//
// Lock semantics carry over from assignment: locked devices are never
// moved, and manually-addressed devices are protected when RespectLocks is
// set. A pass reports success only when the imbalance strictly decreased;
// per-device move failures leave the device in place and never abort the
// pass.
package balancing
