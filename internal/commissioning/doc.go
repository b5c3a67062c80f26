// Package commissioning is the top-level facade over the allocation engine.
//
// A Service owns the in-memory model of panels, circuits, and devices and
// exposes the operations a commissioning workflow needs: initializing
// panels from a flat device list, batch auto-assignment, per-panel
// validation, live utilization reporting, stddev-based balancing, tabular
// snapshot export/import, aggregate statistics, and batch transaction
// control over a durable assignment store.
//
// Every mutation is queued against a session batch; nothing touches the
// store until Commit. A failed commit rolls the pending batch back
// automatically, so durable state is never half-written. In-memory state
// is not rewound by rollback; Reload rebuilds it from the store.
package commissioning
