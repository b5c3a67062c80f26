package assignment

import "github.com/nerrad567/loop-logic-core/internal/circuit"

// Strategy selects the ordering devices are addressed in during batch
// auto-assignment. Ordering is deterministic for a fixed input set.
type Strategy string

// Strategy constants.
const (
	// StrategySequential orders by device identity.
	StrategySequential Strategy = "sequential"

	// StrategyByFloor orders by level, then identity.
	StrategyByFloor Strategy = "by_floor"

	// StrategyByZone orders by room/zone, then identity.
	StrategyByZone Strategy = "by_zone"

	// StrategyByDeviceType orders by type, then identity.
	StrategyByDeviceType Strategy = "by_device_type"

	// StrategyOptimized orders by level, X, Y, then electrical draw,
	// approximating physical wiring adjacency.
	StrategyOptimized Strategy = "optimized"
)

// AllStrategies returns all valid strategy values.
func AllStrategies() []Strategy {
	return []Strategy{
		StrategySequential, StrategyByFloor, StrategyByZone,
		StrategyByDeviceType, StrategyOptimized,
	}
}

// AssignOptions controls a single-device assignment.
type AssignOptions struct {
	// AutoAssignAddress searches for the first free address at or above the
	// configured start address when the device holds none (or when
	// PreserveExisting is off).
	AutoAssignAddress bool `json:"auto_assign_address"`

	// ValidateElectrical runs the electrical-limit check before committing.
	ValidateElectrical bool `json:"validate_electrical"`

	// PreserveExisting keeps the device's current address when it already
	// holds a valid one.
	PreserveExisting bool `json:"preserve_existing"`
}

// AutoAssignOptions controls a batch auto-assignment pass.
type AutoAssignOptions struct {
	// RespectLocks additionally skips manually-addressed devices.
	// Locked devices are always skipped regardless of this flag.
	RespectLocks bool `json:"respect_locks"`

	// OverwriteExisting re-addresses devices that already hold an address.
	OverwriteExisting bool `json:"overwrite_existing"`

	// Strategy selects the device ordering. Empty means sequential.
	Strategy Strategy `json:"strategy"`

	// StartAddress is the lowest address to allocate from. Zero falls back
	// to the policy start address.
	StartAddress int `json:"start_address"`

	// ValidateElectrical runs the electrical-limit check per device.
	ValidateElectrical bool `json:"validate_electrical"`
}

// OutcomeKind tags the result of one device within a batch.
type OutcomeKind string

// OutcomeKind constants.
const (
	OutcomeAssigned OutcomeKind = "assigned"
	OutcomeSkipped  OutcomeKind = "skipped"
	OutcomeFailed   OutcomeKind = "failed"
)

// Outcome is the per-device result of a batch operation.
type Outcome struct {
	DeviceID  string      `json:"device_id"`
	CircuitID string      `json:"circuit_id"`
	Kind      OutcomeKind `json:"kind"`

	// Address is the allocated address when Kind is OutcomeAssigned.
	Address int `json:"address,omitempty"`

	// Reason explains a skip or failure.
	Reason string `json:"reason,omitempty"`

	// Issues carries the validation findings behind a failure.
	Issues []circuit.Issue `json:"issues,omitempty"`
}

// BatchResult summarises a batch auto-assignment.
type BatchResult struct {
	Assigned int       `json:"assigned"`
	Skipped  int       `json:"skipped"`
	Failed   int       `json:"failed"`
	Outcomes []Outcome `json:"outcomes,omitempty"`
}

// record appends an outcome and bumps the matching counter.
func (r *BatchResult) record(o Outcome) {
	switch o.Kind {
	case OutcomeAssigned:
		r.Assigned++
	case OutcomeSkipped:
		r.Skipped++
	case OutcomeFailed:
		r.Failed++
	}
	r.Outcomes = append(r.Outcomes, o)
}

// Merge folds another batch result into this one.
func (r *BatchResult) Merge(other *BatchResult) {
	if other == nil {
		return
	}
	r.Assigned += other.Assigned
	r.Skipped += other.Skipped
	r.Failed += other.Failed
	r.Outcomes = append(r.Outcomes, other.Outcomes...)
}

// RangeReport describes the address usage of one circuit.
type RangeReport struct {
	CircuitID  string `json:"circuit_id"`
	MaxAddress int    `json:"max_address"`
	Lowest     int    `json:"lowest,omitempty"`
	Highest    int    `json:"highest,omitempty"`
	Used       int    `json:"used"`
	Free       int    `json:"free"`
}
