package commissioning

import (
	"github.com/nerrad567/loop-logic-core/internal/assignment"
	"github.com/nerrad567/loop-logic-core/internal/balancing"
	"github.com/nerrad567/loop-logic-core/internal/circuit"
)

// DeviceSnapshot is the host-supplied record for one addressable device.
// The engine does not care how the list was produced; it only consumes
// identity, location, electrical draw, feature flags, and any pre-existing
// circuit/address assignment.
type DeviceSnapshot struct {
	ID          string              `json:"id"`
	Type        string              `json:"type"`
	Level       string              `json:"level,omitempty"`
	Room        string              `json:"room,omitempty"`
	X           float64             `json:"x,omitempty"`
	Y           float64             `json:"y,omitempty"`
	Position    int                 `json:"position,omitempty"`
	CurrentDraw float64             `json:"current_draw"`
	UnitLoads   int                 `json:"unit_loads,omitempty"`
	Flags       circuit.DeviceFlags `json:"flags,omitempty"`

	// CircuitID names the circuit the device belongs to; its panel is the
	// prefix before the first "-".
	CircuitID string `json:"circuit_id"`

	// Address is an optional pre-existing assignment, 0 when absent.
	Address int `json:"address,omitempty"`

	// Lock is the lock-state name; empty means unlocked.
	Lock string `json:"lock,omitempty"`
}

// Options configures a Service. Zero fields fall back to the documented
// capacity defaults.
type Options struct {
	Limits circuit.Limits
	Policy circuit.CapacityPolicy

	// DefaultStrategy orders devices when a request does not specify one.
	DefaultStrategy assignment.Strategy

	// RespectLocks protects manually-addressed devices during batch passes.
	RespectLocks bool

	// ValidateElectrical runs the electrical-limit check on assignments.
	ValidateElectrical bool

	// TargetUtilization is the balancing target; zero derives it from the
	// policy spare fraction.
	TargetUtilization float64

	// PreserveGroups keeps co-located devices together during balancing.
	PreserveGroups bool
}

// InitResult summarises panel initialization from a device list.
type InitResult struct {
	Panels   int                  `json:"panels"`
	Circuits int                  `json:"circuits"`
	Devices  int                  `json:"devices"`
	Failed   int                  `json:"failed"`
	Outcomes []assignment.Outcome `json:"outcomes,omitempty"`
}

// ImportResult summarises a snapshot import. Failures carry one entry per
// unresolvable record; they are reported, never silently dropped.
type ImportResult struct {
	Imported int      `json:"imported"`
	Failed   int      `json:"failed"`
	Failures []string `json:"failures,omitempty"`
}

// CircuitLoad is the live utilization of one circuit, recomputed from the
// current device collection on every call.
type CircuitLoad struct {
	PanelID            string  `json:"panel_id"`
	CircuitID          string  `json:"circuit_id"`
	DeviceCount        int     `json:"device_count"`
	MaxDevices         int     `json:"max_devices"`
	DeviceUtilization  float64 `json:"device_utilization"`
	CurrentUtilization float64 `json:"current_utilization"`
	TotalCurrent       float64 `json:"total_current"`
}

// PanelValidation is the validation result for one panel, per circuit.
type PanelValidation struct {
	PanelID  string                    `json:"panel_id"`
	IsValid  bool                      `json:"is_valid"`
	Circuits map[string]circuit.Result `json:"circuits"`
}

// Statistics aggregates the commissioning state. A systemic failure during
// computation is reported in Error rather than crashing the host.
type Statistics struct {
	Panels     int `json:"panels"`
	Circuits   int `json:"circuits"`
	Devices    int `json:"devices"`
	Assigned   int `json:"assigned"`
	Unassigned int `json:"unassigned"`

	TotalCurrent float64        `json:"total_current"`
	ByType       map[string]int `json:"by_type"`
	ByLock       map[string]int `json:"by_lock"`

	MeanDeviceUtilization float64 `json:"mean_device_utilization"`
	Imbalance             float64 `json:"imbalance"`

	Error string `json:"error,omitempty"`
}

// BalanceResult re-exports the balancing result for callers of the facade.
type BalanceResult = balancing.Result
