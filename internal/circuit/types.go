package circuit

import "strings"

// LockState describes whether a device's address may be changed automatically.
type LockState string

// LockState constants.
const (
	// LockUnlocked devices may be re-addressed freely.
	LockUnlocked LockState = "unlocked"

	// LockLocked devices are never re-addressed or displaced, by any operation.
	LockLocked LockState = "locked"

	// LockManual devices were addressed by hand; auto-assignment skips them
	// unless lock handling is explicitly relaxed.
	LockManual LockState = "manual"
)

// AllLockStates returns all valid lock state values.
func AllLockStates() []LockState {
	return []LockState{LockUnlocked, LockLocked, LockManual}
}

// DeviceFlags carries the feature flags of an addressable device.
type DeviceFlags struct {
	Strobe   bool `json:"strobe,omitempty"`
	Speaker  bool `json:"speaker,omitempty"`
	Isolator bool `json:"isolator,omitempty"`
	Repeater bool `json:"repeater,omitempty"`
}

// Device is a single addressable device on a signalling circuit.
//
// Address is meaningful only relative to the owning circuit; 0 means
// unassigned. Position is the physical installation/wiring order and is
// immutable once the device is installed — changing it never alters the
// assigned address.
type Device struct {
	// Identity
	ID   string `json:"id"`
	Type string `json:"type"`

	// Physical placement
	Position int     `json:"position"`
	Level    string  `json:"level"`
	Room     string  `json:"room"`
	X        float64 `json:"x"`
	Y        float64 `json:"y"`

	// Allocation state
	Address   int       `json:"address"`
	Lock      LockState `json:"lock"`
	CircuitID string    `json:"circuit_id,omitempty"` // back-reference, not ownership

	// Electrical
	CurrentDraw float64 `json:"current_draw"`
	UnitLoads   int     `json:"unit_loads"`

	Flags DeviceFlags `json:"flags"`
}

// Assigned reports whether the device currently holds an address.
func (d *Device) Assigned() bool {
	return d.Address > 0
}

// GroupKey returns the level+room location group the device belongs to.
// Balancing uses it to keep co-located devices together.
func (d *Device) GroupKey() string {
	return d.Level + "/" + d.Room
}

// Limits are the hard capacity ceilings of a single circuit.
type Limits struct {
	MaxDevices int     `json:"max_devices"`
	MaxAddress int     `json:"max_address"`
	MaxCurrent float64 `json:"max_current"`
}

// Default circuit limits, applied when the host supplies none.
const (
	DefaultMaxDevices = 25
	DefaultMaxAddress = 250
	DefaultMaxCurrent = 7.0
)

// DefaultLimits returns the documented fallback circuit limits.
func DefaultLimits() Limits {
	return Limits{
		MaxDevices: DefaultMaxDevices,
		MaxAddress: DefaultMaxAddress,
		MaxCurrent: DefaultMaxCurrent,
	}
}

// withDefaults fills zero fields with the documented fallbacks so the engine
// behaves identically whether values are explicit or defaulted.
func (l Limits) withDefaults() Limits {
	if l.MaxDevices <= 0 {
		l.MaxDevices = DefaultMaxDevices
	}
	if l.MaxAddress <= 0 {
		l.MaxAddress = DefaultMaxAddress
	}
	if l.MaxCurrent <= 0 {
		l.MaxCurrent = DefaultMaxCurrent
	}
	return l
}

// CapacityPolicy carries the system-wide allocation thresholds supplied by
// the host. Zero values fall back to the documented defaults.
type CapacityPolicy struct {
	// SafeThreshold is the device-count utilization fraction above which
	// assignments draw a warning (advisory, never blocking).
	SafeThreshold float64 `json:"safe_threshold"`

	// SpareFraction is the target spare capacity kept free on each circuit.
	SpareFraction float64 `json:"spare_fraction"`

	// StartAddress is the first address auto-assignment considers.
	StartAddress int `json:"start_address"`
}

// Default policy thresholds.
const (
	DefaultSafeThreshold = 0.80
	DefaultSpareFraction = 0.20
	DefaultStartAddress  = 1

	// CriticalThreshold is the fixed utilization fraction above which a
	// capacity warning escalates to critical.
	CriticalThreshold = 0.95

	// ElectricalWarnFraction of the current ceiling draws a warning.
	ElectricalWarnFraction = 0.90
)

// DefaultPolicy returns the documented fallback capacity policy.
func DefaultPolicy() CapacityPolicy {
	return CapacityPolicy{
		SafeThreshold: DefaultSafeThreshold,
		SpareFraction: DefaultSpareFraction,
		StartAddress:  DefaultStartAddress,
	}
}

// WithDefaults fills zero fields with the documented fallbacks.
func (p CapacityPolicy) WithDefaults() CapacityPolicy {
	if p.SafeThreshold <= 0 {
		p.SafeThreshold = DefaultSafeThreshold
	}
	if p.SpareFraction <= 0 {
		p.SpareFraction = DefaultSpareFraction
	}
	if p.StartAddress <= 0 {
		p.StartAddress = DefaultStartAddress
	}
	return p
}

// Circuit is one signalling circuit: a bounded address space with the devices
// wired onto it. The circuit owns its device collection; a device does not
// outlive circuit removal without explicit reassignment.
//
// Utilization is always derived from the live collection — there is no cached
// field that can go stale.
type Circuit struct {
	ID     string `json:"id"`
	Limits Limits `json:"limits"`

	devices []*Device
	pool    *AddressPool
}

// NewCircuit creates a circuit with the given identity and limits.
// Zero limit fields fall back to the documented defaults.
func NewCircuit(id string, limits Limits) *Circuit {
	limits = limits.withDefaults()
	return &Circuit{
		ID:     id,
		Limits: limits,
		pool:   NewAddressPool(limits.MaxAddress),
	}
}

// Pool returns the circuit's address pool.
func (c *Circuit) Pool() *AddressPool {
	return c.pool
}

// Devices returns the device collection. The slice is a copy; the devices
// themselves are shared.
func (c *Circuit) Devices() []*Device {
	out := make([]*Device, len(c.devices))
	copy(out, c.devices)
	return out
}

// DeviceCount returns the number of devices on the circuit.
func (c *Circuit) DeviceCount() int {
	return len(c.devices)
}

// Device returns the device with the given id, or nil.
func (c *Circuit) Device(id string) *Device {
	for _, d := range c.devices {
		if d.ID == id {
			return d
		}
	}
	return nil
}

// AddDevice attaches a device to the circuit and sets its back-reference.
// Adding an already-attached device is a no-op.
func (c *Circuit) AddDevice(d *Device) {
	if d == nil {
		return
	}
	for _, existing := range c.devices {
		if existing.ID == d.ID {
			return
		}
	}
	d.CircuitID = c.ID
	c.devices = append(c.devices, d)
}

// RemoveDevice detaches the device with the given id from the circuit,
// releasing its address and clearing its back-reference.
// Returns false if the device is not on the circuit.
func (c *Circuit) RemoveDevice(id string) bool {
	for i, d := range c.devices {
		if d.ID != id {
			continue
		}
		if d.Assigned() {
			c.pool.Release(d.Address)
		}
		d.CircuitID = ""
		c.devices = append(c.devices[:i], c.devices[i+1:]...)
		return true
	}
	return false
}

// TotalCurrent returns the summed electrical draw of all devices on the
// circuit, recomputed from the live collection.
func (c *Circuit) TotalCurrent() float64 {
	var total float64
	for _, d := range c.devices {
		total += d.CurrentDraw
	}
	return total
}

// DeviceUtilization returns the device-count fraction of the circuit,
// recomputed from the live collection.
func (c *Circuit) DeviceUtilization() float64 {
	if c.Limits.MaxDevices <= 0 {
		return 0
	}
	return float64(len(c.devices)) / float64(c.Limits.MaxDevices)
}

// CurrentUtilization returns the electrical-load fraction of the circuit,
// recomputed from the live collection.
func (c *Circuit) CurrentUtilization() float64 {
	if c.Limits.MaxCurrent <= 0 {
		return 0
	}
	return c.TotalCurrent() / c.Limits.MaxCurrent
}

// PanelSeparator splits a circuit identity into panel and circuit parts.
// Example: "P1-L2" belongs to panel "P1".
const PanelSeparator = "-"

// PanelKey derives the owning panel identity from a circuit identity.
// A circuit id without a separator is its own panel.
func PanelKey(circuitID string) string {
	if idx := strings.Index(circuitID, PanelSeparator); idx > 0 {
		return circuitID[:idx]
	}
	return circuitID
}

// Panel is a lazily-created named group of circuits. It holds no invariants
// beyond containing unique circuit identities.
type Panel struct {
	ID string `json:"id"`

	circuits map[string]*Circuit
	order    []string
}

// NewPanel creates an empty panel.
func NewPanel(id string) *Panel {
	return &Panel{
		ID:       id,
		circuits: make(map[string]*Circuit),
	}
}

// AddCircuit attaches a circuit to the panel. Duplicate ids are ignored.
func (p *Panel) AddCircuit(c *Circuit) {
	if c == nil {
		return
	}
	if _, exists := p.circuits[c.ID]; exists {
		return
	}
	p.circuits[c.ID] = c
	p.order = append(p.order, c.ID)
}

// Circuit returns the circuit with the given id, or nil.
func (p *Panel) Circuit(id string) *Circuit {
	return p.circuits[id]
}

// Circuits returns the panel's circuits in insertion order.
func (p *Panel) Circuits() []*Circuit {
	out := make([]*Circuit, 0, len(p.order))
	for _, id := range p.order {
		out = append(out, p.circuits[id])
	}
	return out
}

// CircuitCount returns the number of circuits on the panel.
func (p *Panel) CircuitCount() int {
	return len(p.circuits)
}
