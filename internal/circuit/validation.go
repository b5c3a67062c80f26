package circuit

import "fmt"

// Severity grades a validation issue.
type Severity string

// Severity constants, ordered from benign to severe.
const (
	SeverityValid    Severity = "valid"
	SeverityWarning  Severity = "warning"
	SeverityError    Severity = "error"
	SeverityCritical Severity = "critical"
)

// severityRank orders severities for worst-of comparisons.
// Critical outranks error for reporting purposes even though only
// error-severity issues block an assignment.
var severityRank = map[Severity]int{
	SeverityValid:    0,
	SeverityWarning:  1,
	SeverityError:    2,
	SeverityCritical: 3,
}

// Issue codes emitted by the validation engine.
const (
	CodeAddressRange   = "address_range"
	CodeDuplicate      = "duplicate_address"
	CodeLockedOccupant = "locked_occupant"
	CodeCapacity       = "capacity_threshold"
	CodeElectrical     = "electrical_limit"
	CodePositionHint   = "position_hint"
	CodeMultiOccupancy = "multi_occupancy"
)

// maxSuggestions is how many nearby free addresses a conflict offers.
const maxSuggestions = 5

// Issue is one graded finding from a validation check.
type Issue struct {
	Severity  Severity `json:"severity"`
	Code      string   `json:"code"`
	Message   string   `json:"message"`
	DeviceID  string   `json:"device_id,omitempty"`
	CircuitID string   `json:"circuit_id,omitempty"`

	// Alternatives suggests free addresses the caller could use instead.
	Alternatives []int `json:"alternatives,omitempty"`
}

// Result aggregates the issues found by a validation pass.
//
// Only error-severity issues block an assignment; warnings and critical
// capacity findings are advisory.
type Result struct {
	Issues []Issue `json:"issues,omitempty"`
}

// IsValid reports whether the result contains no blocking (error) issues.
func (r *Result) IsValid() bool {
	for _, is := range r.Issues {
		if is.Severity == SeverityError {
			return false
		}
	}
	return true
}

// Worst returns the most severe grade present, or SeverityValid.
func (r *Result) Worst() Severity {
	worst := SeverityValid
	for _, is := range r.Issues {
		if severityRank[is.Severity] > severityRank[worst] {
			worst = is.Severity
		}
	}
	return worst
}

// Errors returns only the blocking issues.
func (r *Result) Errors() []Issue {
	var out []Issue
	for _, is := range r.Issues {
		if is.Severity == SeverityError {
			out = append(out, is)
		}
	}
	return out
}

func (r *Result) add(is Issue) {
	r.Issues = append(r.Issues, is)
}

// Merge appends another result's issues.
func (r *Result) Merge(other Result) {
	r.Issues = append(r.Issues, other.Issues...)
}

// CheckAssignment validates a proposed address assignment of d on c.
//
// Rules run in order; the first hard failure short-circuits, while advisory
// findings accumulate:
//  1. range (error, no alternatives)
//  2. duplicate / locked occupant (error, up to 5 nearby free alternatives)
//  3. capacity threshold (>95% critical, >safe threshold warning; advisory)
//  4. electrical limit (over ceiling error, >90% of ceiling warning)
//  5. positional-optimization hint (advisory)
func CheckAssignment(d *Device, addr int, c *Circuit, policy CapacityPolicy) Result {
	policy = policy.WithDefaults()
	res := Result{}
	if d == nil || c == nil {
		res.add(Issue{
			Severity: SeverityError,
			Code:     CodeAddressRange,
			Message:  "device and circuit are required",
		})
		return res
	}

	// Rule 1: range.
	if addr < 1 || addr > c.Limits.MaxAddress {
		res.add(Issue{
			Severity:  SeverityError,
			Code:      CodeAddressRange,
			Message:   fmt.Sprintf("address %d outside valid range 1..%d", addr, c.Limits.MaxAddress),
			DeviceID:  d.ID,
			CircuitID: c.ID,
		})
		return res
	}

	// Rule 2: duplicate / locked occupant.
	if occ := c.pool.Occupant(addr); occ != nil && occ.ID != d.ID {
		is := Issue{
			Severity:     SeverityError,
			Code:         CodeDuplicate,
			Message:      fmt.Sprintf("address %d already occupied by device %s", addr, occ.ID),
			DeviceID:     d.ID,
			CircuitID:    c.ID,
			Alternatives: c.pool.NearbyAvailable(addr, maxSuggestions),
		}
		if occ.Lock == LockLocked {
			// A locked device can never be silently displaced, regardless of
			// the requester's own lock state.
			is.Code = CodeLockedOccupant
			is.Message = fmt.Sprintf("address %d held by locked device %s", addr, occ.ID)
		}
		res.add(is)
		return res
	}

	// Rule 3: capacity threshold, including the candidate.
	count := c.DeviceCount()
	if c.Device(d.ID) == nil {
		count++
	}
	util := float64(count) / float64(c.Limits.MaxDevices)
	switch {
	case util > CriticalThreshold:
		res.add(Issue{
			Severity:  SeverityCritical,
			Code:      CodeCapacity,
			Message:   fmt.Sprintf("circuit %s at %.0f%% of device capacity", c.ID, util*100),
			DeviceID:  d.ID,
			CircuitID: c.ID,
		})
	case util > policy.SafeThreshold:
		res.add(Issue{
			Severity:  SeverityWarning,
			Code:      CodeCapacity,
			Message:   fmt.Sprintf("circuit %s above safe capacity threshold (%.0f%%)", c.ID, util*100),
			DeviceID:  d.ID,
			CircuitID: c.ID,
		})
	}

	// Rule 4: electrical limit, including the candidate's draw.
	total := c.TotalCurrent()
	if c.Device(d.ID) == nil {
		total += d.CurrentDraw
	}
	switch {
	case total > c.Limits.MaxCurrent:
		res.add(Issue{
			Severity:  SeverityError,
			Code:      CodeElectrical,
			Message:   fmt.Sprintf("circuit %s current %.2f exceeds limit %.2f", c.ID, total, c.Limits.MaxCurrent),
			DeviceID:  d.ID,
			CircuitID: c.ID,
		})
	case total > ElectricalWarnFraction*c.Limits.MaxCurrent:
		res.add(Issue{
			Severity:  SeverityWarning,
			Code:      CodeElectrical,
			Message:   fmt.Sprintf("circuit %s current %.2f above %.0f%% of limit", c.ID, total, ElectricalWarnFraction*100),
			DeviceID:  d.ID,
			CircuitID: c.ID,
		})
	}

	// Rule 5: positional-optimization hint. Advisory only.
	if natural := naturalAddress(d, c, policy); natural != 0 && natural != addr && c.pool.IsAvailable(natural) {
		res.add(Issue{
			Severity:     SeverityWarning,
			Code:         CodePositionHint,
			Message:      fmt.Sprintf("installation order suggests address %d for device %s", natural, d.ID),
			DeviceID:     d.ID,
			CircuitID:    c.ID,
			Alternatives: []int{natural},
		})
	}

	return res
}

// naturalAddress derives the address the device's installation order would
// suggest, or 0 when position does not map into the circuit's range.
func naturalAddress(d *Device, c *Circuit, policy CapacityPolicy) int {
	if d.Position <= 0 {
		return 0
	}
	natural := policy.StartAddress + d.Position - 1
	if natural < 1 || natural > c.Limits.MaxAddress {
		return 0
	}
	return natural
}

// ValidateCircuit checks an entire circuit: per-device address ranges, a
// defensive multi-occupancy scan, total current against the hard ceiling,
// and overall utilization against the capacity thresholds.
func ValidateCircuit(c *Circuit, policy CapacityPolicy) Result {
	policy = policy.WithDefaults()
	res := Result{}
	if c == nil {
		return res
	}

	// Per-device range checks.
	byAddress := make(map[int][]*Device)
	for _, d := range c.devices {
		if !d.Assigned() {
			continue
		}
		if d.Address < 1 || d.Address > c.Limits.MaxAddress {
			res.add(Issue{
				Severity:  SeverityError,
				Code:      CodeAddressRange,
				Message:   fmt.Sprintf("device %s holds out-of-range address %d", d.ID, d.Address),
				DeviceID:  d.ID,
				CircuitID: c.ID,
			})
			continue
		}
		byAddress[d.Address] = append(byAddress[d.Address], d)
	}

	// Multi-occupancy should be structurally impossible given the pool
	// invariants, but is checked defensively from the device collection.
	for addr, devs := range byAddress {
		if len(devs) > 1 {
			res.add(Issue{
				Severity:  SeverityError,
				Code:      CodeMultiOccupancy,
				Message:   fmt.Sprintf("address %d occupied by %d devices", addr, len(devs)),
				CircuitID: c.ID,
			})
		}
	}

	// Electrical ceiling.
	total := c.TotalCurrent()
	switch {
	case total > c.Limits.MaxCurrent:
		res.add(Issue{
			Severity:  SeverityError,
			Code:      CodeElectrical,
			Message:   fmt.Sprintf("circuit %s current %.2f exceeds limit %.2f", c.ID, total, c.Limits.MaxCurrent),
			CircuitID: c.ID,
		})
	case total > ElectricalWarnFraction*c.Limits.MaxCurrent:
		res.add(Issue{
			Severity:  SeverityWarning,
			Code:      CodeElectrical,
			Message:   fmt.Sprintf("circuit %s current %.2f above %.0f%% of limit", c.ID, total, ElectricalWarnFraction*100),
			CircuitID: c.ID,
		})
	}

	// Capacity thresholds.
	util := c.DeviceUtilization()
	switch {
	case util > CriticalThreshold:
		res.add(Issue{
			Severity:  SeverityCritical,
			Code:      CodeCapacity,
			Message:   fmt.Sprintf("circuit %s at %.0f%% of device capacity", c.ID, util*100),
			CircuitID: c.ID,
		})
	case util > policy.SafeThreshold:
		res.add(Issue{
			Severity:  SeverityWarning,
			Code:      CodeCapacity,
			Message:   fmt.Sprintf("circuit %s above safe capacity threshold (%.0f%%)", c.ID, util*100),
			CircuitID: c.ID,
		})
	}

	return res
}
