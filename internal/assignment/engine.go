package assignment

import (
	"context"
	"fmt"

	"github.com/nerrad567/loop-logic-core/internal/circuit"
)

// Logger defines the logging interface used by the Engine.
// This allows different logging implementations to be used.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Engine orchestrates address assignment: single-device assignment, batch
// auto-assignment with ordering strategies, removal, and range reporting.
//
// Every mutation goes through the circuit's AddressPool and is gated by the
// validation engine; the Engine never writes address fields directly.
//
// The Engine is not safe for concurrent use; the host orchestrates
// single-writer access per the engine's scheduling model.
type Engine struct {
	policy circuit.CapacityPolicy
	logger Logger
}

// NewEngine creates an assignment engine with the given capacity policy.
// Zero policy fields fall back to the documented defaults.
func NewEngine(policy circuit.CapacityPolicy) *Engine {
	return &Engine{
		policy: policy.WithDefaults(),
		logger: noopLogger{},
	}
}

// SetLogger sets the logger for the engine.
func (e *Engine) SetLogger(logger Logger) {
	e.logger = logger
}

// Policy returns the engine's capacity policy.
func (e *Engine) Policy() circuit.CapacityPolicy {
	return e.policy
}

// AssignDevice assigns d to circuit c and returns the committed address.
//
// The candidate address is the device's existing one when PreserveExisting is
// set and valid, otherwise the first free address at or above the policy
// start address (when AutoAssignAddress is set). The assignment fails closed:
// on any blocking validation issue the device is left unmodified and a
// *ValidationError is returned.
func (e *Engine) AssignDevice(d *circuit.Device, c *circuit.Circuit, opts AssignOptions) (int, error) {
	if d == nil {
		return 0, circuit.ErrDeviceNotFound
	}
	if c == nil {
		return 0, circuit.ErrCircuitNotFound
	}

	addr := 0
	if opts.PreserveExisting && d.Assigned() && c.Pool().InRange(d.Address) {
		addr = d.Address
	}
	if addr == 0 {
		if !opts.AutoAssignAddress {
			return 0, fmt.Errorf("%w: device %s has no address and auto-assignment is off",
				ErrValidationFailed, d.ID)
		}
		free, ok := c.Pool().NextFree(e.policy.StartAddress)
		if !ok {
			return 0, fmt.Errorf("%w: circuit %s", ErrNoFreeAddress, c.ID)
		}
		addr = free
	}

	res := circuit.CheckAssignment(d, addr, c, e.policy)
	if blocked := e.blockingIssues(res, opts.ValidateElectrical); len(blocked) > 0 {
		return 0, &ValidationError{
			DeviceID:  d.ID,
			CircuitID: c.ID,
			Address:   addr,
			Issues:    blocked,
		}
	}

	c.AddDevice(d)
	if !c.Pool().Assign(addr, d) {
		// Validation passed but the slot was taken: structurally impossible
		// under single-writer orchestration, reported rather than panicking.
		return 0, fmt.Errorf("%w: address %d on circuit %s", circuit.ErrAddressOccupied, addr, c.ID)
	}

	e.logger.Debug("device assigned", "device", d.ID, "circuit", c.ID, "address", addr)
	return addr, nil
}

// blockingIssues filters a validation result down to the issues that block
// this assignment. Electrical errors are ignored when the caller disabled
// electrical validation.
func (e *Engine) blockingIssues(res circuit.Result, validateElectrical bool) []circuit.Issue {
	var out []circuit.Issue
	for _, is := range res.Errors() {
		if is.Code == circuit.CodeElectrical && !validateElectrical {
			continue
		}
		out = append(out, is)
	}
	return out
}

// AutoAssign addresses the circuit's devices in strategy order.
//
// Locked devices are always skipped. Already-addressed devices are skipped
// unless OverwriteExisting is set; manually-addressed devices are also
// skipped when RespectLocks is set. Per-device failures (address exhaustion,
// electrical breach) are recorded without aborting the batch.
//
// The pass is cancellable at device granularity: ctx is checked before each
// device, never mid-assignment.
func (e *Engine) AutoAssign(ctx context.Context, c *circuit.Circuit, opts AutoAssignOptions) (*BatchResult, error) {
	if c == nil {
		return nil, circuit.ErrCircuitNotFound
	}
	strategy := opts.Strategy
	if strategy == "" {
		strategy = StrategySequential
	}
	start := opts.StartAddress
	if start <= 0 {
		start = e.policy.StartAddress
	}

	result := &BatchResult{}
	ordered := OrderDevices(c.Devices(), strategy)

	next := start
	for _, d := range ordered {
		if err := ctx.Err(); err != nil {
			return result, fmt.Errorf("auto-assignment cancelled: %w", err)
		}

		if skip, reason := e.skipReason(d, opts); skip {
			result.record(Outcome{
				DeviceID: d.ID, CircuitID: c.ID,
				Kind: OutcomeSkipped, Reason: reason,
			})
			continue
		}

		addr, ok := c.Pool().NextFree(next)
		if !ok {
			result.record(Outcome{
				DeviceID: d.ID, CircuitID: c.ID,
				Kind: OutcomeFailed, Reason: "address space exhausted",
			})
			continue
		}

		res := circuit.CheckAssignment(d, addr, c, e.policy)
		if blocked := e.blockingIssues(res, opts.ValidateElectrical); len(blocked) > 0 {
			result.record(Outcome{
				DeviceID: d.ID, CircuitID: c.ID,
				Kind: OutcomeFailed, Reason: blocked[0].Message, Issues: blocked,
			})
			continue
		}

		if prior := d.Address; prior != 0 {
			c.Pool().Release(prior)
		}
		if !c.Pool().Assign(addr, d) {
			result.record(Outcome{
				DeviceID: d.ID, CircuitID: c.ID,
				Kind: OutcomeFailed, Reason: fmt.Sprintf("address %d unexpectedly occupied", addr),
			})
			continue
		}

		result.record(Outcome{
			DeviceID: d.ID, CircuitID: c.ID,
			Kind: OutcomeAssigned, Address: addr,
		})
		next = addr + 1
	}

	e.logger.Info("auto-assignment complete",
		"circuit", c.ID,
		"strategy", string(strategy),
		"assigned", result.Assigned,
		"skipped", result.Skipped,
		"failed", result.Failed,
	)
	return result, nil
}

// skipReason decides whether auto-assignment passes over the device.
func (e *Engine) skipReason(d *circuit.Device, opts AutoAssignOptions) (bool, string) {
	if d.Lock == circuit.LockLocked {
		return true, "device locked"
	}
	if opts.RespectLocks && d.Lock == circuit.LockManual {
		return true, "device manually addressed"
	}
	if d.Assigned() && !opts.OverwriteExisting {
		return true, fmt.Sprintf("already addressed at %d", d.Address)
	}
	return false, ""
}

// Remove releases the device's address back to the pool, clears its circuit
// reference and lock state, and detaches it from the circuit.
// Returns false for a device that is not attached (idempotent no-op).
func (e *Engine) Remove(d *circuit.Device, c *circuit.Circuit) bool {
	if d == nil || c == nil {
		return false
	}
	if c.Device(d.ID) == nil {
		return false
	}
	c.RemoveDevice(d.ID)
	d.Lock = circuit.LockUnlocked

	e.logger.Debug("device removed", "device", d.ID, "circuit", c.ID)
	return true
}

// AddressRange reports the address usage of the circuit.
func (e *Engine) AddressRange(c *circuit.Circuit) RangeReport {
	if c == nil {
		return RangeReport{}
	}
	report := RangeReport{
		CircuitID:  c.ID,
		MaxAddress: c.Limits.MaxAddress,
		Used:       c.Pool().OccupiedCount(),
	}
	report.Free = report.MaxAddress - report.Used
	for _, d := range c.Devices() {
		if !d.Assigned() {
			continue
		}
		if report.Lowest == 0 || d.Address < report.Lowest {
			report.Lowest = d.Address
		}
		if d.Address > report.Highest {
			report.Highest = d.Address
		}
	}
	return report
}
