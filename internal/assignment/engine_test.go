package assignment

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/nerrad567/loop-logic-core/internal/circuit"
)

func newTestCircuit(limits circuit.Limits) *circuit.Circuit {
	return circuit.NewCircuit("P1-L1", limits)
}

func TestAssignDevice_AutoAddress(t *testing.T) {
	e := NewEngine(circuit.DefaultPolicy())
	c := newTestCircuit(circuit.Limits{MaxAddress: 10, MaxCurrent: 5})
	d := &circuit.Device{ID: "d1", CurrentDraw: 0.5}

	addr, err := e.AssignDevice(d, c, AssignOptions{AutoAssignAddress: true, ValidateElectrical: true})
	if err != nil {
		t.Fatalf("AssignDevice() error = %v", err)
	}
	if addr != 1 || d.Address != 1 {
		t.Errorf("address = %d (device %d), want 1", addr, d.Address)
	}
	if d.CircuitID != c.ID {
		t.Errorf("device circuit = %q, want %q", d.CircuitID, c.ID)
	}
	if c.Pool().IsAvailable(1) {
		t.Error("address 1 should be occupied")
	}
}

func TestAssignDevice_PreserveExisting(t *testing.T) {
	e := NewEngine(circuit.DefaultPolicy())
	c := newTestCircuit(circuit.Limits{MaxAddress: 10, MaxCurrent: 5})
	d := &circuit.Device{ID: "d1", Address: 7}

	addr, err := e.AssignDevice(d, c, AssignOptions{
		AutoAssignAddress:  true,
		PreserveExisting:   true,
		ValidateElectrical: true,
	})
	if err != nil {
		t.Fatalf("AssignDevice() error = %v", err)
	}
	if addr != 7 {
		t.Errorf("address = %d, want preserved 7", addr)
	}
}

func TestAssignDevice_ElectricalRefusal(t *testing.T) {
	e := NewEngine(circuit.DefaultPolicy())
	c := newTestCircuit(circuit.Limits{MaxAddress: 10, MaxCurrent: 3.0})
	for i := 0; i < 3; i++ {
		d := &circuit.Device{ID: fmt.Sprintf("d%d", i), CurrentDraw: 0.5}
		if _, err := e.AssignDevice(d, c, AssignOptions{AutoAssignAddress: true, ValidateElectrical: true}); err != nil {
			t.Fatalf("setup assign %d failed: %v", i, err)
		}
	}

	heavy := &circuit.Device{ID: "heavy", CurrentDraw: 2.0}
	_, err := e.AssignDevice(heavy, c, AssignOptions{AutoAssignAddress: true, ValidateElectrical: true})
	if !errors.Is(err, ErrValidationFailed) {
		t.Fatalf("error = %v, want ErrValidationFailed", err)
	}
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatal("error should be a *ValidationError")
	}
	if len(verr.Issues) == 0 || verr.Issues[0].Code != circuit.CodeElectrical {
		t.Errorf("issues = %+v, want electrical error", verr.Issues)
	}
	// Fail closed: the device is left unmodified.
	if heavy.Assigned() || heavy.CircuitID != "" {
		t.Errorf("refused device must stay unmodified, got addr=%d circuit=%q", heavy.Address, heavy.CircuitID)
	}

	// With electrical validation off, the same assignment goes through.
	if _, err := e.AssignDevice(heavy, c, AssignOptions{AutoAssignAddress: true}); err != nil {
		t.Errorf("AssignDevice without electrical check failed: %v", err)
	}
}

func TestAutoAssign_SequentialNoGaps(t *testing.T) {
	e := NewEngine(circuit.DefaultPolicy())
	c := newTestCircuit(circuit.Limits{MaxDevices: 10, MaxAddress: 10, MaxCurrent: 5})
	// Add in scrambled order; sequential strategy sorts by identity.
	for _, id := range []string{"dev-c", "dev-a", "dev-b"} {
		c.AddDevice(&circuit.Device{ID: id, CurrentDraw: 0.1})
	}

	result, err := e.AutoAssign(context.Background(), c, AutoAssignOptions{
		Strategy:           StrategySequential,
		ValidateElectrical: true,
	})
	if err != nil {
		t.Fatalf("AutoAssign() error = %v", err)
	}
	if result.Assigned != 3 || result.Skipped != 0 || result.Failed != 0 {
		t.Fatalf("counts = %d/%d/%d, want 3/0/0", result.Assigned, result.Skipped, result.Failed)
	}

	wantAddr := map[string]int{"dev-a": 1, "dev-b": 2, "dev-c": 3}
	for _, d := range c.Devices() {
		if d.Address != wantAddr[d.ID] {
			t.Errorf("device %s address = %d, want %d", d.ID, d.Address, wantAddr[d.ID])
		}
	}
}

func TestAutoAssign_StartAddress(t *testing.T) {
	e := NewEngine(circuit.DefaultPolicy())
	c := newTestCircuit(circuit.Limits{MaxAddress: 20, MaxCurrent: 5})
	c.AddDevice(&circuit.Device{ID: "d1"})
	c.AddDevice(&circuit.Device{ID: "d2"})

	result, err := e.AutoAssign(context.Background(), c, AutoAssignOptions{StartAddress: 10})
	if err != nil {
		t.Fatalf("AutoAssign() error = %v", err)
	}
	if result.Assigned != 2 {
		t.Fatalf("assigned = %d, want 2", result.Assigned)
	}
	if c.Device("d1").Address != 10 || c.Device("d2").Address != 11 {
		t.Errorf("addresses = %d, %d, want 10, 11",
			c.Device("d1").Address, c.Device("d2").Address)
	}
}

func TestAutoAssign_LockedNeverMutated(t *testing.T) {
	e := NewEngine(circuit.DefaultPolicy())
	c := newTestCircuit(circuit.Limits{MaxAddress: 10, MaxCurrent: 5})
	locked := &circuit.Device{ID: "d1", Lock: circuit.LockLocked, Address: 9}
	c.AddDevice(locked)
	c.Pool().Assign(9, locked)
	c.AddDevice(&circuit.Device{ID: "d2"})

	result, err := e.AutoAssign(context.Background(), c, AutoAssignOptions{OverwriteExisting: true})
	if err != nil {
		t.Fatalf("AutoAssign() error = %v", err)
	}
	if locked.Address != 9 {
		t.Errorf("locked device address = %d, want 9 untouched", locked.Address)
	}
	if result.Skipped != 1 || result.Assigned != 1 {
		t.Errorf("counts = %d assigned / %d skipped, want 1/1", result.Assigned, result.Skipped)
	}
}

func TestAutoAssign_SkipAndOverwrite(t *testing.T) {
	e := NewEngine(circuit.DefaultPolicy())
	c := newTestCircuit(circuit.Limits{MaxAddress: 10, MaxCurrent: 5})
	addressed := &circuit.Device{ID: "d1"}
	c.AddDevice(addressed)
	c.Pool().Assign(5, addressed)
	manual := &circuit.Device{ID: "d2", Lock: circuit.LockManual}
	c.AddDevice(manual)
	c.Pool().Assign(6, manual)

	// Without overwrite both keep their addresses.
	result, _ := e.AutoAssign(context.Background(), c, AutoAssignOptions{})
	if result.Skipped != 2 {
		t.Errorf("skipped = %d, want 2", result.Skipped)
	}

	// Overwrite re-addresses the plain device; RespectLocks protects manual.
	result, _ = e.AutoAssign(context.Background(), c, AutoAssignOptions{
		OverwriteExisting: true,
		RespectLocks:      true,
	})
	if result.Assigned != 1 || result.Skipped != 1 {
		t.Errorf("counts = %d/%d, want 1 assigned, 1 skipped", result.Assigned, result.Skipped)
	}
	if addressed.Address != 1 {
		t.Errorf("overwritten address = %d, want 1", addressed.Address)
	}
	if manual.Address != 6 {
		t.Errorf("manual device address = %d, want 6 untouched", manual.Address)
	}
}

func TestAutoAssign_ExhaustionRecordedPerDevice(t *testing.T) {
	e := NewEngine(circuit.DefaultPolicy())
	c := newTestCircuit(circuit.Limits{MaxAddress: 2, MaxCurrent: 5})
	for _, id := range []string{"d1", "d2", "d3"} {
		c.AddDevice(&circuit.Device{ID: id})
	}

	result, err := e.AutoAssign(context.Background(), c, AutoAssignOptions{})
	if err != nil {
		t.Fatalf("AutoAssign() error = %v; per-device failures must not abort", err)
	}
	if result.Assigned != 2 || result.Failed != 1 {
		t.Errorf("counts = %d assigned / %d failed, want 2/1", result.Assigned, result.Failed)
	}
	var failed *Outcome
	for i := range result.Outcomes {
		if result.Outcomes[i].Kind == OutcomeFailed {
			failed = &result.Outcomes[i]
		}
	}
	if failed == nil || failed.Reason == "" {
		t.Error("exhaustion must carry a per-device reason")
	}
}

func TestAutoAssign_Cancellation(t *testing.T) {
	e := NewEngine(circuit.DefaultPolicy())
	c := newTestCircuit(circuit.Limits{MaxAddress: 100, MaxCurrent: 50})
	for i := 0; i < 5; i++ {
		c.AddDevice(&circuit.Device{ID: fmt.Sprintf("d%d", i)})
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result, err := e.AutoAssign(ctx, c, AutoAssignOptions{})
	if err == nil {
		t.Fatal("AutoAssign should surface cancellation")
	}
	if !errors.Is(err, context.Canceled) {
		t.Errorf("error = %v, want context.Canceled", err)
	}
	if result.Assigned != 0 {
		t.Errorf("pre-cancelled context must assign nothing, got %d", result.Assigned)
	}
}

func TestRemove_Idempotent(t *testing.T) {
	e := NewEngine(circuit.DefaultPolicy())
	c := newTestCircuit(circuit.Limits{MaxAddress: 10, MaxCurrent: 5})
	d := &circuit.Device{ID: "d1", Lock: circuit.LockManual}
	if _, err := e.AssignDevice(d, c, AssignOptions{AutoAssignAddress: true}); err != nil {
		t.Fatalf("setup: %v", err)
	}
	addr := d.Address

	if !e.Remove(d, c) {
		t.Fatal("Remove should report true for an attached device")
	}
	if !c.Pool().IsAvailable(addr) {
		t.Error("removal must release the address")
	}
	if d.CircuitID != "" || d.Lock != circuit.LockUnlocked {
		t.Errorf("removal must clear circuit and lock, got circuit=%q lock=%s", d.CircuitID, d.Lock)
	}

	if e.Remove(d, c) {
		t.Error("second removal should be a no-op returning false")
	}
}

func TestAddressRange(t *testing.T) {
	e := NewEngine(circuit.DefaultPolicy())
	c := newTestCircuit(circuit.Limits{MaxAddress: 20, MaxCurrent: 5})
	for i, addr := range []int{3, 11, 7} {
		d := &circuit.Device{ID: fmt.Sprintf("d%d", i)}
		c.AddDevice(d)
		c.Pool().Assign(addr, d)
	}

	report := e.AddressRange(c)
	if report.Lowest != 3 || report.Highest != 11 {
		t.Errorf("range = %d..%d, want 3..11", report.Lowest, report.Highest)
	}
	if report.Used != 3 || report.Free != 17 {
		t.Errorf("used/free = %d/%d, want 3/17", report.Used, report.Free)
	}
}
