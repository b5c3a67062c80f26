package balancing

import (
	"context"
	"fmt"
	"math"
	"sort"

	"github.com/nerrad567/loop-logic-core/internal/assignment"
	"github.com/nerrad567/loop-logic-core/internal/circuit"
)

// Logger defines the logging interface used by the Balancer.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Balancer redistributes devices from overloaded circuits to underloaded
// ones to reduce the spread of per-circuit utilization. Every move runs
// through the assignment engine, inheriting its validation.
//
// Like the assignment engine, the Balancer expects single-writer
// orchestration: no concurrent mutation of the circuits it is working on.
type Balancer struct {
	engine *assignment.Engine
	logger Logger
}

// NewBalancer creates a balancer that moves devices through the given
// assignment engine.
func NewBalancer(engine *assignment.Engine) *Balancer {
	return &Balancer{
		engine: engine,
		logger: noopLogger{},
	}
}

// SetLogger sets the logger for the balancer.
func (b *Balancer) SetLogger(logger Logger) {
	b.logger = logger
}

// Imbalance returns the population standard deviation of device utilization
// across the circuits. Fewer than two circuits yields 0.
func Imbalance(circuits []*circuit.Circuit) float64 {
	if len(circuits) < 2 {
		return 0
	}
	var sum float64
	for _, c := range circuits {
		sum += c.DeviceUtilization()
	}
	mean := sum / float64(len(circuits))

	var variance float64
	for _, c := range circuits {
		d := c.DeviceUtilization() - mean
		variance += d * d
	}
	return math.Sqrt(variance / float64(len(circuits)))
}

// Balance runs one balancing pass over the circuits.
//
// Devices are pulled from circuits above the target utilization and placed
// on circuits below half the target, choosing the destination with the most
// headroom. A device with no qualifying destination stays in place. The
// pass reports success only when the imbalance strictly decreased; any
// internal panic is converted into a failed result rather than crashing
// the host.
func (b *Balancer) Balance(ctx context.Context, circuits []*circuit.Circuit, opts Options) (result *Result) {
	result = &Result{}
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("balancing pass panicked", "panic", r)
			result.Success = false
			result.Error = fmt.Sprintf("balancing aborted: %v", r)
		}
	}()

	target := opts.TargetUtilization
	if target <= 0 {
		target = 1 - b.engine.Policy().SpareFraction
	}

	result.ImbalanceBefore = Imbalance(circuits)
	result.ImbalanceAfter = result.ImbalanceBefore
	if len(circuits) < 2 {
		return result
	}

	var overloaded []*circuit.Circuit
	for _, c := range circuits {
		if c.DeviceUtilization() > target {
			overloaded = append(overloaded, c)
		}
	}

	for _, src := range overloaded {
		for _, d := range b.selectCandidates(src, target, opts) {
			if err := ctx.Err(); err != nil {
				result.Error = fmt.Sprintf("balancing cancelled: %v", err)
				result.ImbalanceAfter = Imbalance(circuits)
				result.Success = result.ImbalanceAfter < result.ImbalanceBefore
				return result
			}
			if src.DeviceUtilization() <= target {
				break
			}
			b.moveDevice(d, src, circuits, target, opts, result)
		}
	}

	result.ImbalanceAfter = Imbalance(circuits)
	result.Success = result.ImbalanceAfter < result.ImbalanceBefore

	b.logger.Info("balancing pass complete",
		"before", result.ImbalanceBefore,
		"after", result.ImbalanceAfter,
		"moves", result.MovesCompleted,
		"success", result.Success,
	)
	return result
}

// selectCandidates picks the devices to pull off an overloaded circuit, in
// move order. Locked devices are never candidates; manual devices are
// excluded when RespectLocks is set. Selection stops once the projected
// utilization after the hypothetical removals reaches the target.
func (b *Balancer) selectCandidates(src *circuit.Circuit, target float64, opts Options) []*circuit.Device {
	var movable []*circuit.Device
	for _, d := range src.Devices() {
		if d.Lock == circuit.LockLocked {
			continue
		}
		if opts.RespectLocks && d.Lock == circuit.LockManual {
			continue
		}
		movable = append(movable, d)
	}

	if opts.PreserveGroups {
		sizes := make(map[string]int)
		for _, d := range src.Devices() {
			sizes[d.GroupKey()]++
		}
		sort.SliceStable(movable, func(i, j int) bool {
			si, sj := sizes[movable[i].GroupKey()], sizes[movable[j].GroupKey()]
			if si != sj {
				return si < sj
			}
			return movable[i].ID < movable[j].ID
		})
	}

	max := src.Limits.MaxDevices
	count := src.DeviceCount()
	var selected []*circuit.Device
	for _, d := range movable {
		if max > 0 && float64(count)/float64(max) <= target {
			break
		}
		selected = append(selected, d)
		count--
	}
	return selected
}

// moveDevice relocates one device to the best qualifying destination,
// recording the attempt either way.
func (b *Balancer) moveDevice(d *circuit.Device, src *circuit.Circuit, circuits []*circuit.Circuit, target float64, opts Options, result *Result) {
	dst := b.bestTarget(d, src, circuits, target)
	if dst == nil {
		result.record(Move{
			DeviceID:    d.ID,
			FromCircuit: src.ID,
			Reason:      "no qualifying target circuit",
		})
		return
	}

	priorAddr := d.Address
	priorLock := d.Lock
	b.engine.Remove(d, src)

	addr, err := b.engine.AssignDevice(d, dst, assignment.AssignOptions{
		AutoAssignAddress:  true,
		ValidateElectrical: opts.ValidateElectrical,
	})
	if err != nil {
		// Put the device back where it was. The slot is still free: nothing
		// else mutates the pool during the pass.
		src.AddDevice(d)
		if priorAddr != 0 {
			src.Pool().Assign(priorAddr, d)
		}
		d.Lock = priorLock
		result.record(Move{
			DeviceID:    d.ID,
			FromCircuit: src.ID,
			ToCircuit:   dst.ID,
			Reason:      err.Error(),
		})
		return
	}

	d.Lock = priorLock
	result.record(Move{
		DeviceID:    d.ID,
		FromCircuit: src.ID,
		ToCircuit:   dst.ID,
		Address:     addr,
		Reason:      "rebalanced from overloaded circuit",
		Moved:       true,
	})
	b.logger.Debug("device rebalanced",
		"device", d.ID, "from", src.ID, "to", dst.ID, "address", addr)
}

// bestTarget returns the underloaded circuit with the most headroom that can
// take the device, or nil when none qualifies. A destination must stay under
// the target after the move, must not breach its electrical ceiling, and
// must have a free address.
func (b *Balancer) bestTarget(d *circuit.Device, src *circuit.Circuit, circuits []*circuit.Circuit, target float64) *circuit.Circuit {
	var best *circuit.Circuit
	for _, c := range circuits {
		if c == src || c.DeviceUtilization() >= target/2 {
			continue
		}
		max := c.Limits.MaxDevices
		if max > 0 && float64(c.DeviceCount()+1)/float64(max) >= target {
			continue
		}
		if c.Limits.MaxCurrent > 0 && c.TotalCurrent()+d.CurrentDraw > c.Limits.MaxCurrent {
			continue
		}
		if _, ok := c.Pool().NextFree(b.engine.Policy().StartAddress); !ok {
			continue
		}
		if best == nil || c.DeviceUtilization() < best.DeviceUtilization() {
			best = c
		}
	}
	return best
}
