package assignment

import (
	"sort"

	"github.com/nerrad567/loop-logic-core/internal/circuit"
)

// OrderDevices returns the devices sorted according to the strategy.
// The input slice is not modified. Ordering is total: every strategy falls
// back to device identity so allocation stays deterministic.
func OrderDevices(devices []*circuit.Device, strategy Strategy) []*circuit.Device {
	out := make([]*circuit.Device, len(devices))
	copy(out, devices)

	less := lessFunc(strategy)
	sort.SliceStable(out, func(i, j int) bool {
		return less(out[i], out[j])
	})
	return out
}

func lessFunc(strategy Strategy) func(a, b *circuit.Device) bool {
	switch strategy {
	case StrategyByFloor:
		return func(a, b *circuit.Device) bool {
			if a.Level != b.Level {
				return a.Level < b.Level
			}
			return a.ID < b.ID
		}
	case StrategyByZone:
		return func(a, b *circuit.Device) bool {
			if a.Room != b.Room {
				return a.Room < b.Room
			}
			return a.ID < b.ID
		}
	case StrategyByDeviceType:
		return func(a, b *circuit.Device) bool {
			if a.Type != b.Type {
				return a.Type < b.Type
			}
			return a.ID < b.ID
		}
	case StrategyOptimized:
		// Level, then coordinates, then draw: a cheap proxy for physical
		// wiring adjacency so consecutive addresses land near each other.
		return func(a, b *circuit.Device) bool {
			if a.Level != b.Level {
				return a.Level < b.Level
			}
			if a.X != b.X {
				return a.X < b.X
			}
			if a.Y != b.Y {
				return a.Y < b.Y
			}
			if a.CurrentDraw != b.CurrentDraw {
				return a.CurrentDraw < b.CurrentDraw
			}
			return a.ID < b.ID
		}
	default: // StrategySequential
		return func(a, b *circuit.Device) bool {
			return a.ID < b.ID
		}
	}
}
