package circuit

import "iter"

// AddressPool tracks address occupancy for one circuit.
//
// Invariants:
//   - at most one device occupies a given address at any time
//   - an address is either free or occupied, never both
//   - releasing an unoccupied address is a no-op, not an error
//
// The pool is not safe for concurrent use; the engine assumes single-writer
// orchestration by its host.
type AddressPool struct {
	maxAddress int
	occupied   map[int]*Device
}

// NewAddressPool creates a pool covering addresses 1..maxAddress.
func NewAddressPool(maxAddress int) *AddressPool {
	if maxAddress <= 0 {
		maxAddress = DefaultMaxAddress
	}
	return &AddressPool{
		maxAddress: maxAddress,
		occupied:   make(map[int]*Device),
	}
}

// MaxAddress returns the highest valid address.
func (p *AddressPool) MaxAddress() int {
	return p.maxAddress
}

// InRange reports whether addr lies within 1..maxAddress.
func (p *AddressPool) InRange(addr int) bool {
	return addr >= 1 && addr <= p.maxAddress
}

// IsAvailable reports whether addr is in range and unoccupied.
func (p *AddressPool) IsAvailable(addr int) bool {
	if !p.InRange(addr) {
		return false
	}
	_, taken := p.occupied[addr]
	return !taken
}

// Occupant returns the device holding addr, or nil.
func (p *AddressPool) Occupant(addr int) *Device {
	return p.occupied[addr]
}

// OccupiedCount returns the number of occupied addresses.
func (p *AddressPool) OccupiedCount() int {
	return len(p.occupied)
}

// Assign records d as the occupant of addr with move semantics: on success
// the device's prior slot (if any) is released and its Address updated.
//
// It fails, mutating nothing, when addr is out of range or occupied by a
// different device. A locked occupant is never displaced.
func (p *AddressPool) Assign(addr int, d *Device) bool {
	if d == nil || !p.InRange(addr) {
		return false
	}
	if occ, taken := p.occupied[addr]; taken {
		if occ.ID != d.ID {
			return false
		}
		// Re-assigning a device to its own address is a no-op success.
		d.Address = addr
		return true
	}

	if prior := d.Address; prior != 0 && prior != addr {
		if occ, taken := p.occupied[prior]; taken && occ.ID == d.ID {
			delete(p.occupied, prior)
		}
	}
	p.occupied[addr] = d
	d.Address = addr
	return true
}

// Release frees addr. Idempotent: releasing a free address is a no-op.
// The occupant's Address field is cleared when it still points at addr.
func (p *AddressPool) Release(addr int) {
	occ, taken := p.occupied[addr]
	if !taken {
		return
	}
	delete(p.occupied, addr)
	if occ.Address == addr {
		occ.Address = 0
	}
}

// NextFree returns the first free address at or above from, or false when
// the pool is exhausted.
func (p *AddressPool) NextFree(from int) (int, bool) {
	if from < 1 {
		from = 1
	}
	for addr := from; addr <= p.maxAddress; addr++ {
		if _, taken := p.occupied[addr]; !taken {
			return addr, true
		}
	}
	return 0, false
}

// NearbyAvailable returns up to count free addresses searched outward from
// addr, closest first, with ties broken toward the higher address. Used to
// suggest alternatives after a conflict.
func (p *AddressPool) NearbyAvailable(addr, count int) []int {
	if count <= 0 {
		return nil
	}
	var out []int
	for dist := 1; dist <= p.maxAddress && len(out) < count; dist++ {
		if up := addr + dist; p.IsAvailable(up) {
			out = append(out, up)
		}
		if len(out) >= count {
			break
		}
		if down := addr - dist; p.IsAvailable(down) {
			out = append(out, down)
		}
	}
	return out
}

// AllFree yields the free addresses from 1 to maxAddress in ascending order.
// The sequence is recomputed on every range, not cached: occupancy can change
// between calls.
func (p *AddressPool) AllFree(maxAddress int) iter.Seq[int] {
	if maxAddress <= 0 || maxAddress > p.maxAddress {
		maxAddress = p.maxAddress
	}
	return func(yield func(int) bool) {
		for addr := 1; addr <= maxAddress; addr++ {
			if _, taken := p.occupied[addr]; taken {
				continue
			}
			if !yield(addr) {
				return
			}
		}
	}
}
