package circuit

import "errors"

// Domain errors for the circuit package.
//
// These errors can be checked using errors.Is() for error handling:
//
//	if errors.Is(err, circuit.ErrDeviceNotFound) {
//	    // handle not found case
//	}
var (
	// ErrDeviceNotFound is returned when a device id does not exist.
	ErrDeviceNotFound = errors.New("circuit: device not found")

	// ErrCircuitNotFound is returned when a circuit id does not exist.
	ErrCircuitNotFound = errors.New("circuit: not found")

	// ErrPanelNotFound is returned when a panel id does not exist.
	ErrPanelNotFound = errors.New("circuit: panel not found")

	// ErrInvalidDevice is returned when a device record fails validation.
	ErrInvalidDevice = errors.New("circuit: invalid device")

	// ErrInvalidLockState is returned when a lock state value is not recognised.
	ErrInvalidLockState = errors.New("circuit: invalid lock state")

	// ErrAddressOutOfRange is returned when an address lies outside 1..max.
	ErrAddressOutOfRange = errors.New("circuit: address out of range")

	// ErrAddressOccupied is returned when an address is held by another device.
	ErrAddressOccupied = errors.New("circuit: address occupied")
)

// ParseLockState converts an external lock state string to a LockState.
// An empty string maps to LockUnlocked.
func ParseLockState(s string) (LockState, error) {
	switch LockState(s) {
	case LockUnlocked, LockLocked, LockManual:
		return LockState(s), nil
	}
	if s == "" {
		return LockUnlocked, nil
	}
	return "", ErrInvalidLockState
}
