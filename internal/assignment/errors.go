package assignment

import (
	"errors"
	"fmt"
	"strings"

	"github.com/nerrad567/loop-logic-core/internal/circuit"
)

// Domain errors for the assignment package.
var (
	// ErrNoFreeAddress is returned when a circuit's address space is exhausted.
	ErrNoFreeAddress = errors.New("assignment: no free address")

	// ErrDeviceLocked is returned when an operation would mutate a locked device.
	ErrDeviceLocked = errors.New("assignment: device locked")

	// ErrInvalidStrategy is returned when a strategy value is not recognised.
	ErrInvalidStrategy = errors.New("assignment: invalid strategy")

	// ErrValidationFailed is returned when the validation engine blocks an
	// assignment. Check for *ValidationError to access the issues.
	ErrValidationFailed = errors.New("assignment: validation failed")
)

// ValidationError carries the blocking validation findings for one device.
// It wraps ErrValidationFailed so callers can use errors.Is.
type ValidationError struct {
	DeviceID  string
	CircuitID string
	Address   int
	Issues    []circuit.Issue
}

func (e *ValidationError) Error() string {
	msgs := make([]string, 0, len(e.Issues))
	for _, is := range e.Issues {
		msgs = append(msgs, is.Message)
	}
	return fmt.Sprintf("assignment: validation failed for device %s at address %d: %s",
		e.DeviceID, e.Address, strings.Join(msgs, "; "))
}

func (e *ValidationError) Unwrap() error {
	return ErrValidationFailed
}

// ParseStrategy converts an external strategy string to a Strategy.
// An empty string maps to StrategySequential.
func ParseStrategy(s string) (Strategy, error) {
	if s == "" {
		return StrategySequential, nil
	}
	for _, st := range AllStrategies() {
		if Strategy(s) == st {
			return st, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidStrategy, s)
}
