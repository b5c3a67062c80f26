package snapshot

import (
	"errors"
	"fmt"

	"github.com/nerrad567/loop-logic-core/internal/circuit"
)

// Domain errors for the snapshot package.
var (
	// ErrEmptyInput is returned when the source holds no rows at all.
	ErrEmptyInput = errors.New("snapshot: empty input")

	// ErrBadHeader is returned when the header row does not match the
	// tabular schema.
	ErrBadHeader = errors.New("snapshot: bad header")

	// ErrUnsupportedFormat is returned for an unrecognised format name.
	ErrUnsupportedFormat = errors.New("snapshot: unsupported format")
)

// Format names a serialisation of the tabular schema.
type Format string

// Format constants.
const (
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
)

// ParseFormat converts an external format string to a Format.
// An empty string maps to FormatCSV.
func ParseFormat(s string) (Format, error) {
	switch Format(s) {
	case FormatCSV, FormatXLSX:
		return Format(s), nil
	}
	if s == "" {
		return FormatCSV, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, s)
}

// Columns is the tabular schema header, in column order.
var Columns = []string{
	"panel", "circuit", "device_id", "address",
	"type", "level", "room", "current_draw",
}

// Record is one row of the tabular schema.
type Record struct {
	PanelID     string  `json:"panel"`
	CircuitID   string  `json:"circuit"`
	DeviceID    string  `json:"device_id"`
	Address     int     `json:"address"`
	DeviceType  string  `json:"type"`
	Level       string  `json:"level,omitempty"`
	Room        string  `json:"room,omitempty"`
	CurrentDraw float64 `json:"current_draw"`
}

// Validate checks the record for import. A device id is required; address
// and draw must be non-negative.
func (r Record) Validate() error {
	if r.DeviceID == "" {
		return circuit.ErrInvalidDevice
	}
	if r.Address < 0 {
		return fmt.Errorf("%w: negative address %d", circuit.ErrAddressOutOfRange, r.Address)
	}
	if r.CurrentDraw < 0 {
		return fmt.Errorf("%w: negative draw %v", circuit.ErrInvalidDevice, r.CurrentDraw)
	}
	return nil
}

// RowFailure reports one row that could not be parsed or validated.
// Row numbering is 1-based and includes the header row.
type RowFailure struct {
	Row     int    `json:"row"`
	Message string `json:"message"`
}

// ReadResult carries the parsed rows and per-row failures of one import.
// Failures never abort the read; callers report them individually.
type ReadResult struct {
	Records  []Record     `json:"records"`
	Failures []RowFailure `json:"failures,omitempty"`
}

func (r *ReadResult) fail(row int, err error) {
	r.Failures = append(r.Failures, RowFailure{Row: row, Message: err.Error()})
}
