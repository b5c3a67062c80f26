package session

import "github.com/nerrad567/loop-logic-core/internal/circuit"

// OpKind tags a pending change with the entity operation it performs.
type OpKind string

// OpKind constants.
const (
	OpInsert OpKind = "insert"
	OpUpdate OpKind = "update"
	OpDelete OpKind = "delete"
)

// AllOpKinds returns all valid operation kinds.
func AllOpKinds() []OpKind {
	return []OpKind{OpInsert, OpUpdate, OpDelete}
}

// Assignment is the durable record of one device's address allocation.
type Assignment struct {
	DeviceID    string            `json:"device_id"`
	PanelID     string            `json:"panel_id"`
	CircuitID   string            `json:"circuit_id"`
	Address     int               `json:"address"`
	Lock        circuit.LockState `json:"lock"`
	DeviceType  string            `json:"device_type"`
	Level       string            `json:"level,omitempty"`
	Room        string            `json:"room,omitempty"`
	CurrentDraw float64           `json:"current_draw"`
}

// Change is one queued entity operation within a batch.
type Change struct {
	Op         OpKind     `json:"op"`
	Assignment Assignment `json:"assignment"`
}
