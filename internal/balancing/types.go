package balancing

// Options controls a balancing pass.
type Options struct {
	// TargetUtilization is the device-utilization fraction circuits are
	// balanced toward. Zero falls back to the policy headroom
	// (1 - spare fraction).
	TargetUtilization float64 `json:"target_utilization"`

	// PreserveGroups prefers moving devices whose level/room group has the
	// fewest co-located peers, breaking up small groups before large ones.
	PreserveGroups bool `json:"preserve_groups"`

	// RespectLocks additionally protects manually-addressed devices.
	// Locked devices are never moved regardless of this flag.
	RespectLocks bool `json:"respect_locks"`

	// ValidateElectrical runs the electrical-limit check on every move.
	ValidateElectrical bool `json:"validate_electrical"`
}

// Move records one attempted device relocation. Moved reports whether the
// relocation actually committed.
type Move struct {
	DeviceID    string `json:"device_id"`
	FromCircuit string `json:"from_circuit"`
	ToCircuit   string `json:"to_circuit,omitempty"`
	Address     int    `json:"address,omitempty"`
	Reason      string `json:"reason"`
	Moved       bool   `json:"moved"`
}

// Result summarises a balancing pass. Success is true only when the
// system imbalance strictly decreased.
type Result struct {
	Success         bool    `json:"success"`
	ImbalanceBefore float64 `json:"imbalance_before"`
	ImbalanceAfter  float64 `json:"imbalance_after"`
	MovesCompleted  int     `json:"moves_completed"`
	Moves           []Move  `json:"moves,omitempty"`

	// Error carries the failure message when the pass aborted. A failed
	// pass leaves device assignments unchanged for the aborted portion.
	Error string `json:"error,omitempty"`
}

func (r *Result) record(m Move) {
	if m.Moved {
		r.MovesCompleted++
	}
	r.Moves = append(r.Moves, m)
}
