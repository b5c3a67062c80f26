package commissioning

import (
	"context"
	"fmt"

	"github.com/nerrad567/loop-logic-core/internal/assignment"
	"github.com/nerrad567/loop-logic-core/internal/balancing"
	"github.com/nerrad567/loop-logic-core/internal/circuit"
	"github.com/nerrad567/loop-logic-core/internal/events"
	"github.com/nerrad567/loop-logic-core/internal/session"
)

// Logger defines the logging interface used by the Service.
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

// Service is the caller-facing commissioning facade: panel initialization,
// assignment, validation, balancing, snapshot exchange, statistics, and
// transaction control over one in-memory model.
//
// The service is explicitly constructed and caller-owned; there is no
// process-wide registry. It expects single-writer orchestration by its
// host and is not safe for concurrent mutation.
type Service struct {
	opts      Options
	engine    *assignment.Engine
	balancer  *balancing.Balancer
	session   *session.Session
	store     session.Store
	publisher *events.Publisher
	logger    Logger

	panels   map[string]*circuit.Panel
	order    []string
	circuits map[string]*circuit.Circuit
	devices  map[string]*circuit.Device
}

// NewService creates a commissioning service. The store may be nil; commits
// then fail until one is provided, but every in-memory operation works.
func NewService(opts Options, store session.Store) *Service {
	opts.Policy = opts.Policy.WithDefaults()
	if opts.DefaultStrategy == "" {
		opts.DefaultStrategy = assignment.StrategySequential
	}

	engine := assignment.NewEngine(opts.Policy)
	s := &Service{
		opts:     opts,
		engine:   engine,
		balancer: balancing.NewBalancer(engine),
		session:  session.NewSession(store),
		store:    store,
		logger:   noopLogger{},
	}
	s.reset()
	return s
}

// SetLogger sets the logger for the service and its engines.
func (s *Service) SetLogger(logger Logger) {
	s.logger = logger
	s.engine.SetLogger(logger)
	s.balancer.SetLogger(logger)
	s.session.SetLogger(logger)
}

// SetPublisher attaches an optional allocation-event publisher.
func (s *Service) SetPublisher(p *events.Publisher) {
	s.publisher = p
}

func (s *Service) reset() {
	s.panels = make(map[string]*circuit.Panel)
	s.order = nil
	s.circuits = make(map[string]*circuit.Circuit)
	s.devices = make(map[string]*circuit.Device)
}

// ensureCircuit returns the circuit with the given id, creating it and its
// panel on first sight.
func (s *Service) ensureCircuit(circuitID string) *circuit.Circuit {
	if c, ok := s.circuits[circuitID]; ok {
		return c
	}

	panelID := circuit.PanelKey(circuitID)
	p, ok := s.panels[panelID]
	if !ok {
		p = circuit.NewPanel(panelID)
		s.panels[panelID] = p
		s.order = append(s.order, panelID)
	}

	c := circuit.NewCircuit(circuitID, s.opts.Limits)
	p.AddCircuit(c)
	s.circuits[circuitID] = c
	return c
}

// allCircuits returns every circuit in panel insertion order.
func (s *Service) allCircuits() []*circuit.Circuit {
	var out []*circuit.Circuit
	for _, panelID := range s.order {
		out = append(out, s.panels[panelID].Circuits()...)
	}
	return out
}

// Panels returns the panel identifiers in insertion order.
func (s *Service) Panels() []string {
	out := make([]string, len(s.order))
	copy(out, s.order)
	return out
}

// Panel returns the panel with the given id, or nil.
func (s *Service) Panel(id string) *circuit.Panel {
	return s.panels[id]
}

// Circuit returns the circuit with the given id, or nil.
func (s *Service) Circuit(id string) *circuit.Circuit {
	return s.circuits[id]
}

// Device returns the device with the given id, or nil.
func (s *Service) Device(id string) *circuit.Device {
	return s.devices[id]
}

// InitializePanels rebuilds the in-memory model from a flat device list.
// Devices group into circuits by their circuit id and into panels by the
// prefix before the first "-". Pre-existing addresses are honoured when
// the slot is free; collisions leave the device unassigned and are
// recorded as failures.
func (s *Service) InitializePanels(ctx context.Context, snapshots []DeviceSnapshot) (*InitResult, error) {
	s.reset()
	result := &InitResult{}

	for _, snap := range snapshots {
		if err := ctx.Err(); err != nil {
			return result, fmt.Errorf("initialization cancelled: %w", err)
		}

		if snap.ID == "" {
			result.Failed++
			result.Outcomes = append(result.Outcomes, assignment.Outcome{
				Kind: assignment.OutcomeFailed, Reason: "device id is required",
			})
			continue
		}
		if snap.CircuitID == "" {
			result.Failed++
			result.Outcomes = append(result.Outcomes, assignment.Outcome{
				DeviceID: snap.ID,
				Kind:     assignment.OutcomeFailed, Reason: "circuit id is required",
			})
			continue
		}
		lock, err := circuit.ParseLockState(snap.Lock)
		if err != nil {
			result.Failed++
			result.Outcomes = append(result.Outcomes, assignment.Outcome{
				DeviceID: snap.ID, CircuitID: snap.CircuitID,
				Kind: assignment.OutcomeFailed, Reason: fmt.Sprintf("lock state %q not recognised", snap.Lock),
			})
			continue
		}

		d := &circuit.Device{
			ID:          snap.ID,
			Type:        snap.Type,
			Position:    snap.Position,
			Level:       snap.Level,
			Room:        snap.Room,
			X:           snap.X,
			Y:           snap.Y,
			Lock:        lock,
			CurrentDraw: snap.CurrentDraw,
			UnitLoads:   snap.UnitLoads,
			Flags:       snap.Flags,
		}

		c := s.ensureCircuit(snap.CircuitID)
		c.AddDevice(d)
		s.devices[d.ID] = d
		result.Devices++

		if snap.Address > 0 {
			if !c.Pool().Assign(snap.Address, d) {
				result.Failed++
				result.Outcomes = append(result.Outcomes, assignment.Outcome{
					DeviceID: d.ID, CircuitID: c.ID,
					Kind:   assignment.OutcomeFailed,
					Reason: fmt.Sprintf("address %d unavailable", snap.Address),
				})
			}
		}

		s.queue(session.OpInsert, d)
	}

	result.Panels = len(s.panels)
	result.Circuits = len(s.circuits)

	s.logger.Info("panels initialized",
		"panels", result.Panels,
		"circuits", result.Circuits,
		"devices", result.Devices,
		"failed", result.Failed,
	)
	return result, nil
}

// AutoAssignAll runs batch auto-assignment over every circuit, in panel
// order, and merges the per-circuit results. A nil opts uses the service
// defaults.
func (s *Service) AutoAssignAll(ctx context.Context, opts *assignment.AutoAssignOptions) (*assignment.BatchResult, error) {
	effective := s.defaultAutoAssignOptions()
	if opts != nil {
		effective = *opts
		if effective.Strategy == "" {
			effective.Strategy = s.opts.DefaultStrategy
		}
	}

	merged := &assignment.BatchResult{}
	for _, c := range s.allCircuits() {
		result, err := s.engine.AutoAssign(ctx, c, effective)
		if result != nil {
			merged.Merge(result)
			s.queueAssigned(c, result)
		}
		if err != nil {
			return merged, err
		}
	}

	return merged, nil
}

func (s *Service) defaultAutoAssignOptions() assignment.AutoAssignOptions {
	return assignment.AutoAssignOptions{
		RespectLocks:       s.opts.RespectLocks,
		Strategy:           s.opts.DefaultStrategy,
		StartAddress:       s.opts.Policy.StartAddress,
		ValidateElectrical: s.opts.ValidateElectrical,
	}
}

// queueAssigned queues a session update and publishes an event for every
// assigned outcome in the batch.
func (s *Service) queueAssigned(c *circuit.Circuit, result *assignment.BatchResult) {
	for _, o := range result.Outcomes {
		if o.Kind != assignment.OutcomeAssigned {
			continue
		}
		if d := s.devices[o.DeviceID]; d != nil {
			s.queue(session.OpUpdate, d)
			s.publisher.PublishAsync(events.Event{
				Kind:      events.KindAssigned,
				PanelID:   circuit.PanelKey(c.ID),
				CircuitID: c.ID,
				DeviceID:  o.DeviceID,
				Address:   o.Address,
			})
		}
	}
}

// ValidatePanel runs full-circuit validation over every circuit of the
// panel. The panel is valid when no circuit carries an Error-severity
// issue.
func (s *Service) ValidatePanel(panelID string) (*PanelValidation, error) {
	p, ok := s.panels[panelID]
	if !ok {
		return nil, circuit.ErrPanelNotFound
	}

	out := &PanelValidation{
		PanelID:  panelID,
		IsValid:  true,
		Circuits: make(map[string]circuit.Result),
	}
	for _, c := range p.Circuits() {
		res := circuit.ValidateCircuit(c, s.opts.Policy)
		out.Circuits[c.ID] = res
		if !res.IsValid() {
			out.IsValid = false
		}
	}
	return out, nil
}

// CircuitUtilization reports the live load of every circuit, derived from
// the current device collections, never cached.
func (s *Service) CircuitUtilization() []CircuitLoad {
	var out []CircuitLoad
	for _, c := range s.allCircuits() {
		out = append(out, CircuitLoad{
			PanelID:            circuit.PanelKey(c.ID),
			CircuitID:          c.ID,
			DeviceCount:        c.DeviceCount(),
			MaxDevices:         c.Limits.MaxDevices,
			DeviceUtilization:  c.DeviceUtilization(),
			CurrentUtilization: c.CurrentUtilization(),
			TotalCurrent:       c.TotalCurrent(),
		})
	}
	return out
}

// Balance runs one balancing pass across all circuits. Completed moves are
// queued for persistence; the result reports success only when the system
// imbalance strictly decreased.
func (s *Service) Balance(ctx context.Context) *BalanceResult {
	result := s.balancer.Balance(ctx, s.allCircuits(), balancing.Options{
		TargetUtilization:  s.opts.TargetUtilization,
		PreserveGroups:     s.opts.PreserveGroups,
		RespectLocks:       s.opts.RespectLocks,
		ValidateElectrical: s.opts.ValidateElectrical,
	})

	for _, m := range result.Moves {
		if !m.Moved {
			continue
		}
		if d := s.devices[m.DeviceID]; d != nil {
			s.queue(session.OpUpdate, d)
		}
	}
	if result.MovesCompleted > 0 {
		s.publisher.PublishAsync(events.Event{
			Kind:  events.KindBalanced,
			Count: result.MovesCompleted,
		})
	}
	return result
}

// AssignDevice places the device on the named circuit. A device already on
// another circuit is moved; on validation failure it is restored to its
// prior circuit and address.
func (s *Service) AssignDevice(deviceID, circuitID string, opts assignment.AssignOptions) (int, error) {
	d, ok := s.devices[deviceID]
	if !ok {
		return 0, circuit.ErrDeviceNotFound
	}
	target, ok := s.circuits[circuitID]
	if !ok {
		return 0, circuit.ErrCircuitNotFound
	}

	prior := s.circuits[d.CircuitID]
	priorAddr := d.Address
	priorLock := d.Lock
	if prior != nil && prior != target {
		s.engine.Remove(d, prior)
		// Keep the old address visible so PreserveExisting can carry it
		// across circuits; a successful assignment overwrites it.
		d.Address = priorAddr
		d.Lock = priorLock
	}

	addr, err := s.engine.AssignDevice(d, target, opts)
	if err != nil {
		if prior != nil && prior != target {
			prior.AddDevice(d)
			if priorAddr != 0 {
				prior.Pool().Assign(priorAddr, d)
			}
			d.Lock = priorLock
		}
		return 0, err
	}

	s.queue(session.OpUpdate, d)
	s.publisher.PublishAsync(events.Event{
		Kind:      events.KindAssigned,
		PanelID:   circuit.PanelKey(target.ID),
		CircuitID: target.ID,
		DeviceID:  d.ID,
		Address:   addr,
	})
	return addr, nil
}

// RemoveDevice releases the device's address and detaches it from its
// circuit. The device stays known to the service for later reassignment.
// Returns false for an unknown or already-detached device.
func (s *Service) RemoveDevice(deviceID string) bool {
	d, ok := s.devices[deviceID]
	if !ok {
		return false
	}
	c := s.circuits[d.CircuitID]
	if c == nil {
		return false
	}
	circuitID := c.ID
	if !s.engine.Remove(d, c) {
		return false
	}

	s.queue(session.OpDelete, d)
	s.publisher.PublishAsync(events.Event{
		Kind:      events.KindRemoved,
		PanelID:   circuit.PanelKey(circuitID),
		CircuitID: circuitID,
		DeviceID:  d.ID,
	})
	return true
}

// UpdateDeviceAddress moves the device to a specific address on its own
// circuit, gated by the full validation path. On conflict the returned
// error carries suggested alternatives.
func (s *Service) UpdateDeviceAddress(deviceID string, addr int) error {
	d, ok := s.devices[deviceID]
	if !ok {
		return circuit.ErrDeviceNotFound
	}
	c := s.circuits[d.CircuitID]
	if c == nil {
		return circuit.ErrCircuitNotFound
	}

	res := circuit.CheckAssignment(d, addr, c, s.opts.Policy)
	if errs := res.Errors(); len(errs) > 0 {
		return &assignment.ValidationError{
			DeviceID:  d.ID,
			CircuitID: c.ID,
			Address:   addr,
			Issues:    errs,
		}
	}
	if !c.Pool().Assign(addr, d) {
		return fmt.Errorf("%w: address %d on circuit %s", circuit.ErrAddressOccupied, addr, c.ID)
	}

	s.queue(session.OpUpdate, d)
	s.publisher.PublishAsync(events.Event{
		Kind:      events.KindAssigned,
		PanelID:   circuit.PanelKey(c.ID),
		CircuitID: c.ID,
		DeviceID:  d.ID,
		Address:   addr,
	})
	return nil
}

// Begin opens a fresh persistence batch and returns its identifier.
func (s *Service) Begin() string {
	return s.session.Begin()
}

// Commit writes the pending batch to the store and returns the number of
// changes applied. A store failure triggers an automatic rollback of the
// pending batch and re-surfaces the original error.
func (s *Service) Commit(ctx context.Context) (int, error) {
	batchID := s.session.BatchID()
	count, err := s.session.Commit(ctx)
	if err != nil {
		dropped := s.session.Rollback()
		s.logger.Error("commit failed, batch rolled back",
			"batch", batchID, "dropped", dropped, "error", err)
		return 0, err
	}

	if count > 0 {
		s.publisher.PublishAsync(events.Event{
			Kind:    events.KindCommitted,
			BatchID: batchID,
			Count:   count,
		})
	}
	return count, nil
}

// Rollback discards the pending batch and returns the number of changes
// dropped. In-memory state is not rewound; call Reload for durable
// consistency.
func (s *Service) Rollback() int {
	return s.session.Rollback()
}

// Reload rebuilds the in-memory model from the durable store, discarding
// all unpersisted state.
func (s *Service) Reload(ctx context.Context) error {
	if s.store == nil {
		return session.ErrNilStore
	}
	assignments, err := s.store.Load(ctx)
	if err != nil {
		return fmt.Errorf("reloading assignments: %w", err)
	}

	s.reset()
	s.session.Rollback()
	for _, a := range assignments {
		lock, err := circuit.ParseLockState(string(a.Lock))
		if err != nil {
			lock = circuit.LockUnlocked
		}
		d := &circuit.Device{
			ID:          a.DeviceID,
			Type:        a.DeviceType,
			Level:       a.Level,
			Room:        a.Room,
			Lock:        lock,
			CurrentDraw: a.CurrentDraw,
		}
		c := s.ensureCircuit(a.CircuitID)
		c.AddDevice(d)
		s.devices[d.ID] = d
		if a.Address > 0 {
			c.Pool().Assign(a.Address, d)
		}
	}

	s.logger.Info("state reloaded", "devices", len(assignments))
	return nil
}

// queue records one entity operation against the pending batch.
func (s *Service) queue(op session.OpKind, d *circuit.Device) {
	s.session.Queue(session.Change{
		Op: op,
		Assignment: session.Assignment{
			DeviceID:    d.ID,
			PanelID:     circuit.PanelKey(d.CircuitID),
			CircuitID:   d.CircuitID,
			Address:     d.Address,
			Lock:        d.Lock,
			DeviceType:  d.Type,
			Level:       d.Level,
			Room:        d.Room,
			CurrentDraw: d.CurrentDraw,
		},
	})
}
