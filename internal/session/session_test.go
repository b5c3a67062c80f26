package session

import (
	"context"
	"errors"
	"testing"

	"github.com/nerrad567/loop-logic-core/internal/circuit"
)

// MockStore implements Store for testing.
type MockStore struct {
	ApplyFunc func(ctx context.Context, batchID string, changes []Change) error
	LoadFunc  func(ctx context.Context) ([]Assignment, error)

	ApplyCalls int
	LastBatch  string
	LastChange []Change
}

func (m *MockStore) Apply(ctx context.Context, batchID string, changes []Change) error {
	m.ApplyCalls++
	m.LastBatch = batchID
	m.LastChange = changes
	if m.ApplyFunc != nil {
		return m.ApplyFunc(ctx, batchID, changes)
	}
	return nil
}

func (m *MockStore) Load(ctx context.Context) ([]Assignment, error) {
	if m.LoadFunc != nil {
		return m.LoadFunc(ctx)
	}
	return nil, nil
}

func change(id string, op OpKind, addr int) Change {
	return Change{
		Op: op,
		Assignment: Assignment{
			DeviceID:  id,
			PanelID:   "P1",
			CircuitID: "P1-L1",
			Address:   addr,
			Lock:      circuit.LockUnlocked,
		},
	}
}

func TestSession_ImplicitBegin(t *testing.T) {
	s := NewSession(&MockStore{})
	if s.Active() {
		t.Error("fresh session should have no active batch")
	}

	id := s.Queue(change("d1", OpInsert, 1))
	if id == "" || !s.Active() || s.BatchID() != id {
		t.Errorf("Queue should open a batch: id=%q active=%v", id, s.Active())
	}
	if id2 := s.Queue(change("d2", OpInsert, 2)); id2 != id {
		t.Errorf("second Queue opened a new batch: %q != %q", id2, id)
	}
	if got := len(s.Pending()); got != 2 {
		t.Errorf("pending = %d, want 2", got)
	}
}

func TestSession_BeginDiscardsPending(t *testing.T) {
	s := NewSession(&MockStore{})
	s.Queue(change("d1", OpInsert, 1))
	first := s.BatchID()

	second := s.Begin()
	if second == first {
		t.Error("Begin should mint a fresh batch id")
	}
	if len(s.Pending()) != 0 {
		t.Error("Begin should discard pending changes")
	}
}

func TestSession_CommitAppliesInOrder(t *testing.T) {
	store := &MockStore{}
	s := NewSession(store)
	s.Queue(change("d1", OpInsert, 1))
	s.Queue(change("d2", OpUpdate, 2))
	s.Queue(change("d1", OpDelete, 0))
	batch := s.BatchID()

	count, err := s.Commit(context.Background())
	if err != nil {
		t.Fatalf("Commit() error = %v", err)
	}
	if count != 3 {
		t.Errorf("count = %d, want 3", count)
	}
	if store.ApplyCalls != 1 || store.LastBatch != batch {
		t.Errorf("Apply calls = %d batch = %q, want 1 call for %q",
			store.ApplyCalls, store.LastBatch, batch)
	}
	wantOps := []OpKind{OpInsert, OpUpdate, OpDelete}
	for i, c := range store.LastChange {
		if c.Op != wantOps[i] {
			t.Errorf("change %d op = %s, want %s", i, c.Op, wantOps[i])
		}
	}
	if s.Active() || len(s.Pending()) != 0 {
		t.Error("successful commit should clear the batch")
	}
}

func TestSession_CommitEmptyBatch(t *testing.T) {
	store := &MockStore{}
	s := NewSession(store)

	count, err := s.Commit(context.Background())
	if err != nil || count != 0 {
		t.Errorf("empty commit = (%d, %v), want (0, nil)", count, err)
	}
	if store.ApplyCalls != 0 {
		t.Error("empty commit must not touch the store")
	}
}

func TestSession_CommitFailureKeepsPending(t *testing.T) {
	boom := errors.New("disk full")
	store := &MockStore{
		ApplyFunc: func(context.Context, string, []Change) error { return boom },
	}
	s := NewSession(store)
	s.Queue(change("d1", OpInsert, 1))

	_, err := s.Commit(context.Background())
	if !errors.Is(err, ErrApplyFailed) {
		t.Fatalf("error = %v, want ErrApplyFailed", err)
	}
	if len(s.Pending()) != 1 || !s.Active() {
		t.Error("failed commit must keep the batch queued")
	}

	// Retry after the store recovers.
	store.ApplyFunc = nil
	count, err := s.Commit(context.Background())
	if err != nil || count != 1 {
		t.Errorf("retry = (%d, %v), want (1, nil)", count, err)
	}
}

func TestSession_CommitWithoutStore(t *testing.T) {
	s := NewSession(nil)
	s.Queue(change("d1", OpInsert, 1))

	if _, err := s.Commit(context.Background()); !errors.Is(err, ErrNilStore) {
		t.Errorf("error = %v, want ErrNilStore", err)
	}
}

func TestSession_Rollback(t *testing.T) {
	store := &MockStore{}
	s := NewSession(store)
	s.Queue(change("d1", OpInsert, 1))
	s.Queue(change("d2", OpInsert, 2))

	if dropped := s.Rollback(); dropped != 2 {
		t.Errorf("dropped = %d, want 2", dropped)
	}
	if s.Active() || len(s.Pending()) != 0 {
		t.Error("rollback should clear the batch")
	}
	if store.ApplyCalls != 0 {
		t.Error("rollback must not touch the store")
	}

	if dropped := s.Rollback(); dropped != 0 {
		t.Errorf("second rollback dropped = %d, want 0", dropped)
	}
}

func TestSession_PendingIsACopy(t *testing.T) {
	s := NewSession(&MockStore{})
	s.Queue(change("d1", OpInsert, 1))

	pending := s.Pending()
	pending[0].Assignment.DeviceID = "tampered"
	if s.Pending()[0].Assignment.DeviceID != "d1" {
		t.Error("mutating the returned slice must not affect the session")
	}
}
