package session

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// Domain errors for the session package.
var (
	// ErrNilStore is returned when a commit is attempted without a store.
	ErrNilStore = errors.New("session: no store configured")

	// ErrApplyFailed wraps store failures during commit.
	ErrApplyFailed = errors.New("session: applying batch failed")
)

// Store persists a committed batch of changes atomically: either every
// change in the batch is applied or none are.
type Store interface {
	Apply(ctx context.Context, batchID string, changes []Change) error
	Load(ctx context.Context) ([]Assignment, error)
}

// Logger defines the logging interface used by the Session.
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

// Session is the transaction boundary for durable persistence of device
// mutations. Changes queue in order and are written to the store as one
// atomic batch on commit.
//
// The boundary guards persistence only: in-memory circuit and pool state is
// applied immediately per operation and is not rolled back here. A caller
// that needs durable consistency after a rollback reloads from the store.
//
// A batch is created implicitly on the first queued change when none is
// active. Not safe for concurrent use.
type Session struct {
	store   Store
	logger  Logger
	batchID string
	pending []Change
}

// NewSession creates a session backed by the given store. A nil store is
// allowed; commits then fail with ErrNilStore.
func NewSession(store Store) *Session {
	return &Session{
		store:  store,
		logger: noopLogger{},
	}
}

// SetLogger sets the logger for the session.
func (s *Session) SetLogger(logger Logger) {
	s.logger = logger
}

// Begin starts a new batch, discarding any pending changes, and returns the
// batch identifier.
func (s *Session) Begin() string {
	if len(s.pending) > 0 {
		s.logger.Warn("new batch discards pending changes",
			"batch", s.batchID, "discarded", len(s.pending))
	}
	s.batchID = uuid.New().String()
	s.pending = nil
	return s.batchID
}

// Active reports whether a batch is open.
func (s *Session) Active() bool {
	return s.batchID != ""
}

// BatchID returns the current batch identifier, or "" when none is active.
func (s *Session) BatchID() string {
	return s.batchID
}

// Queue appends a change to the current batch, beginning one implicitly if
// none is active. Returns the batch identifier the change belongs to.
func (s *Session) Queue(c Change) string {
	if s.batchID == "" {
		s.batchID = uuid.New().String()
	}
	s.pending = append(s.pending, c)
	return s.batchID
}

// Pending returns a copy of the queued changes in queue order.
func (s *Session) Pending() []Change {
	out := make([]Change, len(s.pending))
	copy(out, s.pending)
	return out
}

// Commit writes the pending batch to the store and returns the number of
// changes applied. The batch is cleared only on success; on failure the
// store remains untouched and the pending changes stay queued for a retry
// or an explicit rollback. Committing an empty batch is a no-op.
func (s *Session) Commit(ctx context.Context) (int, error) {
	if len(s.pending) == 0 {
		s.clear()
		return 0, nil
	}
	if s.store == nil {
		return 0, ErrNilStore
	}

	if err := s.store.Apply(ctx, s.batchID, s.pending); err != nil {
		s.logger.Error("batch commit failed",
			"batch", s.batchID, "changes", len(s.pending), "error", err)
		return 0, fmt.Errorf("%w: %v", ErrApplyFailed, err)
	}

	count := len(s.pending)
	s.logger.Info("batch committed", "batch", s.batchID, "changes", count)
	s.clear()
	return count, nil
}

// Rollback discards the pending batch and returns the number of changes
// dropped. Idempotent when no batch is active.
func (s *Session) Rollback() int {
	count := len(s.pending)
	if count > 0 {
		s.logger.Info("batch rolled back", "batch", s.batchID, "dropped", count)
	}
	s.clear()
	return count
}

func (s *Session) clear() {
	s.batchID = ""
	s.pending = nil
}
