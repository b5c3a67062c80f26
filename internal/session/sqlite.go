package session

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/nerrad567/loop-logic-core/internal/circuit"
)

// SQLiteStore implements Store using SQLite.
//
// Assignments live in the device_assignments table keyed by device id;
// every committed batch leaves an audit row in commissioning_batches.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite-backed store.
//
// Parameters:
//   - db: Open SQLite connection used for queries
//
// Returns:
//   - *SQLiteStore: Store instance ready for use
func NewSQLiteStore(db *sql.DB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

// Apply writes a batch of changes inside a single database transaction.
// Either every change lands or the transaction rolls back wholesale.
//
// Parameters:
//   - ctx: Context for cancellation and timeout
//   - batchID: Identifier the batch was queued under
//   - changes: Ordered entity operations to apply
//
// Returns:
//   - error: nil on success, otherwise the underlying database error
func (s *SQLiteStore) Apply(ctx context.Context, batchID string, changes []Change) error {
	if batchID == "" {
		return fmt.Errorf("batch id is required")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	for _, c := range changes {
		if c.Assignment.DeviceID == "" {
			return fmt.Errorf("change %s has no device id", c.Op)
		}
		switch c.Op {
		case OpInsert, OpUpdate:
			_, err = tx.ExecContext(ctx,
				`INSERT INTO device_assignments
				   (device_id, panel_id, circuit_id, address, lock_state,
				    device_type, level, room, current_draw, batch_id)
				 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
				 ON CONFLICT(device_id) DO UPDATE SET
				   panel_id = excluded.panel_id,
				   circuit_id = excluded.circuit_id,
				   address = excluded.address,
				   lock_state = excluded.lock_state,
				   device_type = excluded.device_type,
				   level = excluded.level,
				   room = excluded.room,
				   current_draw = excluded.current_draw,
				   batch_id = excluded.batch_id,
				   updated_at = strftime('%Y-%m-%dT%H:%M:%SZ', 'now')`,
				c.Assignment.DeviceID,
				c.Assignment.PanelID,
				c.Assignment.CircuitID,
				c.Assignment.Address,
				string(c.Assignment.Lock),
				c.Assignment.DeviceType,
				c.Assignment.Level,
				c.Assignment.Room,
				c.Assignment.CurrentDraw,
				batchID,
			)
		case OpDelete:
			_, err = tx.ExecContext(ctx,
				"DELETE FROM device_assignments WHERE device_id = ?",
				c.Assignment.DeviceID,
			)
		default:
			return fmt.Errorf("unknown operation kind %q", c.Op)
		}
		if err != nil {
			return fmt.Errorf("applying %s for device %s: %w", c.Op, c.Assignment.DeviceID, err)
		}
	}

	if _, err := tx.ExecContext(ctx,
		"INSERT INTO commissioning_batches (id, change_count) VALUES (?, ?)",
		batchID, len(changes),
	); err != nil {
		return fmt.Errorf("recording batch: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// Load returns every stored assignment, ordered by panel, circuit, and
// address, for rebuilding in-memory state after a restart or rollback.
func (s *SQLiteStore) Load(ctx context.Context) ([]Assignment, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT device_id, panel_id, circuit_id, address, lock_state,
		        device_type, level, room, current_draw
		 FROM device_assignments
		 ORDER BY panel_id, circuit_id, address`,
	)
	if err != nil {
		return nil, fmt.Errorf("querying assignments: %w", err)
	}
	defer rows.Close()

	var out []Assignment
	for rows.Next() {
		var a Assignment
		var lock string
		if err := rows.Scan(&a.DeviceID, &a.PanelID, &a.CircuitID, &a.Address,
			&lock, &a.DeviceType, &a.Level, &a.Room, &a.CurrentDraw); err != nil {
			return nil, fmt.Errorf("scanning assignment: %w", err)
		}
		a.Lock, err = circuit.ParseLockState(lock)
		if err != nil {
			return nil, fmt.Errorf("assignment %s: %w", a.DeviceID, err)
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating assignments: %w", err)
	}
	return out, nil
}
