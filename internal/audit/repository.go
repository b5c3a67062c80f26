// Package audit provides read access to the commissioning_batches table
// for querying commit history. Rows are written by the session store as
// part of each committed batch; this package only reads them.
package audit

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// BatchRecord is one committed assignment batch.
type BatchRecord struct {
	ID          string    `json:"id"`
	ChangeCount int       `json:"change_count"`
	CommittedAt time.Time `json:"committed_at"`
}

// Filter controls which batches to return.
type Filter struct {
	Limit  int // default 50, max 200
	Offset int // pagination offset
}

// ListResult contains the paginated batch history.
type ListResult struct {
	Batches []BatchRecord `json:"batches"`
	Total   int           `json:"total"`
	Limit   int           `json:"limit"`
	Offset  int           `json:"offset"`
}

// Repository defines the interface for batch history queries.
type Repository interface {
	List(ctx context.Context, filter Filter) (*ListResult, error)
}

// SQLiteRepository reads batch history from SQLite.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a new batch history repository.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// List returns committed batches, most recent first.
func (r *SQLiteRepository) List(ctx context.Context, filter Filter) (*ListResult, error) {
	// Clamp limit.
	if filter.Limit <= 0 {
		filter.Limit = 50
	}
	if filter.Limit > 200 { //nolint:mnd // max page size for history queries
		filter.Limit = 200
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}

	var total int
	if err := r.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM commissioning_batches").Scan(&total); err != nil {
		return nil, fmt.Errorf("counting batches: %w", err)
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT id, change_count, committed_at
		 FROM commissioning_batches
		 ORDER BY committed_at DESC, id
		 LIMIT ? OFFSET ?`,
		filter.Limit, filter.Offset,
	)
	if err != nil {
		return nil, fmt.Errorf("querying batches: %w", err)
	}
	defer rows.Close()

	var batches []BatchRecord
	for rows.Next() {
		var rec BatchRecord
		var committedAt string
		if err := rows.Scan(&rec.ID, &rec.ChangeCount, &committedAt); err != nil {
			return nil, fmt.Errorf("scanning batch: %w", err)
		}

		t, err := time.Parse(time.RFC3339, committedAt)
		if err != nil {
			t, err = time.Parse("2006-01-02T15:04:05Z", committedAt)
			if err != nil {
				return nil, fmt.Errorf("parsing batch timestamp %q: %w", committedAt, err)
			}
		}
		rec.CommittedAt = t

		batches = append(batches, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating batches: %w", err)
	}

	if batches == nil {
		batches = []BatchRecord{}
	}
	return &ListResult{
		Batches: batches,
		Total:   total,
		Limit:   filter.Limit,
		Offset:  filter.Offset,
	}, nil
}
