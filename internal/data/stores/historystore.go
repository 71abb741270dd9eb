// Package stores holds the SQLite-backed stores.
package stores

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/colonyops/workboard/internal/core/worker"
	"github.com/colonyops/workboard/internal/data/db"
)

const defaultHistoryLimit = 100

// HistoryStore implements worker.History using SQLite.
type HistoryStore struct {
	db  *db.DB
	now func() time.Time
}

var _ worker.History = (*HistoryStore)(nil)

// NewHistoryStore creates a new SQLite-backed history store.
func NewHistoryStore(db *db.DB) *HistoryStore {
	return &HistoryStore{db: db, now: time.Now}
}

// Record appends e. A missing ID or timestamp is filled in.
func (s *HistoryStore) Record(ctx context.Context, e worker.Event) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = s.now()
	}

	_, err := s.db.Conn().ExecContext(ctx, `
		INSERT INTO worker_events (id, worker, role, kind, status, task_id, item_id, message, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.Worker, e.Role, string(e.Kind), e.Status, e.TaskID, e.ItemID, e.Message, e.CreatedAt.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("failed to record worker event: %w", err)
	}
	return nil
}

// List returns the newest events for worker. A limit <= 0 uses a default.
func (s *HistoryStore) List(ctx context.Context, name string, limit int) ([]worker.Event, error) {
	if limit <= 0 {
		limit = defaultHistoryLimit
	}

	rows, err := s.db.Conn().QueryContext(ctx, `
		SELECT id, worker, role, kind, status, task_id, item_id, message, created_at
		FROM worker_events
		WHERE worker = ?
		ORDER BY created_at DESC, rowid DESC
		LIMIT ?`, name, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list worker events: %w", err)
	}
	defer func() { _ = rows.Close() }()

	events := make([]worker.Event, 0)
	for rows.Next() {
		var (
			e       worker.Event
			kind    string
			created int64
		)
		if err := rows.Scan(&e.ID, &e.Worker, &e.Role, &kind, &e.Status, &e.TaskID, &e.ItemID, &e.Message, &created); err != nil {
			return nil, fmt.Errorf("failed to scan worker event: %w", err)
		}
		e.Kind = worker.EventKind(kind)
		e.CreatedAt = time.Unix(0, created)
		events = append(events, e)
	}
	return events, rows.Err()
}

// Prune deletes events older than cutoff and returns how many were removed.
func (s *HistoryStore) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.Conn().ExecContext(ctx, "DELETE FROM worker_events WHERE created_at < ?", cutoff.UnixNano())
	if err != nil {
		return 0, fmt.Errorf("failed to prune worker events: %w", err)
	}
	return res.RowsAffected()
}
