package storage

import (
	"context"
	"database/sql"
	"fmt"
)

// ChangeEventStore is the drainable queue handed to the downstream trigger
// consumer: list what is pending, consume by id. Delivery is at-most-once
// with no replay; consuming deletes the row.
type ChangeEventStore interface {
	ListPending(ctx context.Context) ([]ChangeEvent, error)
	MarkConsumed(ctx context.Context, id int64) error
}

// EventRepo implements ChangeEventStore over SQLite.
type EventRepo struct {
	db *sql.DB
}

// NewEventRepo creates a new EventRepo.
func NewEventRepo(db *sql.DB) *EventRepo {
	return &EventRepo{db: db}
}

// ListPending returns unconsumed change events, oldest first.
func (r *EventRepo) ListPending(ctx context.Context) ([]ChangeEvent, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT id, source_id, diff, change_score, created_at FROM change_events WHERE consumed = 0 ORDER BY created_at ASC, id ASC",
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query change events: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var events []ChangeEvent
	for rows.Next() {
		var ev ChangeEvent
		if err := rows.Scan(&ev.ID, &ev.SourceID, &ev.Diff, &ev.ChangeScore, &ev.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan change event: %w", err)
		}
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return events, nil
}

// MarkConsumed deletes the event. Returns ErrNotFound if the id does not
// exist, which a consumer sees when it tries to consume an event twice.
func (r *EventRepo) MarkConsumed(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, "DELETE FROM change_events WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete change event: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}
