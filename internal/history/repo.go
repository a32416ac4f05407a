package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/opspulse/pulsefeed/internal/model"
)

// Repository provides data access for published events.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a new Repository.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// Insert records a published event.
func (r *Repository) Insert(ctx context.Context, rec *model.EventRecord) error {
	query := `
		INSERT INTO events (id, room, event, payload, received_at)
		VALUES (?, ?, ?, ?, ?)
	`

	var payload sql.NullString
	if len(rec.Payload) > 0 {
		payload = sql.NullString{String: string(rec.Payload), Valid: true}
	}

	_, err := r.db.ExecContext(ctx, query,
		rec.ID,
		rec.Room,
		rec.Event,
		payload,
		rec.ReceivedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert event: %w", err)
	}

	return nil
}

// Query filters the listing operations. Zero values mean "no filter";
// a non-positive limit defaults to 100.
type Query struct {
	Room  string
	Event string
	Limit int
}

// List retrieves events matching the query, newest first.
func (r *Repository) List(ctx context.Context, q Query) ([]*model.EventRecord, error) {
	query := `
		SELECT id, room, event, payload, received_at
		FROM events
		WHERE 1=1
	`
	args := []any{}

	if q.Room != "" {
		query += " AND room = ?"
		args = append(args, q.Room)
	}
	if q.Event != "" {
		query += " AND event = ?"
		args = append(args, q.Event)
	}

	limit := q.Limit
	if limit <= 0 {
		limit = 100
	}
	query += " ORDER BY received_at DESC, id LIMIT ?"
	args = append(args, limit)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list events: %w", err)
	}
	defer rows.Close()

	var records []*model.EventRecord
	for rows.Next() {
		rec := &model.EventRecord{}
		var payload sql.NullString

		if err := rows.Scan(&rec.ID, &rec.Room, &rec.Event, &payload, &rec.ReceivedAt); err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		if payload.Valid {
			rec.Payload = json.RawMessage(payload.String)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate events: %w", err)
	}

	return records, nil
}

// CountByRoom returns the number of stored events for a room.
func (r *Repository) CountByRoom(ctx context.Context, room string) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM events WHERE room = ?", room,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count events: %w", err)
	}
	return count, nil
}

// Prune deletes events received before the cutoff and returns how many were
// removed. The relay runs this periodically to bound the store.
func (r *Repository) Prune(ctx context.Context, before time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		"DELETE FROM events WHERE received_at < ?", before,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to prune events: %w", err)
	}
	return res.RowsAffected()
}
