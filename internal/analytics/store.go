// Package analytics keeps an append-only log of platform usage events.
package analytics

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/hanseplat/userhub/internal/db"
)

// Event is one recorded usage event. Payload is free-form JSON owned by
// the emitting feature.
type Event struct {
	ID        string          `json:"id"`
	UserID    string          `json:"user_id,omitempty"`
	Type      string          `json:"type"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}

// Store appends and queries analytics events.
type Store struct {
	db *db.DB
}

// NewStore creates a Store backed by the given database.
func NewStore(database *db.DB) *Store {
	return &Store{db: database}
}

// Record appends one event. Missing ids and timestamps are filled in;
// events are never updated afterwards.
func (s *Store) Record(ctx context.Context, e Event) (Event, error) {
	if e.Type == "" {
		return e, fmt.Errorf("recording event: type is required")
	}
	if e.ID == "" {
		e.ID = ulid.Make().String()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	if len(e.Payload) == 0 {
		e.Payload = json.RawMessage(`{}`)
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO analytics_events (id, user_id, type, payload, created_at) VALUES (?, ?, ?, ?, ?)`,
		e.ID, e.UserID, e.Type, string(e.Payload), e.CreatedAt,
	)
	if err != nil {
		return e, fmt.Errorf("inserting event: %w", err)
	}
	return e, nil
}

// Filter controls which events List returns.
type Filter struct {
	UserID string
	Type   string
	Since  *time.Time
	Limit  int
	Offset int
}

// List returns events matching the filter, newest first.
func (s *Store) List(ctx context.Context, filter Filter) ([]Event, error) {
	var (
		clauses []string
		args    []any
	)

	if filter.UserID != "" {
		clauses = append(clauses, "user_id = ?")
		args = append(args, filter.UserID)
	}
	if filter.Type != "" {
		clauses = append(clauses, "type = ?")
		args = append(args, filter.Type)
	}
	if filter.Since != nil {
		clauses = append(clauses, "created_at >= ?")
		args = append(args, filter.Since.UTC())
	}

	query := "SELECT id, user_id, type, payload, created_at FROM analytics_events"
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += " ORDER BY id DESC"
	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", filter.Limit)
	}
	if filter.Offset > 0 {
		query += fmt.Sprintf(" OFFSET %d", filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying events: %w", err)
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var e Event
		var payload string
		if err := rows.Scan(&e.ID, &e.UserID, &e.Type, &payload, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning event: %w", err)
		}
		e.Payload = json.RawMessage(payload)
		events = append(events, e)
	}
	return events, rows.Err()
}

// CountsByType aggregates event counts per type since the given time.
func (s *Store) CountsByType(ctx context.Context, since time.Time) (map[string]int, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT type, COUNT(*) FROM analytics_events WHERE created_at >= ? GROUP BY type`,
		since.UTC(),
	)
	if err != nil {
		return nil, fmt.Errorf("counting events: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var typ string
		var n int
		if err := rows.Scan(&typ, &n); err != nil {
			return nil, fmt.Errorf("scanning event count: %w", err)
		}
		counts[typ] = n
	}
	return counts, rows.Err()
}
