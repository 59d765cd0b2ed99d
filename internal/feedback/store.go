package feedback

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"

	"github.com/hanseplat/userhub/internal/db"
	"github.com/hanseplat/userhub/internal/result"
)

// Store manages persistence of feedback records.
type Store struct {
	db      *db.DB
	enabled bool
	log     *zap.Logger
}

// NewStore creates a new feedback store.
func NewStore(database *db.DB, enabled bool, log *zap.Logger) *Store {
	return &Store{db: database, enabled: enabled, log: log}
}

func (s *Store) unavailable() error {
	return result.Errf(result.KindUnavailable, "feedback store is disabled")
}

// Create records a new feedback entry with status pending.
func (s *Store) Create(ctx context.Context, f Feedback) (*Feedback, error) {
	if !s.enabled {
		return nil, s.unavailable()
	}
	if f.UserID == "" {
		return nil, result.Errf(result.KindInvalid, "user_id is required")
	}
	if f.Message == "" {
		return nil, result.Errf(result.KindInvalid, "message is required")
	}
	// Zero means no rating was given.
	if f.Rating < 0 || f.Rating > 5 {
		return nil, result.Errf(result.KindInvalid, "rating must be between 0 and 5")
	}

	f.ID = ulid.Make().String()
	f.Status = StatusPending
	if f.Category == "" {
		f.Category = CategoryGeneral
	}
	f.CreatedAt = time.Now().UTC()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO feedback (id, user_id, category, message, rating, status, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		f.ID, f.UserID, f.Category, f.Message, f.Rating, f.Status, f.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("inserting feedback: %w", err)
	}
	return &f, nil
}

// Get retrieves one feedback record.
func (s *Store) Get(ctx context.Context, id string) (*Feedback, error) {
	if !s.enabled {
		return nil, s.unavailable()
	}

	var f Feedback
	var resolvedAt sql.NullTime
	err := s.db.QueryRowContext(ctx,
		`SELECT id, user_id, category, message, rating, status, created_at, resolved_at
		 FROM feedback WHERE id = ?`, id,
	).Scan(&f.ID, &f.UserID, &f.Category, &f.Message, &f.Rating, &f.Status, &f.CreatedAt, &resolvedAt)

	if err == sql.ErrNoRows {
		return nil, result.Errf(result.KindNotFound, fmt.Sprintf("feedback not found: %s", id))
	}
	if err != nil {
		return nil, fmt.Errorf("getting feedback: %w", err)
	}
	if resolvedAt.Valid {
		f.ResolvedAt = &resolvedAt.Time
	}
	return &f, nil
}

// ListByUser returns a user's feedback, newest first.
func (s *Store) ListByUser(ctx context.Context, userID string) ([]Feedback, error) {
	if !s.enabled {
		return nil, s.unavailable()
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, user_id, category, message, rating, status, created_at, resolved_at
		 FROM feedback WHERE user_id = ? ORDER BY id DESC`, userID,
	)
	if err != nil {
		return nil, fmt.Errorf("listing feedback: %w", err)
	}
	defer rows.Close()

	var out []Feedback
	for rows.Next() {
		var f Feedback
		var resolvedAt sql.NullTime
		if err := rows.Scan(&f.ID, &f.UserID, &f.Category, &f.Message, &f.Rating, &f.Status, &f.CreatedAt, &resolvedAt); err != nil {
			return nil, fmt.Errorf("scanning feedback: %w", err)
		}
		if resolvedAt.Valid {
			f.ResolvedAt = &resolvedAt.Time
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

// SetStatus moves a record to resolved or dismissed.
func (s *Store) SetStatus(ctx context.Context, id string, status Status) error {
	if !s.enabled {
		return s.unavailable()
	}
	if status != StatusResolved && status != StatusDismissed {
		return result.Errf(result.KindInvalid, fmt.Sprintf("invalid target status: %s", status))
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE feedback SET status = ?, resolved_at = ? WHERE id = ? AND status = ?`,
		status, time.Now().UTC(), id, StatusPending,
	)
	if err != nil {
		return fmt.Errorf("updating feedback status: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return result.Errf(result.KindNotFound, fmt.Sprintf("pending feedback not found: %s", id))
	}
	return nil
}

// Delete removes a user's feedback record (LGPD erasure path).
func (s *Store) Delete(ctx context.Context, id string) error {
	if !s.enabled {
		return s.unavailable()
	}

	res, err := s.db.ExecContext(ctx, `DELETE FROM feedback WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting feedback: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return result.Errf(result.KindNotFound, fmt.Sprintf("feedback not found: %s", id))
	}
	return nil
}
