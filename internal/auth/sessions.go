package auth

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/hanseplat/userhub/internal/db"
)

// Session is one authenticated user's presence record.
type Session struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
	LastSeen  time.Time `json:"last_seen"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Sessions persists session records.
type Sessions struct {
	db *db.DB
}

// NewSessions creates a session store over the given database.
func NewSessions(database *db.DB) *Sessions {
	return &Sessions{db: database}
}

// Create opens a new session for the user, expiring with the token.
func (s *Sessions) Create(ctx context.Context, userID string) (*Session, error) {
	now := time.Now().UTC()
	sess := &Session{
		ID:        uuid.New().String(),
		UserID:    userID,
		CreatedAt: now,
		LastSeen:  now,
		ExpiresAt: now.Add(tokenLifetime),
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO sessions (id, user_id, created_at, last_seen, expires_at) VALUES (?, ?, ?, ?, ?)`,
		sess.ID, sess.UserID, sess.CreatedAt, sess.LastSeen, sess.ExpiresAt,
	)
	if err != nil {
		return nil, fmt.Errorf("creating session: %w", err)
	}
	return sess, nil
}

// Touch bumps last_seen on the user's live session, opening one if none
// exists.
func (s *Sessions) Touch(ctx context.Context, userID string) error {
	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx,
		`UPDATE sessions SET last_seen = ? WHERE user_id = ? AND expires_at > ?`,
		now, userID, now,
	)
	if err != nil {
		return fmt.Errorf("touching session: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("touching session: %w", err)
	}
	if affected == 0 {
		_, err = s.Create(ctx, userID)
		return err
	}
	return nil
}

// Get fetches one session by id. Missing sessions return nil.
func (s *Sessions) Get(ctx context.Context, id string) (*Session, error) {
	var sess Session
	err := s.db.QueryRowContext(ctx,
		`SELECT id, user_id, created_at, last_seen, expires_at FROM sessions WHERE id = ?`, id,
	).Scan(&sess.ID, &sess.UserID, &sess.CreatedAt, &sess.LastSeen, &sess.ExpiresAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting session %s: %w", id, err)
	}
	return &sess, nil
}

// ActiveCount reports how many sessions are currently unexpired.
func (s *Sessions) ActiveCount(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM sessions WHERE expires_at > ?`, time.Now().UTC(),
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("counting active sessions: %w", err)
	}
	return n, nil
}

// DeleteExpired removes sessions past their expiry, returning the count.
func (s *Sessions) DeleteExpired(ctx context.Context) (int, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM sessions WHERE expires_at <= ?`, time.Now().UTC(),
	)
	if err != nil {
		return 0, fmt.Errorf("deleting expired sessions: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("deleting expired sessions: %w", err)
	}
	return int(n), nil
}
