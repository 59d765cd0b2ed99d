package conversation

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// CleanupOld trims a user's history to at most maxCount conversations,
// deleting the excess oldest-by-lastActivity in one batch. Returns the
// number deleted.
func (s *Store) CleanupOld(ctx context.Context, userID string, maxCount int) (int, error) {
	if !s.enabled {
		return 0, s.unavailable()
	}
	if maxCount < 0 {
		maxCount = 0
	}

	res, err := s.db.ExecContext(ctx,
		`DELETE FROM conversations WHERE id IN (
		     SELECT id FROM conversations WHERE user_id = ?
		     ORDER BY last_activity DESC LIMIT -1 OFFSET ?
		 )`, userID, maxCount,
	)
	if err != nil {
		return 0, fmt.Errorf("trimming conversations: %w", err)
	}

	n, _ := res.RowsAffected()
	if n > 0 {
		s.log.Info("trimmed conversation history",
			zap.String("user_id", userID),
			zap.Int64("deleted", n),
			zap.Int("max", maxCount))
	}
	return int(n), nil
}

// CleanupOlderThan deletes a user's conversations whose last activity is
// before cutoff. Returns the number deleted.
func (s *Store) CleanupOlderThan(ctx context.Context, userID string, cutoff time.Time) (int, error) {
	if !s.enabled {
		return 0, s.unavailable()
	}

	res, err := s.db.ExecContext(ctx,
		`DELETE FROM conversations WHERE user_id = ? AND last_activity < ?`,
		userID, cutoff,
	)
	if err != nil {
		return 0, fmt.Errorf("expiring conversations: %w", err)
	}

	n, _ := res.RowsAffected()
	if n > 0 {
		s.log.Info("expired conversation history",
			zap.String("user_id", userID),
			zap.Int64("deleted", n),
			zap.Time("cutoff", cutoff))
	}
	return int(n), nil
}

// SweepAll applies both retention bounds to every user with stored
// conversations. Used by the periodic sweep in the server and the cleanup
// CLI command. Returns the total number deleted.
func (s *Store) SweepAll(ctx context.Context, maxCount int, maxAge time.Duration) (int, error) {
	if !s.enabled {
		return 0, s.unavailable()
	}

	rows, err := s.db.QueryContext(ctx, `SELECT DISTINCT user_id FROM conversations`)
	if err != nil {
		return 0, fmt.Errorf("listing users: %w", err)
	}
	var users []string
	for rows.Next() {
		var u string
		if err := rows.Scan(&u); err != nil {
			rows.Close()
			return 0, fmt.Errorf("scanning user: %w", err)
		}
		users = append(users, u)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return 0, err
	}

	cutoff := time.Now().UTC().Add(-maxAge)
	total := 0
	for _, u := range users {
		if maxAge > 0 {
			n, err := s.CleanupOlderThan(ctx, u, cutoff)
			if err != nil {
				return total, err
			}
			total += n
		}
		if maxCount > 0 {
			n, err := s.CleanupOld(ctx, u, maxCount)
			if err != nil {
				return total, err
			}
			total += n
		}
	}
	return total, nil
}
