package profile

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/hanseplat/userhub/internal/db"
	"github.com/hanseplat/userhub/internal/realtime"
	"github.com/hanseplat/userhub/internal/result"
)

// Store manages persistence of user profiles.
type Store struct {
	db      *db.DB
	hub     *realtime.Hub
	enabled bool
	log     *zap.Logger
}

// NewStore creates a new profile store. When enabled is false every
// operation fails fast with an unavailable error before touching the DB.
func NewStore(database *db.DB, hub *realtime.Hub, enabled bool, log *zap.Logger) *Store {
	return &Store{db: database, hub: hub, enabled: enabled, log: log}
}

func (s *Store) unavailable() error {
	return result.Errf(result.KindUnavailable, "profile store is disabled")
}

// Get retrieves a profile by uid.
func (s *Store) Get(ctx context.Context, uid string) (*Profile, error) {
	if !s.enabled {
		return nil, s.unavailable()
	}

	var p Profile
	var prefs, history string
	err := s.db.QueryRowContext(ctx,
		`SELECT uid, type, focus, explanation, confidence, preferences, history, version, created_at, updated_at
		 FROM user_profiles WHERE uid = ?`, uid,
	).Scan(&p.UID, &p.Type, &p.Focus, &p.Explanation, &p.Confidence, &prefs, &history, &p.Version, &p.CreatedAt, &p.UpdatedAt)

	if err == sql.ErrNoRows {
		return nil, result.Errf(result.KindNotFound, fmt.Sprintf("profile not found: %s", uid))
	}
	if err != nil {
		return nil, fmt.Errorf("getting profile: %w", err)
	}

	if err := json.Unmarshal([]byte(prefs), &p.Preferences); err != nil {
		return nil, fmt.Errorf("decoding preferences: %w", err)
	}
	if err := json.Unmarshal([]byte(history), &p.History); err != nil {
		return nil, fmt.Errorf("decoding history: %w", err)
	}
	return &p, nil
}

// Save upserts a profile: an update first, falling back to create when the
// uid does not exist yet. Timestamps are stamped on every write path.
func (s *Store) Save(ctx context.Context, p *Profile) (*Profile, error) {
	if !s.enabled {
		return nil, s.unavailable()
	}
	if p.UID == "" {
		return nil, result.Errf(result.KindInvalid, "uid is required")
	}

	prefs, err := json.Marshal(p.Preferences)
	if err != nil {
		return nil, fmt.Errorf("encoding preferences: %w", err)
	}
	history, err := json.Marshal(p.History)
	if err != nil {
		return nil, fmt.Errorf("encoding history: %w", err)
	}

	now := time.Now().UTC()
	p.UpdatedAt = now

	res, err := s.db.ExecContext(ctx,
		`UPDATE user_profiles SET type = ?, focus = ?, explanation = ?, confidence = ?, preferences = ?, history = ?, version = ?, updated_at = ?
		 WHERE uid = ?`,
		p.Type, p.Focus, p.Explanation, p.Confidence, string(prefs), string(history), p.Version, now, p.UID,
	)
	if err != nil {
		return nil, fmt.Errorf("updating profile: %w", err)
	}

	n, _ := res.RowsAffected()
	if n == 0 {
		p.CreatedAt = now
		_, err = s.db.ExecContext(ctx,
			`INSERT INTO user_profiles (uid, type, focus, explanation, confidence, preferences, history, version, created_at, updated_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			p.UID, p.Type, p.Focus, p.Explanation, p.Confidence, string(prefs), string(history), p.Version, now, now,
		)
		if err != nil {
			return nil, fmt.Errorf("creating profile: %w", err)
		}
	} else {
		// Keep the stored creation time on the returned entity.
		var createdAt time.Time
		if err := s.db.QueryRowContext(ctx,
			`SELECT created_at FROM user_profiles WHERE uid = ?`, p.UID,
		).Scan(&createdAt); err == nil {
			p.CreatedAt = createdAt
		}
	}

	s.hub.Publish(realtime.Event{Type: realtime.EventProfile, UserID: p.UID, Entity: p})
	return p, nil
}

// ApplyUpdate performs a partial update of the fields set in u.
func (s *Store) ApplyUpdate(ctx context.Context, uid string, u Update) (*Profile, error) {
	if !s.enabled {
		return nil, s.unavailable()
	}

	query := `UPDATE user_profiles SET updated_at = ?`
	args := []interface{}{time.Now().UTC()}

	if u.Type != nil {
		query += ", type = ?"
		args = append(args, *u.Type)
	}
	if u.Focus != nil {
		query += ", focus = ?"
		args = append(args, *u.Focus)
	}
	if u.Explanation != nil {
		query += ", explanation = ?"
		args = append(args, *u.Explanation)
	}
	if u.Confidence != nil {
		query += ", confidence = ?"
		args = append(args, *u.Confidence)
	}
	if u.Version != nil {
		query += ", version = ?"
		args = append(args, *u.Version)
	}
	if u.Preferences != nil {
		data, err := json.Marshal(u.Preferences)
		if err != nil {
			return nil, fmt.Errorf("encoding preferences: %w", err)
		}
		query += ", preferences = ?"
		args = append(args, string(data))
	}
	if u.History != nil {
		data, err := json.Marshal(u.History)
		if err != nil {
			return nil, fmt.Errorf("encoding history: %w", err)
		}
		query += ", history = ?"
		args = append(args, string(data))
	}

	query += " WHERE uid = ?"
	args = append(args, uid)

	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("updating profile: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return nil, result.Errf(result.KindNotFound, fmt.Sprintf("profile not found: %s", uid))
	}

	p, err := s.Get(ctx, uid)
	if err != nil {
		return nil, err
	}
	s.hub.Publish(realtime.Event{Type: realtime.EventProfile, UserID: uid, Entity: p})
	return p, nil
}

// Delete erases a profile on explicit user request (LGPD erasure).
func (s *Store) Delete(ctx context.Context, uid string) error {
	if !s.enabled {
		return s.unavailable()
	}

	res, err := s.db.ExecContext(ctx, `DELETE FROM user_profiles WHERE uid = ?`, uid)
	if err != nil {
		return fmt.Errorf("deleting profile: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return result.Errf(result.KindNotFound, fmt.Sprintf("profile not found: %s", uid))
	}

	s.log.Info("profile erased", zap.String("uid", uid))
	s.hub.Publish(realtime.Event{Type: realtime.EventProfile, UserID: uid, Entity: nil})
	return nil
}
