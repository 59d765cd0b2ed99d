package conversation

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"

	"github.com/hanseplat/userhub/internal/db"
	"github.com/hanseplat/userhub/internal/realtime"
	"github.com/hanseplat/userhub/internal/result"
)

// Store manages persistence of conversations and their messages.
type Store struct {
	db      *db.DB
	hub     *realtime.Hub
	enabled bool
	log     *zap.Logger
}

// NewStore creates a new conversation store.
func NewStore(database *db.DB, hub *realtime.Hub, enabled bool, log *zap.Logger) *Store {
	return &Store{db: database, hub: hub, enabled: enabled, log: log}
}

func (s *Store) unavailable() error {
	return result.Errf(result.KindUnavailable, "conversation store is disabled")
}

// Get retrieves a conversation with its full message sequence.
func (s *Store) Get(ctx context.Context, id string) (*Conversation, error) {
	if !s.enabled {
		return nil, s.unavailable()
	}

	var c Conversation
	err := s.db.QueryRowContext(ctx,
		`SELECT id, user_id, title, persona, message_count, last_activity, created_at, updated_at
		 FROM conversations WHERE id = ?`, id,
	).Scan(&c.ID, &c.UserID, &c.Title, &c.Persona, &c.MessageCount, &c.LastActivity, &c.CreatedAt, &c.UpdatedAt)

	if err == sql.ErrNoRows {
		return nil, result.Errf(result.KindNotFound, fmt.Sprintf("conversation not found: %s", id))
	}
	if err != nil {
		return nil, fmt.Errorf("getting conversation: %w", err)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, conversation_id, role, content, created_at
		 FROM conversation_messages WHERE conversation_id = ? ORDER BY id`, id,
	)
	if err != nil {
		return nil, fmt.Errorf("loading messages: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var m Message
		if err := rows.Scan(&m.ID, &m.ConversationID, &m.Role, &m.Content, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning message: %w", err)
		}
		c.Messages = append(c.Messages, m)
	}
	return &c, rows.Err()
}

// Save upserts conversation metadata. Messages are appended separately so
// the message_count invariant stays with the message writes.
func (s *Store) Save(ctx context.Context, c *Conversation) (*Conversation, error) {
	if !s.enabled {
		return nil, s.unavailable()
	}
	if c.UserID == "" {
		return nil, result.Errf(result.KindInvalid, "user_id is required")
	}
	if c.ID == "" {
		c.ID = uuid.New().String()
	}

	now := time.Now().UTC()
	c.UpdatedAt = now
	if c.LastActivity.IsZero() {
		c.LastActivity = now
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE conversations SET title = ?, persona = ?, last_activity = ?, updated_at = ?
		 WHERE id = ?`,
		c.Title, c.Persona, c.LastActivity, now, c.ID,
	)
	if err != nil {
		return nil, fmt.Errorf("updating conversation: %w", err)
	}

	n, _ := res.RowsAffected()
	if n == 0 {
		c.CreatedAt = now
		c.MessageCount = 0
		_, err = s.db.ExecContext(ctx,
			`INSERT INTO conversations (id, user_id, title, persona, message_count, last_activity, created_at, updated_at)
			 VALUES (?, ?, ?, ?, 0, ?, ?, ?)`,
			c.ID, c.UserID, c.Title, c.Persona, c.LastActivity, now, now,
		)
		if err != nil {
			return nil, fmt.Errorf("creating conversation: %w", err)
		}
	}

	s.hub.Publish(realtime.Event{Type: realtime.EventConversation, UserID: c.UserID, Entity: c})
	return c, nil
}

// AppendMessage adds a message and re-derives message_count from the stored
// sequence in the same transaction, keeping the count invariant.
func (s *Store) AppendMessage(ctx context.Context, conversationID string, role Role, content string) (*Message, error) {
	if !s.enabled {
		return nil, s.unavailable()
	}

	var userID string
	err := s.db.QueryRowContext(ctx,
		`SELECT user_id FROM conversations WHERE id = ?`, conversationID,
	).Scan(&userID)
	if err == sql.ErrNoRows {
		return nil, result.Errf(result.KindNotFound, fmt.Sprintf("conversation not found: %s", conversationID))
	}
	if err != nil {
		return nil, fmt.Errorf("looking up conversation: %w", err)
	}

	m := &Message{
		ID:             ulid.Make().String(),
		ConversationID: conversationID,
		Role:           role,
		Content:        content,
		CreatedAt:      time.Now().UTC(),
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO conversation_messages (id, conversation_id, role, content, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		m.ID, m.ConversationID, m.Role, m.Content, m.CreatedAt,
	); err != nil {
		return nil, fmt.Errorf("inserting message: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE conversations
		 SET message_count = (SELECT COUNT(*) FROM conversation_messages WHERE conversation_id = ?),
		     last_activity = ?, updated_at = ?
		 WHERE id = ?`,
		conversationID, m.CreatedAt, m.CreatedAt, conversationID,
	); err != nil {
		return nil, fmt.Errorf("updating message count: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing message: %w", err)
	}

	if c, err := s.Get(ctx, conversationID); err == nil {
		s.hub.Publish(realtime.Event{Type: realtime.EventConversation, UserID: userID, Entity: c})
	}
	return m, nil
}

// ListByUser returns a page of the user's conversations ordered by
// last activity, most recent first. Messages are not loaded.
func (s *Store) ListByUser(ctx context.Context, userID string, page Page) ([]Conversation, error) {
	if !s.enabled {
		return nil, s.unavailable()
	}

	query := `SELECT id, user_id, title, persona, message_count, last_activity, created_at, updated_at
		 FROM conversations WHERE user_id = ? ORDER BY last_activity DESC`
	args := []interface{}{userID}

	if page.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, page.Limit)
	} else if page.Offset > 0 {
		// SQLite requires a LIMIT clause before OFFSET; -1 means unbounded.
		query += " LIMIT -1"
	}
	if page.Offset > 0 {
		query += " OFFSET ?"
		args = append(args, page.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing conversations: %w", err)
	}
	defer rows.Close()

	var out []Conversation
	for rows.Next() {
		var c Conversation
		if err := rows.Scan(&c.ID, &c.UserID, &c.Title, &c.Persona, &c.MessageCount, &c.LastActivity, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scanning conversation: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// CountByUser returns how many conversations the user holds.
func (s *Store) CountByUser(ctx context.Context, userID string) (int, error) {
	if !s.enabled {
		return 0, s.unavailable()
	}

	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM conversations WHERE user_id = ?`, userID,
	).Scan(&count)
	return count, err
}

// Delete removes a conversation and, via cascade, its messages.
func (s *Store) Delete(ctx context.Context, id string) error {
	if !s.enabled {
		return s.unavailable()
	}

	var userID string
	if err := s.db.QueryRowContext(ctx,
		`SELECT user_id FROM conversations WHERE id = ?`, id,
	).Scan(&userID); err == sql.ErrNoRows {
		return result.Errf(result.KindNotFound, fmt.Sprintf("conversation not found: %s", id))
	} else if err != nil {
		return fmt.Errorf("looking up conversation: %w", err)
	}

	if _, err := s.db.ExecContext(ctx, `DELETE FROM conversations WHERE id = ?`, id); err != nil {
		return fmt.Errorf("deleting conversation: %w", err)
	}

	s.hub.Publish(realtime.Event{Type: realtime.EventConversation, UserID: userID, Entity: nil})
	return nil
}
