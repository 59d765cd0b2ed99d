package migrate

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"

	"github.com/hanseplat/userhub/internal/db"
)

// Engine applies legacy record batches straight to the database so the
// whole batch commits in one transaction at the end.
type Engine struct {
	db  *db.DB
	log *zap.Logger
}

// NewEngine creates a migration engine.
func NewEngine(database *db.DB, log *zap.Logger) *Engine {
	return &Engine{db: database, log: log}
}

// Migrate applies the items for one user. A single item's failure is
// recorded and the remaining items continue; the successes commit together
// at the end. Partial success is the contract, not an error.
func (e *Engine) Migrate(ctx context.Context, userID string, items []Item) (Result, error) {
	var res Result

	tx, err := e.db.BeginTx(ctx, nil)
	if err != nil {
		return res, fmt.Errorf("beginning migration transaction: %w", err)
	}
	defer tx.Rollback()

	for _, item := range items {
		if err := e.applyItem(ctx, tx, userID, item); err != nil {
			res.Failed++
			res.Errors = append(res.Errors, ItemError{ItemID: item.ItemID(), Error: err.Error()})
			continue
		}
		res.Successful++
	}

	if err := tx.Commit(); err != nil {
		return res, fmt.Errorf("committing migration: %w", err)
	}

	e.log.Info("migration batch applied",
		zap.String("user_id", userID),
		zap.Int("successful", res.Successful),
		zap.Int("failed", res.Failed))
	return res, nil
}

// MigrateRaw decodes and applies legacy wire records. Records that fail to
// decode count as failed items alongside write failures.
func (e *Engine) MigrateRaw(ctx context.Context, userID string, raw []json.RawMessage) (Result, error) {
	var items []Item
	var res Result

	for n, data := range raw {
		item, err := DecodeItem(data)
		if err != nil {
			res.Failed++
			res.Errors = append(res.Errors, ItemError{ItemID: fmt.Sprintf("item[%d]", n), Error: err.Error()})
			continue
		}
		items = append(items, item)
	}

	applied, err := e.Migrate(ctx, userID, items)
	if err != nil {
		return res, err
	}

	res.Successful = applied.Successful
	res.Failed += applied.Failed
	res.Errors = append(res.Errors, applied.Errors...)
	return res, nil
}

func (e *Engine) applyItem(ctx context.Context, tx *sql.Tx, userID string, item Item) error {
	switch it := item.(type) {
	case ProfileItem:
		return e.applyProfile(ctx, tx, userID, it)
	case ConversationItem:
		return e.applyConversation(ctx, tx, userID, it)
	case FeedbackItem:
		return e.applyFeedback(ctx, tx, userID, it)
	default:
		return fmt.Errorf("unhandled item type %T", item)
	}
}

func (e *Engine) applyProfile(ctx context.Context, tx *sql.Tx, userID string, item ProfileItem) error {
	p := item.Profile
	p.UID = userID

	prefs, err := json.Marshal(p.Preferences)
	if err != nil {
		return fmt.Errorf("encoding preferences: %w", err)
	}
	history, err := json.Marshal(p.History)
	if err != nil {
		return fmt.Errorf("encoding history: %w", err)
	}

	now := time.Now().UTC()
	_, err = tx.ExecContext(ctx,
		`INSERT INTO user_profiles (uid, type, focus, explanation, confidence, preferences, history, version, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(uid) DO UPDATE SET
		     type = excluded.type, focus = excluded.focus, explanation = excluded.explanation,
		     confidence = excluded.confidence, preferences = excluded.preferences,
		     history = excluded.history, version = excluded.version, updated_at = excluded.updated_at`,
		p.UID, p.Type, p.Focus, p.Explanation, p.Confidence, string(prefs), string(history), p.Version, now, now,
	)
	if err != nil {
		return fmt.Errorf("migrating profile: %w", err)
	}
	return nil
}

func (e *Engine) applyConversation(ctx context.Context, tx *sql.Tx, userID string, item ConversationItem) error {
	c := item.Conversation
	c.UserID = userID
	if c.ID == "" {
		c.ID = uuid.New().String()
	}

	now := time.Now().UTC()
	lastActivity := c.LastActivity
	if lastActivity.IsZero() {
		lastActivity = now
	}

	// message_count derives from the migrated sequence, never from the
	// legacy record's own counter.
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO conversations (id, user_id, title, persona, message_count, last_activity, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		     title = excluded.title, persona = excluded.persona,
		     message_count = excluded.message_count, last_activity = excluded.last_activity,
		     updated_at = excluded.updated_at`,
		c.ID, c.UserID, c.Title, c.Persona, len(c.Messages), lastActivity, now, now,
	); err != nil {
		return fmt.Errorf("migrating conversation: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM conversation_messages WHERE conversation_id = ?`, c.ID,
	); err != nil {
		return fmt.Errorf("clearing migrated messages: %w", err)
	}

	for _, m := range c.Messages {
		if m.ID == "" {
			m.ID = ulid.Make().String()
		}
		if m.CreatedAt.IsZero() {
			m.CreatedAt = now
		}
		if m.Role == "" {
			m.Role = "user"
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO conversation_messages (id, conversation_id, role, content, created_at)
			 VALUES (?, ?, ?, ?, ?)`,
			m.ID, c.ID, m.Role, m.Content, m.CreatedAt,
		); err != nil {
			return fmt.Errorf("migrating message: %w", err)
		}
	}
	return nil
}

func (e *Engine) applyFeedback(ctx context.Context, tx *sql.Tx, userID string, item FeedbackItem) error {
	f := item.Feedback
	f.UserID = userID
	if f.ID == "" {
		f.ID = ulid.Make().String()
	}
	if f.Status == "" {
		f.Status = "pending"
	}
	if f.Category == "" {
		f.Category = "general"
	}
	if f.Rating < 0 || f.Rating > 5 {
		return fmt.Errorf("feedback %s: rating %d out of range", f.ID, f.Rating)
	}
	if f.CreatedAt.IsZero() {
		f.CreatedAt = time.Now().UTC()
	}

	_, err := tx.ExecContext(ctx,
		`INSERT INTO feedback (id, user_id, category, message, rating, status, created_at, resolved_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO NOTHING`,
		f.ID, f.UserID, f.Category, f.Message, f.Rating, f.Status, f.CreatedAt, f.ResolvedAt,
	)
	if err != nil {
		return fmt.Errorf("migrating feedback: %w", err)
	}
	return nil
}
