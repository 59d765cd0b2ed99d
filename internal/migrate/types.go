package migrate

import (
	"encoding/json"
	"fmt"

	"github.com/hanseplat/userhub/internal/conversation"
	"github.com/hanseplat/userhub/internal/feedback"
	"github.com/hanseplat/userhub/internal/profile"
)

// Item is one legacy record to migrate. The interface is sealed so the
// dispatch switch in the engine stays exhaustive.
type Item interface {
	ItemID() string
	item()
}

// ProfileItem migrates a legacy user profile.
type ProfileItem struct {
	Profile profile.Profile `json:"profile"`
}

func (i ProfileItem) ItemID() string { return i.Profile.UID }
func (ProfileItem) item()            {}

// ConversationItem migrates a legacy conversation with its messages.
type ConversationItem struct {
	Conversation conversation.Conversation `json:"conversation"`
}

func (i ConversationItem) ItemID() string { return i.Conversation.ID }
func (ConversationItem) item()            {}

// FeedbackItem migrates a legacy feedback record.
type FeedbackItem struct {
	Feedback feedback.Feedback `json:"feedback"`
}

func (i FeedbackItem) ItemID() string { return i.Feedback.ID }
func (FeedbackItem) item()            {}

// ItemError records one failed item in a batch.
type ItemError struct {
	ItemID string `json:"item_id"`
	Error  string `json:"error"`
}

// Result accumulates the outcome of a best-effort batch: successes commit,
// failures are reported per item, nothing is rolled back.
type Result struct {
	Successful int         `json:"successful"`
	Failed     int         `json:"failed"`
	Errors     []ItemError `json:"errors"`
}

// rawItem is the legacy wire shape: a type discriminant plus the payload.
type rawItem struct {
	Type string `json:"type"`
	ID   string `json:"id"`
}

// DecodeItem parses one legacy record. The discriminant chooses the
// concrete item type; unknown discriminants are an error.
func DecodeItem(data json.RawMessage) (Item, error) {
	var raw rawItem
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decoding item header: %w", err)
	}

	switch raw.Type {
	case "profile":
		var i ProfileItem
		if err := json.Unmarshal(data, &i); err != nil {
			return nil, fmt.Errorf("decoding profile item: %w", err)
		}
		return i, nil
	case "conversation":
		var i ConversationItem
		if err := json.Unmarshal(data, &i); err != nil {
			return nil, fmt.Errorf("decoding conversation item: %w", err)
		}
		return i, nil
	case "feedback":
		var i FeedbackItem
		if err := json.Unmarshal(data, &i); err != nil {
			return nil, fmt.Errorf("decoding feedback item: %w", err)
		}
		return i, nil
	default:
		return nil, fmt.Errorf("unknown item type %q (id %s)", raw.Type, raw.ID)
	}
}
