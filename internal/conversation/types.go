package conversation

import "time"

// Role identifies who authored a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// Message is one exchange inside a conversation. IDs are ULIDs so the
// natural sort order matches insertion order.
type Message struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversation_id"`
	Role           Role      `json:"role"`
	Content        string    `json:"content"`
	CreatedAt      time.Time `json:"created_at"`
}

// Conversation is an ordered exchange of messages owned by one user.
// MessageCount always equals the stored message sequence length.
type Conversation struct {
	ID           string    `json:"id"`
	UserID       string    `json:"user_id"`
	Title        string    `json:"title"`
	Persona      string    `json:"persona"` // chat persona the exchange ran under
	MessageCount int       `json:"message_count"`
	LastActivity time.Time `json:"last_activity"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
	Messages     []Message `json:"messages,omitempty"`
}

// Page bounds a conversation listing.
type Page struct {
	Limit  int
	Offset int
}
