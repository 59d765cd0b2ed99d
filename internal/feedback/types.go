package feedback

import "time"

// Status is the lifecycle stage of a feedback record.
type Status string

const (
	StatusPending   Status = "pending"
	StatusResolved  Status = "resolved"
	StatusDismissed Status = "dismissed"
)

// Category groups what the feedback is about.
type Category string

const (
	CategoryGeneral       Category = "general"
	CategoryContent       Category = "content"
	CategoryAccessibility Category = "accessibility"
	CategoryBug           Category = "bug"
)

// Feedback is an immutable user-submitted record; only its status moves.
type Feedback struct {
	ID         string     `json:"id"`
	UserID     string     `json:"user_id"`
	Category   Category   `json:"category"`
	Message    string     `json:"message"`
	Rating     int        `json:"rating"` // 1-5, 0 when not given
	Status     Status     `json:"status"`
	CreatedAt  time.Time  `json:"created_at"`
	ResolvedAt *time.Time `json:"resolved_at,omitempty"`
}
