package profile

import "time"

// Type classifies who the profile belongs to.
type Type string

const (
	TypeProfessional Type = "professional"
	TypePatient      Type = "patient"
	TypeCaregiver    Type = "caregiver"
	TypeStudent      Type = "student"
)

// Preferences holds per-user settings, including the LGPD consent flags.
type Preferences struct {
	Language           string `json:"language"`
	Theme              string `json:"theme"`
	Notifications      bool   `json:"notifications"`
	EmailUpdates       bool   `json:"email_updates"`
	LGPDConsent        bool   `json:"lgpd_consent"`
	DataSharingConsent bool   `json:"data_sharing_consent"`
}

// History summarises the user's activity on the platform.
type History struct {
	LastPersona        string     `json:"last_persona"`
	ConversationCount  int        `json:"conversation_count"`
	LastConversationAt *time.Time `json:"last_conversation_at,omitempty"`
	Topics             []string   `json:"topics,omitempty"`
}

// Profile is one user's profile. UID is immutable after creation.
type Profile struct {
	UID         string      `json:"uid"`
	Type        Type        `json:"type"`
	Focus       string      `json:"focus"`
	Explanation string      `json:"explanation"`
	Confidence  float64     `json:"confidence"` // 0-1, from the classification heuristic
	Preferences Preferences `json:"preferences"`
	History     History     `json:"history"`
	Version     string      `json:"version"`
	CreatedAt   time.Time   `json:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at"`
}

// Update describes a partial profile update; nil fields are left untouched.
type Update struct {
	Type        *Type        `json:"type,omitempty"`
	Focus       *string      `json:"focus,omitempty"`
	Explanation *string      `json:"explanation,omitempty"`
	Confidence  *float64     `json:"confidence,omitempty"`
	Preferences *Preferences `json:"preferences,omitempty"`
	History     *History     `json:"history,omitempty"`
	Version     *string      `json:"version,omitempty"`
}
