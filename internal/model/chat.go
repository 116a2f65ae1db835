package model

import "time"

// Chat is a conversation thread owned by a user.
// Chats are listed most recently updated first.
type Chat struct {
	ID           string         `json:"id"`
	UserID       string         `json:"user_id"`
	ProjectID    *string        `json:"project_id,omitempty"`
	Title        string         `json:"title"`
	Metadata     map[string]any `json:"metadata"`
	MessageCount int64          `json:"message_count"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
}

// Role identifies the author of a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// ValidRoles lists every accepted message role.
var ValidRoles = []Role{RoleUser, RoleAssistant, RoleSystem}

// IsValid reports whether r is a known role.
func (r Role) IsValid() bool {
	switch r {
	case RoleUser, RoleAssistant, RoleSystem:
		return true
	}
	return false
}

// Message is a single entry in a chat. Messages are ordered oldest first.
type Message struct {
	ID        string    `json:"id"`
	ChatID    string    `json:"chat_id"`
	UserID    string    `json:"user_id"`
	Content   string    `json:"content"`
	Role      Role      `json:"role"`
	Tokens    int       `json:"tokens"`
	CreatedAt time.Time `json:"created_at"`
}
