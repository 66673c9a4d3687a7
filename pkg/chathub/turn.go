package chathub

import (
	"time"
)

// Role identifies who produced a turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Turn is a single message within a conversation. Turns are immutable once
// appended; the store assigns Seq and Timestamp at append time.
type Turn struct {
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Model     string    `json:"model,omitempty"`
	Seq       int       `json:"seq"`
	Timestamp time.Time `json:"timestamp"`
}

// Conversation holds the ordered dialogue for one conversation id. All
// mutation and reads of the turn sequence go through the store so locking
// stays in one place.
type Conversation struct {
	ID        string
	CreatedAt time.Time

	turns []Turn
}
