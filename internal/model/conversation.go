package model

import (
	"time"
)

// Role represents the role of a message sender.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Opposite returns the other conversational role. The thread walk alternates
// between user and assistant turns.
func (r Role) Opposite() Role {
	if r == RoleUser {
		return RoleAssistant
	}
	return RoleUser
}

// Conversation groups a tree of messages under a user-visible title derived
// from the first question.
type Conversation struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Message is a single turn in a conversation. Messages form a forest via
// ParentID: root messages have a nil parent, and messages sharing the same
// (parent, role) pair are siblings, i.e. alternate edited versions of one turn.
// A message is immutable once created; edits add siblings.
type Message struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversation_id"`
	Role           Role      `json:"role"`
	Content        string    `json:"content"`
	ParentID       *string   `json:"parent_id"`
	CreatedAt      time.Time `json:"created_at"`
}

// ThreadMessage is a message annotated with its position among siblings,
// as returned by thread and sibling queries.
type ThreadMessage struct {
	Message
	SiblingCount int `json:"sibling_count"`
	SiblingIndex int `json:"sibling_index"` // 1-based
}

// SavedMessageRef is the lightweight reference reported to the stream once a
// message has been persisted.
type SavedMessageRef struct {
	ID           string  `json:"id"`
	ParentID     *string `json:"parent_id"`
	SiblingCount int     `json:"sibling_count"`
	SiblingIndex int     `json:"sibling_index"`
}
