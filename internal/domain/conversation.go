package domain

import (
	"fmt"
	"time"
)

// MessageRole identifies the author of a message.
type MessageRole string

const (
	MessageRoleUser      MessageRole = "user"
	MessageRoleAssistant MessageRole = "assistant"
	MessageRoleSystem    MessageRole = "system"
)

const DefaultHistoryLimit = 20

// Conversation groups ordered messages under a session id.
type Conversation struct {
	ID        int64
	SessionID string
	Title     string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Message is one entry of a conversation log.
type Message struct {
	ID             int64
	ConversationID int64
	Role           MessageRole
	Content        string
	SourcesCount   int
	CreatedAt      time.Time
}

// ValidateMessage validates a Message instance
func ValidateMessage(m *Message) error {
	if m == nil {
		return fmt.Errorf("message cannot be nil")
	}

	if m.ConversationID == 0 {
		return fmt.Errorf("message ConversationID is required")
	}

	if !isValidMessageRole(m.Role) {
		return fmt.Errorf("message Role is invalid: %s", m.Role)
	}

	if m.Content == "" {
		return fmt.Errorf("message Content is required")
	}

	if m.SourcesCount < 0 {
		return fmt.Errorf("message SourcesCount cannot be negative")
	}

	return nil
}

func isValidMessageRole(r MessageRole) bool {
	switch r {
	case MessageRoleUser, MessageRoleAssistant, MessageRoleSystem:
		return true
	}
	return false
}
