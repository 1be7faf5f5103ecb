package types

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

type MessageRole string

const (
	MESSAGE_ROLE_USER      MessageRole = "user"
	MESSAGE_ROLE_ASSISTANT MessageRole = "assistant"
	MESSAGE_ROLE_SYSTEM    MessageRole = "system"
)

type ChatMessage struct {
	ID              string          `json:"id" db:"id"`
	SessionID       string          `json:"session_id" db:"session_id"`
	Role            MessageRole     `json:"role" db:"role"`
	Content         string          `json:"content" db:"content"`
	ClientMessageID string          `json:"client_message_id" db:"client_message_id"`
	Metadata        MessageMetadata `json:"metadata,omitempty" db:"metadata"`
	CreatedAt       int64           `json:"created_at" db:"created_at"`
}

// MessageMetadata carries optional display hints, stored as jsonb.
type MessageMetadata map[string]any

func (m MessageMetadata) Value() (driver.Value, error) {
	if m == nil {
		return "{}", nil
	}
	raw, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	return string(raw), nil
}

func (m *MessageMetadata) Scan(value any) error {
	if value == nil {
		*m = nil
		return nil
	}
	switch v := value.(type) {
	case []byte:
		return json.Unmarshal(v, m)
	case string:
		return json.Unmarshal([]byte(v), m)
	default:
		return fmt.Errorf("unsupported metadata type %T", value)
	}
}

type CreateChatMessageArgs struct {
	Message         string          `json:"message" binding:"required"`
	ClientMessageID string          `json:"client_message_id" binding:"required"`
	Metadata        MessageMetadata `json:"metadata"`
}
