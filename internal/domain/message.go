package domain

import (
	"time"

	"github.com/google/uuid"
)

// Reserved sender ids for messages not authored by a connected user.
const (
	SenderIDAI     = "AI_AGENT"
	SenderIDSystem = "SYSTEM"

	AISenderName = "Assistant"
)

// Message is append-only: once persisted, content and sender fields never
// change. Only ReadAt may be set later.
type Message struct {
	ID             uuid.UUID  `gorm:"type:uuid;primaryKey;default:uuid_generate_v4()" json:"id"`
	ConversationID uuid.UUID  `gorm:"type:uuid;not null;index:idx_messages_conversation,priority:1" json:"conversationId"`
	SenderID       string     `gorm:"type:text;not null" json:"senderId"`
	SenderRole     Role       `gorm:"type:text;not null" json:"senderRole"`
	SenderName     string     `gorm:"type:text" json:"senderName,omitempty"`
	Content        string     `gorm:"type:text;not null" json:"content"`
	CreatedAt      time.Time  `gorm:"default:CURRENT_TIMESTAMP;index:idx_messages_conversation,priority:2,sort:desc" json:"createdAt"`
	ReadAt         *time.Time `json:"readAt,omitempty"`
}
