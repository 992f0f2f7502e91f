package domain

import (
	"time"

	"github.com/google/uuid"
)

type Participant struct {
	UserID string `json:"userId"`
	Role   Role   `json:"role"`
	Name   string `json:"name,omitempty"`
}

// Conversation is the aggregate root grouping a participant set and its
// denormalized summary state. It is never physically deleted.
type Conversation struct {
	ID              uuid.UUID     `gorm:"type:uuid;primaryKey;default:uuid_generate_v4()" json:"id"`
	Participants    []Participant `gorm:"type:jsonb;serializer:json;not null" json:"participants"`
	LastMessage     string        `gorm:"type:text" json:"lastMessage,omitempty"`
	LastMessageAt   *time.Time    `json:"lastMessageAt,omitempty"`
	UnreadCount     int           `gorm:"default:0" json:"unreadCount"`
	Category        string        `gorm:"type:text;default:'general'" json:"category"`
	IsHidden        bool          `gorm:"default:false" json:"isHidden"`
	IsAiEnabled     bool          `gorm:"default:true" json:"isAiEnabled"`
	IsHumanTakeover bool          `gorm:"default:false" json:"isHumanTakeover"`
	CreatedAt       time.Time     `gorm:"default:CURRENT_TIMESTAMP" json:"createdAt"`
	UpdatedAt       time.Time     `gorm:"default:CURRENT_TIMESTAMP;index:idx_conversations_updated,sort:desc" json:"updatedAt"`
}

// HasParticipant reports whether userID appears in the participant list.
func (c Conversation) HasParticipant(userID string) bool {
	for _, p := range c.Participants {
		if p.UserID == userID {
			return true
		}
	}
	return false
}

// SamePair compares two two-participant sets by their (userId, role) pairs,
// ignoring order and display names. Only defined for pairs; callers apply it
// to exactly-two-participant conversations.
func SamePair(a, b []Participant) bool {
	if len(a) != 2 || len(b) != 2 {
		return false
	}
	match := func(x, y Participant) bool {
		return x.UserID == y.UserID && x.Role == y.Role
	}
	return (match(a[0], b[0]) && match(a[1], b[1])) ||
		(match(a[0], b[1]) && match(a[1], b[0]))
}
