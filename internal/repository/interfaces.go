package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"concierge-chat/internal/domain"
)

type ConversationRepository interface {
	Create(ctx context.Context, c *domain.Conversation) error
	GetByID(ctx context.Context, id uuid.UUID) (domain.Conversation, error)

	// FindByParticipantPair looks up an existing two-participant conversation
	// whose (userId, role) pairs match a and b in any order.
	FindByParticipantPair(ctx context.Context, a, b domain.Participant) (domain.Conversation, error)

	ListForUser(ctx context.Context, userID string) ([]domain.Conversation, error)
	ListAll(ctx context.Context, page, limit int) ([]domain.Conversation, int64, error)

	// RenameParticipant sets the display name on every participant entry with
	// this user id, across all conversations. Returns the number of
	// conversations touched.
	RenameParticipant(ctx context.Context, userID, name string) (int64, error)

	// ApplyMessage updates the aggregate for a newly persisted message in a
	// single atomic write: lastMessage/lastMessageAt/updatedAt, and the unread
	// counter either reset to zero or incremented by one. Returns the
	// post-update snapshot.
	ApplyMessage(ctx context.Context, id uuid.UUID, preview string, at time.Time, reset bool) (domain.Conversation, error)

	SetCategory(ctx context.Context, id uuid.UUID, category string) (domain.Conversation, error)
	SetHidden(ctx context.Context, id uuid.UUID, hidden bool) (domain.Conversation, error)
	SetAiEnabled(ctx context.Context, id uuid.UUID, enabled bool) (domain.Conversation, error)
	SetHumanTakeover(ctx context.Context, id uuid.UUID, takeover bool) (domain.Conversation, error)
	MarkRead(ctx context.Context, id uuid.UUID) (domain.Conversation, error)
}

type MessageRepository interface {
	Create(ctx context.Context, m *domain.Message) error

	// ListByConversation returns the full history in chronological order.
	ListByConversation(ctx context.Context, conversationID uuid.UUID) ([]domain.Message, error)

	// ListRecent returns up to limit messages, newest first.
	ListRecent(ctx context.Context, conversationID uuid.UUID, limit int) ([]domain.Message, error)
}
