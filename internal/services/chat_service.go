package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"concierge-chat/internal/ai"
	"concierge-chat/internal/domain"
	"concierge-chat/internal/events"
	"concierge-chat/internal/repository"
	chaterrors "concierge-chat/pkg/errors"
	"concierge-chat/pkg/logger"

	"github.com/google/uuid"
)

// ChatService owns message creation, conversation state transitions and the
// conditional AI auto-response. Realtime delivery is decoupled through the
// event bus: a message is published only after it and its conversation
// aggregate have been persisted.
type ChatService struct {
	conversations repository.ConversationRepository
	messages      repository.MessageRepository
	bus           events.EventBus
	worker        *aiWorker
	logger        *logger.Logger
}

func NewChatService(
	conversations repository.ConversationRepository,
	messages repository.MessageRepository,
	responder ai.Responder,
	bus events.EventBus,
	l *logger.Logger,
) *ChatService {
	s := &ChatService{
		conversations: conversations,
		messages:      messages,
		bus:           bus,
		logger:        l,
	}
	s.worker = newAiWorker(responder, messages, s.CreateMessage, l)
	return s
}

// Start launches the AI response worker.
func (s *ChatService) Start() {
	s.worker.Start()
}

// Stop drains the AI worker. In-flight generations finish; queued jobs are
// abandoned.
func (s *ChatService) Stop() {
	s.worker.Stop()
}

type CreateMessageInput struct {
	ConversationID uuid.UUID
	SenderID       string
	SenderRole     domain.Role
	SenderName     string
	Content        string
}

// CreateMessage persists a message, applies it to the owning conversation
// aggregate and announces it on the event bus. When the trigger predicate
// holds (non-privileged sender, AI enabled, no human takeover) an AI
// generation job is submitted to the detached worker; its outcome is never
// awaited and its failures never reach this caller.
func (s *ChatService) CreateMessage(ctx context.Context, in CreateMessageInput) (domain.Message, error) {
	if strings.TrimSpace(in.Content) == "" || in.SenderID == "" {
		return domain.Message{}, chaterrors.ErrInvalidInput
	}

	msg := domain.Message{
		ID:             uuid.New(),
		ConversationID: in.ConversationID,
		SenderID:       in.SenderID,
		SenderRole:     in.SenderRole,
		SenderName:     in.SenderName,
		Content:        in.Content,
		CreatedAt:      time.Now().UTC(),
	}
	if err := s.messages.Create(ctx, &msg); err != nil {
		return domain.Message{}, err
	}

	conv, err := s.conversations.ApplyMessage(ctx, in.ConversationID, in.Content, msg.CreatedAt, in.SenderRole.Privileged())
	if err != nil {
		return domain.Message{}, err
	}

	if err := s.bus.Publish(ctx, events.NewMessageNewEvent(msg)); err != nil && s.logger != nil {
		s.logger.Errorf("failed to publish message %s: %s", msg.ID, err)
	}

	if shouldTriggerAI(in.SenderRole, conv) {
		if err := s.worker.Submit(aiJob{conversation: conv, content: in.Content}); err != nil && s.logger != nil {
			s.logger.Warnf("AI job dropped for conversation %s: %s", conv.ID, err)
		}
	}

	return msg, nil
}

// shouldTriggerAI is the trigger predicate. The role check is also what stops
// AI replies from triggering further AI replies.
func shouldTriggerAI(senderRole domain.Role, conv domain.Conversation) bool {
	return !senderRole.Privileged() && conv.IsAiEnabled && !conv.IsHumanTakeover
}

// CreateOrGetConversation creates a conversation for the given participants.
// For exactly two participants the (userId, role) pairs act as a dedup key in
// either order: an existing match is returned instead of a duplicate. Larger
// groups always create. An empty category falls back to "general"; a matched
// existing conversation keeps its own.
func (s *ChatService) CreateOrGetConversation(ctx context.Context, participants []domain.Participant, category string) (domain.Conversation, error) {
	if len(participants) == 0 {
		return domain.Conversation{}, chaterrors.ErrInvalidInput
	}
	normalized := make([]domain.Participant, len(participants))
	for i, p := range participants {
		if p.UserID == "" {
			return domain.Conversation{}, chaterrors.ErrInvalidInput
		}
		p.Role = domain.NormalizeRole(string(p.Role))
		for _, seen := range normalized[:i] {
			// A repeated (userId, role) pair would make the pair dedup
			// key ambiguous.
			if seen.UserID == p.UserID && seen.Role == p.Role {
				return domain.Conversation{}, chaterrors.ErrInvalidInput
			}
		}
		normalized[i] = p
	}

	category = strings.TrimSpace(category)
	if category == "" {
		category = "general"
	}

	if len(normalized) == 2 {
		existing, err := s.conversations.FindByParticipantPair(ctx, normalized[0], normalized[1])
		if err == nil {
			return existing, nil
		}
		if !errors.Is(err, chaterrors.ErrNotFound) {
			return domain.Conversation{}, err
		}
	}

	now := time.Now().UTC()
	conv := domain.Conversation{
		ID:           uuid.New(),
		Participants: normalized,
		Category:     category,
		IsAiEnabled:  true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.conversations.Create(ctx, &conv); err != nil {
		return domain.Conversation{}, err
	}
	return conv, nil
}

func (s *ChatService) GetConversation(ctx context.Context, id uuid.UUID) (domain.Conversation, error) {
	return s.conversations.GetByID(ctx, id)
}

func (s *ChatService) GetUserConversations(ctx context.Context, userID string) ([]domain.Conversation, error) {
	return s.conversations.ListForUser(ctx, userID)
}

// ConversationPage is the paginated listAll envelope.
type ConversationPage struct {
	Data       []domain.Conversation `json:"data"`
	Total      int64                 `json:"total"`
	Page       int                   `json:"page"`
	Limit      int                   `json:"limit"`
	TotalPages int                   `json:"totalPages"`
}

func (s *ChatService) GetAllConversations(ctx context.Context, page, limit int) (ConversationPage, error) {
	if page <= 0 {
		page = 1
	}
	if limit <= 0 {
		limit = 20
	}

	items, total, err := s.conversations.ListAll(ctx, page, limit)
	if err != nil {
		return ConversationPage{}, err
	}

	totalPages := int(total) / limit
	if int(total)%limit != 0 {
		totalPages++
	}

	return ConversationPage{
		Data:       items,
		Total:      total,
		Page:       page,
		Limit:      limit,
		TotalPages: totalPages,
	}, nil
}

// RenameParticipant updates the display name on every conversation containing
// the user, not just one.
func (s *ChatService) RenameParticipant(ctx context.Context, userID, name string) (int64, error) {
	if userID == "" || strings.TrimSpace(name) == "" {
		return 0, chaterrors.ErrInvalidInput
	}
	return s.conversations.RenameParticipant(ctx, userID, name)
}

func (s *ChatService) GetMessages(ctx context.Context, conversationID uuid.UUID) ([]domain.Message, error) {
	return s.messages.ListByConversation(ctx, conversationID)
}

func (s *ChatService) UpdateCategory(ctx context.Context, id uuid.UUID, category string) (domain.Conversation, error) {
	if strings.TrimSpace(category) == "" {
		return domain.Conversation{}, chaterrors.ErrInvalidInput
	}
	return s.conversations.SetCategory(ctx, id, category)
}

func (s *ChatService) ToggleHidden(ctx context.Context, id uuid.UUID, hidden bool) (domain.Conversation, error) {
	return s.conversations.SetHidden(ctx, id, hidden)
}

func (s *ChatService) ToggleAiEnabled(ctx context.Context, id uuid.UUID, enabled bool) (domain.Conversation, error) {
	return s.conversations.SetAiEnabled(ctx, id, enabled)
}

func (s *ChatService) ToggleHumanTakeover(ctx context.Context, id uuid.UUID, takeover bool) (domain.Conversation, error) {
	return s.conversations.SetHumanTakeover(ctx, id, takeover)
}

func (s *ChatService) MarkAsRead(ctx context.Context, id uuid.UUID) (domain.Conversation, error) {
	return s.conversations.MarkRead(ctx, id)
}

// SendSystemMessage authors a message as the system; it is persisted and
// broadcast through the same path as any other message.
func (s *ChatService) SendSystemMessage(ctx context.Context, conversationID uuid.UUID, content string) (domain.Message, error) {
	return s.CreateMessage(ctx, CreateMessageInput{
		ConversationID: conversationID,
		SenderID:       domain.SenderIDSystem,
		SenderRole:     domain.RoleSystem,
		Content:        content,
	})
}
