package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"concierge-chat/internal/domain"
	chaterrors "concierge-chat/pkg/errors"

	"github.com/google/uuid"
)

// In-memory adapters with the same semantics as the Postgres repositories.
// They back the test suites and single-process development runs.

type MemoryConversationRepository struct {
	conversations map[uuid.UUID]domain.Conversation
	mu            sync.Mutex
}

func NewMemoryConversationRepository() *MemoryConversationRepository {
	return &MemoryConversationRepository{
		conversations: make(map[uuid.UUID]domain.Conversation),
	}
}

func (r *MemoryConversationRepository) Create(_ context.Context, c *domain.Conversation) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.conversations[c.ID]; exists {
		return chaterrors.ErrAlreadyExists
	}
	r.conversations[c.ID] = cloneConversation(*c)
	return nil
}

func (r *MemoryConversationRepository) GetByID(_ context.Context, id uuid.UUID) (domain.Conversation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.conversations[id]
	if !ok {
		return domain.Conversation{}, chaterrors.ErrNotFound
	}
	return cloneConversation(c), nil
}

func (r *MemoryConversationRepository) FindByParticipantPair(_ context.Context, a, b domain.Participant) (domain.Conversation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	probe := []domain.Participant{a, b}
	for _, c := range r.conversations {
		if domain.SamePair(c.Participants, probe) {
			return cloneConversation(c), nil
		}
	}
	return domain.Conversation{}, chaterrors.ErrNotFound
}

func (r *MemoryConversationRepository) ListForUser(_ context.Context, userID string) ([]domain.Conversation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []domain.Conversation
	for _, c := range r.conversations {
		if c.HasParticipant(userID) {
			out = append(out, cloneConversation(c))
		}
	}
	sortByUpdatedDesc(out)
	return out, nil
}

func (r *MemoryConversationRepository) ListAll(_ context.Context, page, limit int) ([]domain.Conversation, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	all := make([]domain.Conversation, 0, len(r.conversations))
	for _, c := range r.conversations {
		all = append(all, cloneConversation(c))
	}
	sortByUpdatedDesc(all)

	total := int64(len(all))
	start := (page - 1) * limit
	if start >= len(all) {
		return []domain.Conversation{}, total, nil
	}
	end := start + limit
	if end > len(all) {
		end = len(all)
	}
	return all[start:end], total, nil
}

func (r *MemoryConversationRepository) RenameParticipant(_ context.Context, userID, name string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var touched int64
	for id, c := range r.conversations {
		changed := false
		for i := range c.Participants {
			if c.Participants[i].UserID == userID {
				c.Participants[i].Name = name
				changed = true
			}
		}
		if changed {
			r.conversations[id] = c
			touched++
		}
	}
	return touched, nil
}

func (r *MemoryConversationRepository) ApplyMessage(_ context.Context, id uuid.UUID, preview string, at time.Time, reset bool) (domain.Conversation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.conversations[id]
	if !ok {
		return domain.Conversation{}, chaterrors.ErrNotFound
	}

	c.LastMessage = preview
	lastAt := at
	c.LastMessageAt = &lastAt
	c.UpdatedAt = at
	if reset {
		c.UnreadCount = 0
	} else {
		c.UnreadCount++
	}

	r.conversations[id] = c
	return cloneConversation(c), nil
}

func (r *MemoryConversationRepository) SetCategory(ctx context.Context, id uuid.UUID, category string) (domain.Conversation, error) {
	return r.update(id, func(c *domain.Conversation) { c.Category = category })
}

func (r *MemoryConversationRepository) SetHidden(ctx context.Context, id uuid.UUID, hidden bool) (domain.Conversation, error) {
	return r.update(id, func(c *domain.Conversation) { c.IsHidden = hidden })
}

func (r *MemoryConversationRepository) SetAiEnabled(ctx context.Context, id uuid.UUID, enabled bool) (domain.Conversation, error) {
	return r.update(id, func(c *domain.Conversation) { c.IsAiEnabled = enabled })
}

func (r *MemoryConversationRepository) SetHumanTakeover(ctx context.Context, id uuid.UUID, takeover bool) (domain.Conversation, error) {
	return r.update(id, func(c *domain.Conversation) { c.IsHumanTakeover = takeover })
}

func (r *MemoryConversationRepository) MarkRead(ctx context.Context, id uuid.UUID) (domain.Conversation, error) {
	return r.update(id, func(c *domain.Conversation) { c.UnreadCount = 0 })
}

func (r *MemoryConversationRepository) update(id uuid.UUID, apply func(*domain.Conversation)) (domain.Conversation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.conversations[id]
	if !ok {
		return domain.Conversation{}, chaterrors.ErrNotFound
	}
	apply(&c)
	c.UpdatedAt = time.Now()
	r.conversations[id] = c
	return cloneConversation(c), nil
}

type MemoryMessageRepository struct {
	messages map[uuid.UUID][]domain.Message
	mu       sync.Mutex
}

func NewMemoryMessageRepository() *MemoryMessageRepository {
	return &MemoryMessageRepository{
		messages: make(map[uuid.UUID][]domain.Message),
	}
}

func (r *MemoryMessageRepository) Create(_ context.Context, m *domain.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.messages[m.ConversationID] = append(r.messages[m.ConversationID], *m)
	return nil
}

func (r *MemoryMessageRepository) ListByConversation(_ context.Context, conversationID uuid.UUID) ([]domain.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := append([]domain.Message{}, r.messages[conversationID]...)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (r *MemoryMessageRepository) ListRecent(_ context.Context, conversationID uuid.UUID, limit int) ([]domain.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := append([]domain.Message{}, r.messages[conversationID]...)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func cloneConversation(c domain.Conversation) domain.Conversation {
	c.Participants = append([]domain.Participant{}, c.Participants...)
	if c.LastMessageAt != nil {
		at := *c.LastMessageAt
		c.LastMessageAt = &at
	}
	return c
}

func sortByUpdatedDesc(items []domain.Conversation) {
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].UpdatedAt.After(items[j].UpdatedAt)
	})
}
