package repository

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"concierge-chat/internal/domain"
	chaterrors "concierge-chat/pkg/errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type PostgresConversationRepository struct {
	db *gorm.DB
}

func NewConversationRepository(db *gorm.DB) ConversationRepository {
	return &PostgresConversationRepository{db: db}
}

func (r *PostgresConversationRepository) Create(ctx context.Context, c *domain.Conversation) error {
	res := r.db.WithContext(ctx).Create(c)
	if res.Error != nil {
		if errors.Is(res.Error, gorm.ErrDuplicatedKey) {
			return chaterrors.ErrAlreadyExists
		}
		return res.Error
	}
	return nil
}

func (r *PostgresConversationRepository) GetByID(ctx context.Context, id uuid.UUID) (domain.Conversation, error) {
	var c domain.Conversation
	err := r.db.WithContext(ctx).
		Where("id = ?", id).
		First(&c).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.Conversation{}, chaterrors.ErrNotFound
		}
		return domain.Conversation{}, err
	}
	return c, nil
}

func (r *PostgresConversationRepository) FindByParticipantPair(ctx context.Context, a, b domain.Participant) (domain.Conversation, error) {
	var c domain.Conversation

	// Containment of both (userId, role) pairs plus an exact length check
	// matches the pair in either order without touching display names.
	err := r.db.WithContext(ctx).
		Where("participants @> ? AND participants @> ? AND jsonb_array_length(participants) = 2",
			pairJSON(a), pairJSON(b)).
		First(&c).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.Conversation{}, chaterrors.ErrNotFound
		}
		return domain.Conversation{}, err
	}
	return c, nil
}

func (r *PostgresConversationRepository) ListForUser(ctx context.Context, userID string) ([]domain.Conversation, error) {
	var conversations []domain.Conversation
	err := r.db.WithContext(ctx).
		Where("participants @> ?", memberJSON(userID)).
		Order("updated_at DESC").
		Find(&conversations).Error
	if err != nil {
		return nil, err
	}
	return conversations, nil
}

func (r *PostgresConversationRepository) ListAll(ctx context.Context, page, limit int) ([]domain.Conversation, int64, error) {
	var conversations []domain.Conversation
	var total int64

	q := r.db.WithContext(ctx).Model(&domain.Conversation{})
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * limit
	if err := q.
		Order("updated_at DESC").
		Offset(offset).
		Limit(limit).
		Find(&conversations).Error; err != nil {
		return nil, 0, err
	}

	return conversations, total, nil
}

func (r *PostgresConversationRepository) RenameParticipant(ctx context.Context, userID, name string) (int64, error) {
	res := r.db.WithContext(ctx).Exec(`
		UPDATE conversations
		SET participants = (
			SELECT jsonb_agg(
				CASE WHEN p->>'userId' = ?
					THEN jsonb_set(p, '{name}', to_jsonb(?::text))
					ELSE p
				END)
			FROM jsonb_array_elements(participants) AS p
		)
		WHERE participants @> ?`,
		userID, name, memberJSON(userID))
	if res.Error != nil {
		return 0, res.Error
	}
	return res.RowsAffected, nil
}

func (r *PostgresConversationRepository) ApplyMessage(ctx context.Context, id uuid.UUID, preview string, at time.Time, reset bool) (domain.Conversation, error) {
	updates := map[string]interface{}{
		"last_message":    preview,
		"last_message_at": at,
		"updated_at":      at,
	}
	if reset {
		updates["unread_count"] = 0
	} else {
		updates["unread_count"] = gorm.Expr("unread_count + 1")
	}

	res := r.db.WithContext(ctx).
		Model(&domain.Conversation{}).
		Where("id = ?", id).
		Updates(updates)
	if res.Error != nil {
		return domain.Conversation{}, res.Error
	}
	if res.RowsAffected == 0 {
		return domain.Conversation{}, chaterrors.ErrNotFound
	}
	return r.GetByID(ctx, id)
}

func (r *PostgresConversationRepository) SetCategory(ctx context.Context, id uuid.UUID, category string) (domain.Conversation, error) {
	return r.updateField(ctx, id, "category", category)
}

func (r *PostgresConversationRepository) SetHidden(ctx context.Context, id uuid.UUID, hidden bool) (domain.Conversation, error) {
	return r.updateField(ctx, id, "is_hidden", hidden)
}

func (r *PostgresConversationRepository) SetAiEnabled(ctx context.Context, id uuid.UUID, enabled bool) (domain.Conversation, error) {
	return r.updateField(ctx, id, "is_ai_enabled", enabled)
}

func (r *PostgresConversationRepository) SetHumanTakeover(ctx context.Context, id uuid.UUID, takeover bool) (domain.Conversation, error) {
	return r.updateField(ctx, id, "is_human_takeover", takeover)
}

func (r *PostgresConversationRepository) MarkRead(ctx context.Context, id uuid.UUID) (domain.Conversation, error) {
	return r.updateField(ctx, id, "unread_count", 0)
}

func (r *PostgresConversationRepository) updateField(ctx context.Context, id uuid.UUID, column string, value interface{}) (domain.Conversation, error) {
	res := r.db.WithContext(ctx).
		Model(&domain.Conversation{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			column:       value,
			"updated_at": time.Now(),
		})
	if res.Error != nil {
		return domain.Conversation{}, res.Error
	}
	if res.RowsAffected == 0 {
		return domain.Conversation{}, chaterrors.ErrNotFound
	}
	return r.GetByID(ctx, id)
}

func pairJSON(p domain.Participant) string {
	data, _ := json.Marshal([]map[string]string{{
		"userId": p.UserID,
		"role":   string(p.Role),
	}})
	return string(data)
}

func memberJSON(userID string) string {
	data, _ := json.Marshal([]map[string]string{{"userId": userID}})
	return string(data)
}
