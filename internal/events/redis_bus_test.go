package events

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"concierge-chat/internal/domain"
	chaterrors "concierge-chat/pkg/errors"
)

func TestRedisBusPublishBeforeStart(t *testing.T) {
	bus := NewRedisEventBus(nil)

	msg := domain.Message{ID: uuid.New(), ConversationID: uuid.New()}
	err := bus.Publish(context.Background(), NewMessageNewEvent(msg))
	assert.ErrorIs(t, err, chaterrors.ErrServiceUnavailable)
}
