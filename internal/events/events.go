package events

import (
	"context"

	"concierge-chat/internal/domain"
)

type EventType string

const (
	EventMessageNew EventType = "message.created"
)

// Redis channel prefix for per-conversation fan-out.
const ChannelPrefixConversation = "channel:conversation:"

// Event is anything the realtime layer can fan out to a room.
type Event interface {
	Type() EventType
	Room() string
}

// BaseEvent carries the discriminator used when decoding wire payloads.
type BaseEvent struct {
	EventTypeVal EventType `json:"type"`
}

// MessageNewEvent announces a persisted message to the subscribers of its
// conversation room. It is published only after the message and its
// conversation aggregate have been written.
type MessageNewEvent struct {
	EventTypeVal   EventType      `json:"type"`
	ConversationID string         `json:"conversation_id"`
	Message        domain.Message `json:"message"`
}

func NewMessageNewEvent(msg domain.Message) *MessageNewEvent {
	return &MessageNewEvent{
		EventTypeVal:   EventMessageNew,
		ConversationID: msg.ConversationID.String(),
		Message:        msg,
	}
}

func (e *MessageNewEvent) Type() EventType { return EventMessageNew }
func (e *MessageNewEvent) Room() string    { return e.ConversationID }

// EventHandler consumes events delivered by a bus.
type EventHandler interface {
	Handle(ctx context.Context, event Event) error
}

// EventBus decouples the orchestrator from the realtime fan-out. The Redis
// implementation carries events across instances; the local one backs tests
// and single-node runs.
type EventBus interface {
	Publish(ctx context.Context, event Event) error
	Subscribe(eventType EventType, handler EventHandler) error
}
