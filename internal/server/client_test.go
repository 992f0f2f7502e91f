package server

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"concierge-chat/internal/ai"
	"concierge-chat/internal/domain"
	"concierge-chat/internal/events"
	"concierge-chat/internal/ratelimit"
	"concierge-chat/internal/repository"
	"concierge-chat/internal/services"
)

type silentResponder struct{}

func (silentResponder) Generate(context.Context, []ai.Turn, string) string { return "ok" }

type hubFixture struct {
	hub           *Hub
	conversations *repository.MemoryConversationRepository
	messages      *repository.MemoryMessageRepository
	service       *services.ChatService
	limiter       *ratelimit.CooldownLimiter
}

func newHubFixture(t *testing.T) *hubFixture {
	t.Helper()

	conversations := repository.NewMemoryConversationRepository()
	messages := repository.NewMemoryMessageRepository()
	bus := events.NewLocalEventBus()
	service := services.NewChatService(conversations, messages, silentResponder{}, bus, nil)
	limiter := ratelimit.NewCooldownLimiter(ratelimit.DefaultCooldown)
	t.Cleanup(limiter.Stop)

	hub := NewHub(bus, service, limiter)
	hub.subscribeToEvents()

	return &hubFixture{
		hub:           hub,
		conversations: conversations,
		messages:      messages,
		service:       service,
		limiter:       limiter,
	}
}

func (f *hubFixture) newConversation(t *testing.T) domain.Conversation {
	t.Helper()
	conv, err := f.service.CreateOrGetConversation(context.Background(), []domain.Participant{
		{UserID: "customer-1", Role: domain.RoleUser},
		{UserID: "supplier-1", Role: domain.RoleSupplier},
	}, "")
	require.NoError(t, err)

	// Keep the router tests deterministic.
	_, err = f.service.ToggleAiEnabled(context.Background(), conv.ID, false)
	require.NoError(t, err)
	return conv
}

func newSessionClient(hub *Hub, identity *domain.Identity) *Client {
	c := NewClient(hub, nil)
	c.identity = identity
	return c
}

func nextFrame(t *testing.T, c *Client) serverEvent {
	t.Helper()
	select {
	case raw := <-c.send:
		var ev serverEvent
		require.NoError(t, json.Unmarshal(raw, &ev))
		return ev
	default:
		t.Fatal("expected a queued frame")
		return serverEvent{}
	}
}

func errorMessage(t *testing.T, ev serverEvent) string {
	t.Helper()
	require.Equal(t, "error", ev.Event)
	data, ok := ev.Data.(map[string]interface{})
	require.True(t, ok)
	msg, _ := data["message"].(string)
	return msg
}

func TestUnauthenticatedSendIsRejected(t *testing.T) {
	f := newHubFixture(t)
	conv := f.newConversation(t)
	c := newSessionClient(f.hub, nil)

	c.handleEvent(mustMarshal(t, clientEvent{
		Event:   "sendMessage",
		RoomID:  conv.ID.String(),
		Content: "should not land",
	}))

	assert.Contains(t, errorMessage(t, nextFrame(t, c)), "Unauthorized")

	msgs, err := f.service.GetMessages(context.Background(), conv.ID)
	require.NoError(t, err)
	assert.Empty(t, msgs, "unauthenticated sends must have no side effects")
}

func TestUnauthenticatedJoinIsRejected(t *testing.T) {
	f := newHubFixture(t)
	c := newSessionClient(f.hub, nil)

	c.handleEvent(mustMarshal(t, clientEvent{Event: "joinRoom", RoomID: "room-1"}))

	assert.Contains(t, errorMessage(t, nextFrame(t, c)), "Unauthorized")
	f.hub.mu.RLock()
	defer f.hub.mu.RUnlock()
	assert.Empty(t, f.hub.rooms)
}

func TestJoinAndLeaveRoom(t *testing.T) {
	f := newHubFixture(t)
	c := newSessionClient(f.hub, &domain.Identity{UUID: "customer-1", Role: domain.RoleUser})

	c.handleEvent(mustMarshal(t, clientEvent{Event: "joinRoom", RoomID: "room-1"}))
	ev := nextFrame(t, c)
	assert.Equal(t, "joinedRoom", ev.Event)

	f.hub.mu.RLock()
	assert.Contains(t, f.hub.rooms, "room-1")
	f.hub.mu.RUnlock()

	c.handleEvent(mustMarshal(t, clientEvent{Event: "leaveRoom", RoomID: "room-1"}))
	ev = nextFrame(t, c)
	assert.Equal(t, "leftRoom", ev.Event)

	f.hub.mu.RLock()
	defer f.hub.mu.RUnlock()
	assert.NotContains(t, f.hub.rooms, "room-1")
}

func TestSendMessageUsesSessionIdentity(t *testing.T) {
	f := newHubFixture(t)
	conv := f.newConversation(t)
	c := newSessionClient(f.hub, &domain.Identity{
		UUID:     "customer-1",
		FullName: "Jamie Doe",
		Role:     domain.RoleUser,
	})

	c.handleEvent(mustMarshal(t, clientEvent{
		Event:          "sendMessage",
		ConversationID: conv.ID.String(),
		Content:        "hello",
	}))

	msgs, err := f.service.GetMessages(context.Background(), conv.ID)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, "customer-1", msgs[0].SenderID)
	assert.Equal(t, domain.RoleUser, msgs[0].SenderRole)
	assert.Equal(t, "Jamie Doe", msgs[0].SenderName)

	// The persisted message reaches the hub as a newMessage broadcast.
	select {
	case bm := <-f.hub.broadcast:
		assert.Equal(t, conv.ID.String(), bm.roomID)
		var ev serverEvent
		require.NoError(t, json.Unmarshal(bm.payload, &ev))
		assert.Equal(t, "newMessage", ev.Event)
	default:
		t.Fatal("expected a broadcast for the persisted message")
	}
}

func TestSendMessageRateLimited(t *testing.T) {
	f := newHubFixture(t)
	conv := f.newConversation(t)
	c := newSessionClient(f.hub, &domain.Identity{UUID: "customer-1", Role: domain.RoleUser})

	payload := mustMarshal(t, clientEvent{
		Event:          "sendMessage",
		ConversationID: conv.ID.String(),
		Content:        "first",
	})
	c.handleEvent(payload)
	c.handleEvent(payload)

	// The accepted send queues nothing on the sender; the throttled retry
	// queues exactly one error frame.
	assert.Equal(t, "Click too fast! Please wait 2s.", errorMessage(t, nextFrame(t, c)))

	msgs, err := f.service.GetMessages(context.Background(), conv.ID)
	require.NoError(t, err)
	assert.Len(t, msgs, 1, "the throttled send must not persist")
}

func TestAdminNotRateLimited(t *testing.T) {
	f := newHubFixture(t)
	conv := f.newConversation(t)
	c := newSessionClient(f.hub, &domain.Identity{UUID: "admin-1", Role: domain.RoleAdmin})

	payload := mustMarshal(t, clientEvent{
		Event:          "sendMessage",
		ConversationID: conv.ID.String(),
		Content:        "sweep",
	})
	for i := 0; i < 3; i++ {
		c.handleEvent(payload)
	}

	msgs, err := f.service.GetMessages(context.Background(), conv.ID)
	require.NoError(t, err)
	assert.Len(t, msgs, 3)
}

func TestBroadcastReachesOnlyRoomMembers(t *testing.T) {
	f := newHubFixture(t)
	member := newSessionClient(f.hub, &domain.Identity{UUID: "customer-1", Role: domain.RoleUser})
	outsider := newSessionClient(f.hub, &domain.Identity{UUID: "customer-2", Role: domain.RoleUser})

	f.hub.Join(member, "room-1")
	f.hub.Join(outsider, "room-2")

	f.hub.broadcastToRoom("room-1", []byte(`{"event":"newMessage"}`))

	select {
	case <-member.send:
	default:
		t.Fatal("room member did not receive the broadcast")
	}
	select {
	case <-outsider.send:
		t.Fatal("outsider received a broadcast for another room")
	default:
	}
}

func TestMalformedFrame(t *testing.T) {
	f := newHubFixture(t)
	c := newSessionClient(f.hub, &domain.Identity{UUID: "customer-1", Role: domain.RoleUser})

	c.handleEvent([]byte("{not json"))
	assert.Contains(t, errorMessage(t, nextFrame(t, c)), "Invalid message format")
}

func TestInvalidConversationID(t *testing.T) {
	f := newHubFixture(t)
	c := newSessionClient(f.hub, &domain.Identity{UUID: "customer-1", Role: domain.RoleUser})

	c.handleEvent(mustMarshal(t, clientEvent{
		Event:   "sendMessage",
		RoomID:  "not-a-uuid",
		Content: "hello",
	}))
	assert.Contains(t, errorMessage(t, nextFrame(t, c)), "Invalid conversation id")
}

// TestDisconnectLeavesRooms verifies unregister removes room membership.
func TestDisconnectLeavesRooms(t *testing.T) {
	f := newHubFixture(t)
	c := newSessionClient(f.hub, &domain.Identity{UUID: "customer-1", Role: domain.RoleUser})

	f.hub.mu.Lock()
	f.hub.clients[c] = true
	f.hub.mu.Unlock()
	f.hub.Join(c, "room-1")
	f.hub.Join(c, "room-2")

	f.hub.handleUnregister(c)

	f.hub.mu.RLock()
	defer f.hub.mu.RUnlock()
	assert.Empty(t, f.hub.rooms)
	assert.Empty(t, f.hub.clients)
}

// TestEnqueueAfterCloseIsSafe covers the shutdown race where the read loop is
// still dispatching while the hub closes the client.
func TestEnqueueAfterCloseIsSafe(t *testing.T) {
	f := newHubFixture(t)
	c := newSessionClient(f.hub, &domain.Identity{UUID: "customer-1", Role: domain.RoleUser})

	c.close()
	assert.NotPanics(t, func() {
		c.close()
		c.enqueue(serverEvent{Event: "error", Data: errorPayload{Message: "late"}})
	})

	_, open := <-c.send
	assert.False(t, open, "closed client must queue nothing further")
}

func mustMarshal(t *testing.T, ev clientEvent) []byte {
	t.Helper()
	raw, err := json.Marshal(ev)
	require.NoError(t, err)
	return raw
}
