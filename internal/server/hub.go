package server

import (
	"context"
	"encoding/json"
	"sync"

	"concierge-chat/internal/events"
	"concierge-chat/internal/ratelimit"
	"concierge-chat/internal/services"
)

// Hub maintains the set of active clients and their room subscriptions, and
// fans persisted messages out to room members. Messages reach the hub through
// the event bus, which only carries them after persistence.
type Hub struct {
	rooms       map[string]map[*Client]bool
	clients     map[*Client]bool
	register    chan *Client
	unregister  chan *Client
	broadcast   chan *roomMessage
	eventBus    events.EventBus
	chatService *services.ChatService
	rateLimiter *ratelimit.CooldownLimiter
	logger      *WebSocketLogger
	mu          sync.RWMutex
	stopChan    chan struct{}
}

type roomMessage struct {
	roomID  string
	payload []byte
}

func NewHub(
	eventBus events.EventBus,
	chatService *services.ChatService,
	rateLimiter *ratelimit.CooldownLimiter,
) *Hub {
	return &Hub{
		rooms:       make(map[string]map[*Client]bool),
		clients:     make(map[*Client]bool),
		register:    make(chan *Client, 256),
		unregister:  make(chan *Client, 256),
		broadcast:   make(chan *roomMessage, 256),
		eventBus:    eventBus,
		chatService: chatService,
		rateLimiter: rateLimiter,
		logger:      NewWebSocketLogger(),
		stopChan:    make(chan struct{}),
	}
}

// Run processes registration and broadcast traffic until Stop is called.
func (h *Hub) Run() {
	h.subscribeToEvents()

	for {
		select {
		case client := <-h.register:
			h.handleRegister(client)

		case client := <-h.unregister:
			h.handleUnregister(client)

		case msg := <-h.broadcast:
			h.broadcastToRoom(msg.roomID, msg.payload)

		case <-h.stopChan:
			return
		}
	}
}

// Stop gracefully shuts down the hub and closes every connection.
func (h *Hub) Stop() {
	close(h.stopChan)

	h.mu.Lock()
	defer h.mu.Unlock()

	for client := range h.clients {
		client.close()
	}
	h.clients = make(map[*Client]bool)
	h.rooms = make(map[string]map[*Client]bool)
}

func (h *Hub) handleRegister(client *Client) {
	h.mu.Lock()
	h.clients[client] = true
	h.mu.Unlock()

	h.logger.Info("client connected", client.userID(), client.clientID)

	go client.writePump()
	go client.readPump()
}

func (h *Hub) handleUnregister(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[client]; !ok {
		return
	}
	delete(h.clients, client)
	for roomID := range client.rooms {
		h.leaveLocked(client, roomID)
	}
	client.close()

	h.logger.Info("client disconnected", client.userID(), client.clientID)
}

// Join subscribes the client to a room. Late joiners do not receive earlier
// broadcasts.
func (h *Hub) Join(client *Client, roomID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.rooms[roomID] == nil {
		h.rooms[roomID] = make(map[*Client]bool)
	}
	h.rooms[roomID][client] = true
	client.rooms[roomID] = true
}

func (h *Hub) Leave(client *Client, roomID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.leaveLocked(client, roomID)
}

func (h *Hub) leaveLocked(client *Client, roomID string) {
	if members, ok := h.rooms[roomID]; ok {
		delete(members, client)
		if len(members) == 0 {
			delete(h.rooms, roomID)
		}
	}
	delete(client.rooms, roomID)
}

func (h *Hub) broadcastToRoom(roomID string, payload []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for client := range h.rooms[roomID] {
		select {
		case client.send <- payload:
		default:
			h.logger.Warn("client send buffer full", client.userID(), client.clientID)
		}
	}
}

func (h *Hub) subscribeToEvents() {
	h.eventBus.Subscribe(events.EventMessageNew, &hubEventHandler{hub: h})
}

// hubEventHandler forwards bus events into the hub's broadcast loop.
type hubEventHandler struct {
	hub *Hub
}

func (h *hubEventHandler) Handle(_ context.Context, event events.Event) error {
	msg, ok := event.(*events.MessageNewEvent)
	if !ok {
		return nil
	}

	payload, err := json.Marshal(serverEvent{Event: "newMessage", Data: msg.Message})
	if err != nil {
		return err
	}

	select {
	case h.hub.broadcast <- &roomMessage{roomID: event.Room(), payload: payload}:
	default:
		h.hub.logger.logger.Warn("hub broadcast buffer full")
	}
	return nil
}
