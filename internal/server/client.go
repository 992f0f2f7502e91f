package server

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"concierge-chat/internal/domain"
	"concierge-chat/internal/ratelimit"
	"concierge-chat/internal/services"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024
)

// clientEvent is a frame received from the browser.
type clientEvent struct {
	Event          string `json:"event"`
	RoomID         string `json:"roomId,omitempty"`
	ConversationID string `json:"conversationId,omitempty"`
	Content        string `json:"content,omitempty"`
}

// serverEvent is a frame pushed to the browser.
type serverEvent struct {
	Event string      `json:"event"`
	Data  interface{} `json:"data,omitempty"`
}

type errorPayload struct {
	Message string `json:"message"`
}

// Client is one websocket connection and its session state. The identity is
// fixed at handshake time and never read from inbound frames.
type Client struct {
	hub      *Hub
	conn     *websocket.Conn
	send     chan []byte
	clientID string
	identity *domain.Identity
	rooms    map[string]bool
	mu       sync.Mutex
	closed   bool
}

func NewClient(hub *Hub, conn *websocket.Conn) *Client {
	return &Client{
		hub:      hub,
		conn:     conn,
		send:     make(chan []byte, 256),
		clientID: uuid.New().String(),
		rooms:    make(map[string]bool),
	}
}

func (c *Client) userID() string {
	if c.identity == nil {
		return "anonymous"
	}
	return c.identity.UUID
}

func (c *Client) authenticated() bool {
	return c.identity != nil
}

func (c *Client) readPump() {
	defer func() {
		c.hub.unregister <- c
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.hub.logger.Error("read failed", c.userID(), c.clientID, err)
			}
			return
		}
		c.handleEvent(raw)
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case payload, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// handleEvent routes one inbound frame. Malformed or unknown frames are
// dropped without tearing down the connection.
func (c *Client) handleEvent(raw []byte) {
	var ev clientEvent
	if err := json.Unmarshal(raw, &ev); err != nil {
		c.sendError("Invalid message format")
		return
	}

	switch ev.Event {
	case "joinRoom":
		c.handleJoinRoom(ev)
	case "leaveRoom":
		c.handleLeaveRoom(ev)
	case "sendMessage":
		c.handleSendMessage(ev)
	default:
		c.hub.logger.Warn("unknown event "+ev.Event, c.userID(), c.clientID)
	}
}

func (c *Client) handleJoinRoom(ev clientEvent) {
	if !c.authenticated() {
		c.sendError("Unauthorized: Not authenticated")
		return
	}
	roomID := ev.roomID()
	if roomID == "" {
		c.sendError("Room id is required")
		return
	}

	c.hub.Join(c, roomID)
	c.enqueue(serverEvent{Event: "joinedRoom", Data: map[string]string{"roomId": roomID}})
}

func (c *Client) handleLeaveRoom(ev clientEvent) {
	roomID := ev.roomID()
	if roomID == "" {
		return
	}

	c.hub.Leave(c, roomID)
	c.enqueue(serverEvent{Event: "leftRoom", Data: map[string]string{"roomId": roomID}})
}

func (c *Client) handleSendMessage(ev clientEvent) {
	if !c.authenticated() {
		c.sendError("Unauthorized: Not authenticated")
		return
	}

	ok, remaining := c.hub.rateLimiter.Allow(c.identity.UUID, c.identity.Role, time.Now())
	if !ok {
		c.sendError(fmt.Sprintf("Click too fast! Please wait %ds.",
			ratelimit.RetryAfterSeconds(remaining)))
		return
	}

	conversationID, err := uuid.Parse(ev.roomID())
	if err != nil {
		c.sendError("Invalid conversation id")
		return
	}
	if strings.TrimSpace(ev.Content) == "" {
		c.sendError("Message content is required")
		return
	}

	_, err = c.hub.chatService.CreateMessage(context.Background(), services.CreateMessageInput{
		ConversationID: conversationID,
		SenderID:       c.identity.UUID,
		SenderRole:     c.identity.Role,
		SenderName:     c.identity.FullName,
		Content:        ev.Content,
	})
	if err != nil {
		c.hub.logger.Error("send message failed", c.userID(), c.clientID, err)
		c.sendError("Failed to send message")
	}
}

func (ev clientEvent) roomID() string {
	if ev.RoomID != "" {
		return ev.RoomID
	}
	return ev.ConversationID
}

func (c *Client) sendError(message string) {
	c.enqueue(serverEvent{Event: "error", Data: errorPayload{Message: message}})
}

func (c *Client) enqueue(ev serverEvent) {
	payload, err := json.Marshal(ev)
	if err != nil {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	select {
	case c.send <- payload:
	default:
		c.hub.logger.Warn("dropping frame, send buffer full", c.userID(), c.clientID)
	}
}

// close shuts the send channel exactly once. The closed flag keeps a
// concurrent enqueue from writing to the closed channel; the write pump
// drains pending frames, emits a close frame, and closes the connection.
func (c *Client) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.send)
}
