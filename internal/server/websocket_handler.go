package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"concierge-chat/internal/auth"
	"concierge-chat/internal/domain"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// WebSocketHandler handles WebSocket connections
type WebSocketHandler struct {
	hub      *Hub
	verifier *auth.Verifier
	logger   *WebSocketLogger
}

// NewWebSocketHandler creates a new WebSocket handler
func NewWebSocketHandler(hub *Hub, verifier *auth.Verifier) *WebSocketHandler {
	return &WebSocketHandler{
		hub:      hub,
		verifier: verifier,
		logger:   NewWebSocketLogger(),
	}
}

// Handle upgrades HTTP to WebSocket. The token is verified after the upgrade
// so the failure reaches the browser as an in-band error event rather than an
// opaque handshake rejection.
func (h *WebSocketHandler) Handle(c *gin.Context) {
	token := h.extractToken(c)

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Error("websocket upgrade failed", "anonymous", "", err)
		return
	}

	client := NewClient(h.hub, conn)

	if token == "" {
		h.hub.register <- client
		client.sendError("Unauthorized: No token provided")
		client.close()
		return
	}

	identity, err := h.verifier.Verify(token)
	if err != nil {
		h.logger.Warn("websocket auth failed", "anonymous", client.clientID)
		h.hub.register <- client
		client.sendError("Unauthorized: Invalid token")
		client.close()
		return
	}

	client.identity = &identity
	h.hub.register <- client
	client.enqueue(serverEvent{Event: "authenticated", Data: authenticatedPayload{
		User: identityPayload{
			UUID:     identity.UUID,
			ID:       identity.ID,
			FullName: identity.FullName,
			Role:     identity.Role,
			Email:    identity.Email,
		},
	}})
}

// authenticatedPayload wraps the session identity under a user key, which is
// what connected clients key on.
type authenticatedPayload struct {
	User identityPayload `json:"user"`
}

type identityPayload struct {
	UUID     string      `json:"uuid"`
	ID       int64       `json:"id,omitempty"`
	FullName string      `json:"full_name,omitempty"`
	Role     domain.Role `json:"role"`
	Email    string      `json:"email,omitempty"`
}

func (h *WebSocketHandler) extractToken(c *gin.Context) string {
	// Check auth query parameter first, then token, then the bearer header.
	token := c.Query("auth")
	if token != "" {
		return token
	}

	token = c.Query("token")
	if token != "" {
		return token
	}

	header := c.GetHeader("Authorization")
	if strings.HasPrefix(header, "Bearer ") {
		return strings.TrimPrefix(header, "Bearer ")
	}

	return ""
}
