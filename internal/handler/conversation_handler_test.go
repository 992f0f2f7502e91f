package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"concierge-chat/config"
	"concierge-chat/internal/ai"
	"concierge-chat/internal/auth"
	"concierge-chat/internal/domain"
	"concierge-chat/internal/events"
	"concierge-chat/internal/middleware"
	"concierge-chat/internal/repository"
	"concierge-chat/internal/services"
)

const handlerTestSecret = "handler-test-secret"

type echoResponder struct{}

func (echoResponder) Generate(context.Context, []ai.Turn, string) string { return "noted" }

func newTestRouter(t *testing.T) (*gin.Engine, *services.ChatService) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	service := services.NewChatService(
		repository.NewMemoryConversationRepository(),
		repository.NewMemoryMessageRepository(),
		echoResponder{},
		events.NewLocalEventBus(),
		nil,
	)

	verifier := auth.NewVerifier(&config.Config{JWTSecret: handlerTestSecret})
	conversationHandler := NewConversationHandler(service)
	messageHandler := NewMessageHandler(service)

	r := gin.New()
	conversations := r.Group("/v1/conversations", middleware.AuthMiddleware(verifier))
	{
		conversations.POST("", conversationHandler.Create)
		conversations.GET("", conversationHandler.List)
		conversations.GET("/all", conversationHandler.ListAll)
		conversations.GET("/:id", conversationHandler.GetByID)
		conversations.GET("/:id/messages", messageHandler.List)
		conversations.POST("/:id/system-message", messageHandler.SendSystem)
		conversations.PATCH("/:id/category", conversationHandler.UpdateCategory)
		conversations.PATCH("/:id/ai", conversationHandler.ToggleAiEnabled)
		conversations.POST("/:id/read", conversationHandler.MarkAsRead)
	}
	return r, service
}

func bearerToken(t *testing.T, uuid, role string) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"uuid":      uuid,
		"full_name": "Test User",
		"role":      role,
	})
	signed, err := token.SignedString([]byte(handlerTestSecret))
	require.NoError(t, err)
	return signed
}

func doRequest(r *gin.Engine, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestCreateConversationRequiresAuth(t *testing.T) {
	r, _ := newTestRouter(t)

	w := doRequest(r, http.MethodPost, "/v1/conversations", "", map[string]interface{}{
		"participants": []map[string]string{{"userId": "u1", "role": "user"}},
	})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestCreateAndGetConversation(t *testing.T) {
	r, _ := newTestRouter(t)
	token := bearerToken(t, "u1", "user")

	w := doRequest(r, http.MethodPost, "/v1/conversations", token, map[string]interface{}{
		"participants": []map[string]string{
			{"userId": "u1", "role": "user", "name": "One"},
			{"userId": "u2", "role": "supplier"},
		},
	})
	require.Equal(t, http.StatusOK, w.Code)

	var created struct {
		Success bool                `json:"success"`
		Data    domain.Conversation `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	assert.True(t, created.Success)
	assert.Equal(t, "general", created.Data.Category)
	assert.True(t, created.Data.IsAiEnabled)

	w = doRequest(r, http.MethodGet, "/v1/conversations/"+created.Data.ID.String(), token, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = doRequest(r, http.MethodGet, "/v1/conversations", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var listed struct {
		Data []domain.Conversation `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &listed))
	assert.Len(t, listed.Data, 1)
}

func TestCreateConversationWithCategory(t *testing.T) {
	r, _ := newTestRouter(t)
	token := bearerToken(t, "u1", "user")

	w := doRequest(r, http.MethodPost, "/v1/conversations", token, map[string]interface{}{
		"participants": []map[string]string{
			{"userId": "u1", "role": "user"},
			{"userId": "u2", "role": "supplier"},
		},
		"category": "billing",
	})
	require.Equal(t, http.StatusOK, w.Code)

	var created struct {
		Data domain.Conversation `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	assert.Equal(t, "billing", created.Data.Category)
}

func TestGetConversationNotFound(t *testing.T) {
	r, _ := newTestRouter(t)
	token := bearerToken(t, "u1", "user")

	w := doRequest(r, http.MethodGet, "/v1/conversations/6a5f0d43-0c33-4bd6-9df6-155e2b985c30", token, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = doRequest(r, http.MethodGet, "/v1/conversations/not-a-uuid", token, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestListAllIsAdminOnly(t *testing.T) {
	r, svc := newTestRouter(t)

	for i := 0; i < 3; i++ {
		_, err := svc.CreateOrGetConversation(context.Background(), []domain.Participant{
			{UserID: fmt.Sprintf("u%d", i), Role: domain.RoleUser},
			{UserID: "supplier-1", Role: domain.RoleSupplier},
		}, "")
		require.NoError(t, err)
	}

	w := doRequest(r, http.MethodGet, "/v1/conversations/all", bearerToken(t, "u1", "user"), nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = doRequest(r, http.MethodGet, "/v1/conversations/all?page=1&limit=2", bearerToken(t, "a1", "admin"), nil)
	require.Equal(t, http.StatusOK, w.Code)

	var page struct {
		Data services.ConversationPage `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &page))
	assert.Len(t, page.Data.Data, 2)
	assert.Equal(t, int64(3), page.Data.Total)
	assert.Equal(t, 2, page.Data.TotalPages)
}

func TestSystemMessageIsAdminOnly(t *testing.T) {
	r, svc := newTestRouter(t)

	conv, err := svc.CreateOrGetConversation(context.Background(), []domain.Participant{
		{UserID: "u1", Role: domain.RoleUser},
		{UserID: "supplier-1", Role: domain.RoleSupplier},
	}, "")
	require.NoError(t, err)
	_, err = svc.ToggleAiEnabled(context.Background(), conv.ID, false)
	require.NoError(t, err)

	body := map[string]string{"content": "Scheduled maintenance tonight"}
	path := "/v1/conversations/" + conv.ID.String() + "/system-message"

	w := doRequest(r, http.MethodPost, path, bearerToken(t, "u1", "user"), body)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = doRequest(r, http.MethodPost, path, bearerToken(t, "a1", "admin"), body)
	require.Equal(t, http.StatusOK, w.Code)

	msgs, err := svc.GetMessages(context.Background(), conv.ID)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, domain.SenderIDSystem, msgs[0].SenderID)
}

func TestToggleAndMarkRead(t *testing.T) {
	r, svc := newTestRouter(t)
	token := bearerToken(t, "u1", "user")

	conv, err := svc.CreateOrGetConversation(context.Background(), []domain.Participant{
		{UserID: "u1", Role: domain.RoleUser},
		{UserID: "supplier-1", Role: domain.RoleSupplier},
	}, "")
	require.NoError(t, err)

	w := doRequest(r, http.MethodPatch, "/v1/conversations/"+conv.ID.String()+"/ai", token,
		map[string]bool{"enabled": false})
	require.Equal(t, http.StatusOK, w.Code)

	got, err := svc.GetConversation(context.Background(), conv.ID)
	require.NoError(t, err)
	assert.False(t, got.IsAiEnabled)

	w = doRequest(r, http.MethodPatch, "/v1/conversations/"+conv.ID.String()+"/category", token,
		map[string]string{"category": "billing"})
	require.Equal(t, http.StatusOK, w.Code)

	w = doRequest(r, http.MethodPatch, "/v1/conversations/"+conv.ID.String()+"/category", token,
		map[string]string{"category": "  "})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doRequest(r, http.MethodPost, "/v1/conversations/"+conv.ID.String()+"/read", token, nil)
	assert.Equal(t, http.StatusOK, w.Code)
}
