package handler

import (
	"context"
	"net/http"
	"strconv"

	"concierge-chat/internal/auth"
	"concierge-chat/internal/domain"
	"concierge-chat/internal/services"
	"concierge-chat/internal/transport/httpdto"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type ConversationHandler struct {
	service *services.ChatService
}

func NewConversationHandler(service *services.ChatService) *ConversationHandler {
	return &ConversationHandler{service: service}
}

func (h *ConversationHandler) Create(c *gin.Context) {
	var req httpdto.CreateConversationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid request", "INVALID_REQUEST"))
		return
	}

	participants := make([]domain.Participant, 0, len(req.Participants))
	for _, p := range req.Participants {
		participants = append(participants, domain.Participant{
			UserID: p.UserID,
			Role:   domain.NormalizeRole(p.Role),
			Name:   p.Name,
		})
	}

	res, err := h.service.CreateOrGetConversation(c.Request.Context(), participants, req.Category)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(res))
}

// List returns the conversations the caller participates in.
func (h *ConversationHandler) List(c *gin.Context) {
	identity, ok := auth.IdentityFromContext(c.Request.Context())
	if !ok {
		c.JSON(http.StatusUnauthorized, httpdto.NewErrorResponse("unauthorized", "UNAUTHORIZED"))
		return
	}

	items, err := h.service.GetUserConversations(c.Request.Context(), identity.UUID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(items))
}

// ListAll returns every conversation, paginated. Admin only.
func (h *ConversationHandler) ListAll(c *gin.Context) {
	identity, ok := auth.IdentityFromContext(c.Request.Context())
	if !ok || identity.Role != domain.RoleAdmin {
		c.JSON(http.StatusForbidden, httpdto.NewErrorResponse("forbidden", "FORBIDDEN"))
		return
	}

	page, _ := strconv.Atoi(c.Query("page"))
	limit, _ := strconv.Atoi(c.Query("limit"))
	res, err := h.service.GetAllConversations(c.Request.Context(), page, limit)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(res))
}

func (h *ConversationHandler) GetByID(c *gin.Context) {
	conversationID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid conversation id", "INVALID_REQUEST"))
		return
	}

	item, err := h.service.GetConversation(c.Request.Context(), conversationID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(item))
}

func (h *ConversationHandler) UpdateCategory(c *gin.Context) {
	var req httpdto.UpdateCategoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid request", "INVALID_REQUEST"))
		return
	}
	conversationID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid conversation id", "INVALID_REQUEST"))
		return
	}

	item, err := h.service.UpdateCategory(c.Request.Context(), conversationID, req.Category)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(item))
}

func (h *ConversationHandler) ToggleHidden(c *gin.Context) {
	h.toggle(c, h.service.ToggleHidden)
}

func (h *ConversationHandler) ToggleAiEnabled(c *gin.Context) {
	h.toggle(c, h.service.ToggleAiEnabled)
}

func (h *ConversationHandler) ToggleHumanTakeover(c *gin.Context) {
	h.toggle(c, h.service.ToggleHumanTakeover)
}

func (h *ConversationHandler) MarkAsRead(c *gin.Context) {
	conversationID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid conversation id", "INVALID_REQUEST"))
		return
	}

	item, err := h.service.MarkAsRead(c.Request.Context(), conversationID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(item))
}

func (h *ConversationHandler) RenameParticipant(c *gin.Context) {
	var req httpdto.RenameParticipantRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid request", "INVALID_REQUEST"))
		return
	}

	updated, err := h.service.RenameParticipant(c.Request.Context(), req.UserID, req.Name)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(httpdto.RenameParticipantResponse{Updated: updated}))
}

type toggleFunc func(ctx context.Context, id uuid.UUID, value bool) (domain.Conversation, error)

func (h *ConversationHandler) toggle(c *gin.Context, fn toggleFunc) {
	var req httpdto.ToggleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid request", "INVALID_REQUEST"))
		return
	}
	conversationID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid conversation id", "INVALID_REQUEST"))
		return
	}

	item, err := fn(c.Request.Context(), conversationID, req.Enabled)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(item))
}
