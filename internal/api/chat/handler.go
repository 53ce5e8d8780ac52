// Package chat serves the user facing chat and conversation endpoints.
package chat

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/liliang-cn/askdesk/internal/api/httperr"
	"github.com/liliang-cn/askdesk/internal/api/middleware"
	"github.com/liliang-cn/askdesk/internal/domain"
	"github.com/liliang-cn/askdesk/internal/service"
)

// Handler handles chat API requests
type Handler struct {
	chatService         *service.ChatService
	conversationService *service.ConversationService
}

// NewHandler creates a new chat handler
func NewHandler(chatService *service.ChatService, conversationService *service.ConversationService) *Handler {
	return &Handler{
		chatService:         chatService,
		conversationService: conversationService,
	}
}

// RegisterRoutes registers chat routes. The group must run middleware.UserID.
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.POST("/chat", h.Chat)

	conversations := r.Group("/conversations")
	{
		conversations.GET("", h.ListConversations)
		conversations.POST("", h.CreateConversation)
		conversations.GET("/:id", h.GetConversation)
		conversations.DELETE("/:id", h.DeleteConversation)
	}
}

// Chat answers a question
func (h *Handler) Chat(c *gin.Context) {
	var req domain.ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httperr.BadRequest(c, err)
		return
	}

	resp, err := h.chatService.Chat(c.Request.Context(), middleware.GetUserID(c), &req)
	if err != nil {
		httperr.Write(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

func (h *Handler) ListConversations(c *gin.Context) {
	convs, err := h.conversationService.List(c.Request.Context(), middleware.GetUserID(c))
	if err != nil {
		httperr.Write(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"conversations": convs})
}

func (h *Handler) CreateConversation(c *gin.Context) {
	var req domain.CreateConversationRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			httperr.BadRequest(c, err)
			return
		}
	}

	conv, err := h.conversationService.Create(c.Request.Context(), middleware.GetUserID(c), &req)
	if err != nil {
		httperr.Write(c, err)
		return
	}

	c.JSON(http.StatusCreated, conv)
}

func (h *Handler) GetConversation(c *gin.Context) {
	detail, err := h.conversationService.Get(c.Request.Context(), middleware.GetUserID(c), c.Param("id"))
	if err != nil {
		httperr.Write(c, err)
		return
	}

	c.JSON(http.StatusOK, detail)
}

func (h *Handler) DeleteConversation(c *gin.Context) {
	if err := h.conversationService.Delete(c.Request.Context(), middleware.GetUserID(c), c.Param("id")); err != nil {
		httperr.Write(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}
