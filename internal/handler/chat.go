package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/IvanBaradan/Tatargram/internal/platform"
	"github.com/IvanBaradan/Tatargram/internal/service"
)

const defaultMessageLimit = 50

type ChatHandler interface {
	GetChats(c *gin.Context)
	GetMessages(c *gin.Context)
	SendMessage(c *gin.Context)
}

type chatHandler struct {
	chats  service.ChatService
	logger *zap.Logger
}

func NewChatHandler(chats service.ChatService, logger *zap.Logger) ChatHandler {
	return &chatHandler{chats: chats, logger: logger}
}

// GetChats handles GET /api/chats
func (h *chatHandler) GetChats(c *gin.Context) {
	chats, err := h.chats.ListChats(c.Request.Context())
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"chats": chats})
}

// GetMessages handles GET /api/chats/:chat_id/messages
func (h *chatHandler) GetMessages(c *gin.Context) {
	offset, limit, ok := pageParams(c)
	if !ok {
		return
	}

	page, err := h.chats.ListMessages(c.Request.Context(), c.Param("chat_id"), offset, limit)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, page)
}

type sendMessageRequest struct {
	Text string `json:"text"`
}

// SendMessage handles POST /api/chats/:chat_id/messages
func (h *chatHandler) SendMessage(c *gin.Context) {
	var req sendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithDetail(c, http.StatusBadRequest, "Invalid request body")
		return
	}

	err := h.chats.SendMessage(c.Request.Context(), c.Param("chat_id"), req.Text)
	switch {
	case err == nil:
		c.JSON(http.StatusOK, gin.H{"status": "sent"})
	case errors.Is(err, service.ErrClientNotInitialized),
		errors.Is(err, service.ErrEmptyText),
		errors.Is(err, service.ErrInvalidChatID),
		errors.Is(err, platform.ErrNotConnected),
		errors.Is(err, platform.ErrUnauthorized):
		abortWithError(c, err)
	default:
		_ = c.Error(err)
		abortWithDetail(c, http.StatusInternalServerError, "Failed to send message")
	}
}

// pageParams reads offset and limit, writing a 400 on malformed values.
func pageParams(c *gin.Context) (offset, limit int, ok bool) {
	offset, err := strconv.Atoi(c.DefaultQuery("offset", "0"))
	if err != nil || offset < 0 {
		abortWithDetail(c, http.StatusBadRequest, "offset must be a non-negative integer")
		return 0, 0, false
	}
	limit, err = strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(defaultMessageLimit)))
	if err != nil || limit < 1 {
		abortWithDetail(c, http.StatusBadRequest, "limit must be a positive integer")
		return 0, 0, false
	}
	return offset, limit, true
}
