package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/IvanBaradan/Tatargram/internal/pagination"
	"github.com/IvanBaradan/Tatargram/internal/repository"
	"github.com/IvanBaradan/Tatargram/internal/service"
)

// StoredHandler reads mirrored records back from the database.
type StoredHandler struct {
	chats    repository.ChatRepository
	messages repository.MessageRepository
	logger   *zap.Logger
}

func NewStoredHandler(chats repository.ChatRepository, messages repository.MessageRepository, logger *zap.Logger) *StoredHandler {
	return &StoredHandler{chats: chats, messages: messages, logger: logger}
}

// GetChats handles GET /api/stored/chats
func (h *StoredHandler) GetChats(c *gin.Context) {
	chats, err := h.chats.ListChats(c.Request.Context())
	if err != nil {
		h.logger.Error("Failed to list stored chats", zap.Error(err))
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"chats": chats})
}

// GetMessages handles GET /api/stored/chats/:chat_id/messages
func (h *StoredHandler) GetMessages(c *gin.Context) {
	offset, limit, ok := pageParams(c)
	if !ok {
		return
	}
	chatID := c.Param("chat_id")
	if _, err := service.ParseChatID(chatID); err != nil {
		abortWithError(c, err)
		return
	}

	msgs, err := h.messages.ListMessages(c.Request.Context(), chatID, limit)
	if err != nil {
		h.logger.Error("Failed to list stored messages", zap.String("chat_id", chatID), zap.Error(err))
		abortWithError(c, err)
		return
	}

	window, total := pagination.Paginate(msgs, offset, limit)
	c.JSON(http.StatusOK, service.MessagePage{Messages: window, TotalCount: total})
}
