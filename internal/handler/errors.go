package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/IvanBaradan/Tatargram/internal/platform"
	"github.com/IvanBaradan/Tatargram/internal/repository"
	"github.com/IvanBaradan/Tatargram/internal/service"
)

// errorResponse is the body of every failed request.
type errorResponse struct {
	Detail string `json:"detail"`
}

func abortWithDetail(c *gin.Context, status int, detail string) {
	c.AbortWithStatusJSON(status, errorResponse{Detail: detail})
}

// abortWithError maps err onto a status and a detail string. Unknown
// errors are upstream failures and surface as 500 with their message.
func abortWithError(c *gin.Context, err error) {
	_ = c.Error(err)

	switch {
	case errors.Is(err, service.ErrClientNotInitialized):
		abortWithDetail(c, http.StatusServiceUnavailable, "Telegram client not initialized")
	case errors.Is(err, platform.ErrNotConnected):
		abortWithDetail(c, http.StatusServiceUnavailable, "Telegram client not connected")
	case errors.Is(err, platform.ErrUnauthorized):
		abortWithDetail(c, http.StatusUnauthorized, "Telegram account is not authorized")
	case errors.Is(err, platform.ErrChatNotFound), errors.Is(err, repository.ErrNotFound):
		abortWithDetail(c, http.StatusNotFound, "Chat not found")
	case errors.Is(err, service.ErrEmptyText):
		abortWithDetail(c, http.StatusBadRequest, "Message text cannot be empty")
	case errors.Is(err, service.ErrInvalidChatID), errors.Is(err, service.ErrEmptySecret):
		abortWithDetail(c, http.StatusBadRequest, err.Error())
	default:
		abortWithDetail(c, http.StatusInternalServerError, err.Error())
	}
}
