package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/IvanBaradan/Tatargram/internal/service"
)

type AuthHandler interface {
	SubmitCode(c *gin.Context)
	SubmitPassword(c *gin.Context)
}

type authHandler struct {
	chats  service.ChatService
	logger *zap.Logger
}

func NewAuthHandler(chats service.ChatService, logger *zap.Logger) AuthHandler {
	return &authHandler{chats: chats, logger: logger}
}

type authCodeRequest struct {
	Code string `json:"code"`
}

type authPasswordRequest struct {
	Password string `json:"password"`
}

// SubmitCode handles POST /api/auth/code
func (h *authHandler) SubmitCode(c *gin.Context) {
	var req authCodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithDetail(c, http.StatusBadRequest, "Invalid request body")
		return
	}

	if err := h.chats.SubmitAuthCode(c.Request.Context(), req.Code); err != nil {
		abortWithError(c, err)
		return
	}
	h.logger.Info("Authentication code accepted")
	c.JSON(http.StatusOK, gin.H{"status": "success", "message": "Authentication code accepted"})
}

// SubmitPassword handles POST /api/auth/password
func (h *authHandler) SubmitPassword(c *gin.Context) {
	var req authPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithDetail(c, http.StatusBadRequest, "Invalid request body")
		return
	}

	if err := h.chats.SubmitPassword(c.Request.Context(), req.Password); err != nil {
		abortWithError(c, err)
		return
	}
	h.logger.Info("Two-factor password accepted")
	c.JSON(http.StatusOK, gin.H{"status": "success", "message": "Password accepted"})
}
