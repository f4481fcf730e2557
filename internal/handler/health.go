package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Health handles GET /health. It never touches the Telegram client.
func Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "healthy"})
}

// Welcome handles GET /
func Welcome(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"message": "Tatargram Telegram bridge is running. Chats are served under /api/chats",
	})
}
