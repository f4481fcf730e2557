package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/IvanBaradan/Tatargram/internal/service"
)

// Syncer runs one mirror pass.
type Syncer interface {
	Sync(ctx context.Context) (*service.SyncResult, error)
}

type SyncHandler struct {
	syncer Syncer
	logger *zap.Logger
}

func NewSyncHandler(syncer Syncer, logger *zap.Logger) *SyncHandler {
	return &SyncHandler{syncer: syncer, logger: logger}
}

// Sync handles POST /api/sync
func (h *SyncHandler) Sync(c *gin.Context) {
	if h.syncer == nil {
		abortWithError(c, service.ErrClientNotInitialized)
		return
	}

	result, err := h.syncer.Sync(c.Request.Context())
	if err != nil {
		h.logger.Error("Sync failed", zap.Error(err))
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}
