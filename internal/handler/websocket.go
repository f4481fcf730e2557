package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/IvanBaradan/Tatargram/internal/metrics"
)

const (
	wsReadLimit    = int64(64 << 10)
	wsWriteTimeout = 10 * time.Second
)

// WebSocketHandler echoes text frames on /ws/chats/.
type WebSocketHandler struct {
	upgrader websocket.Upgrader
	logger   *zap.Logger
}

func NewWebSocketHandler(logger *zap.Logger) *WebSocketHandler {
	return &WebSocketHandler{
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		logger: logger,
	}
}

func (h *WebSocketHandler) HandleWebSocket(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("WebSocket upgrade failed", zap.Error(err))
		return
	}

	metrics.WebSocketConnectionsActive.Inc()
	h.logger.Debug("WebSocket connected", zap.String("remote_addr", c.ClientIP()))
	h.readLoop(conn)
}

func (h *WebSocketHandler) readLoop(conn *websocket.Conn) {
	defer func() {
		metrics.WebSocketConnectionsActive.Dec()
		_ = conn.Close()
	}()

	conn.SetReadLimit(wsReadLimit)
	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				h.logger.Debug("WebSocket read failed", zap.Error(err))
			}
			return
		}
		if msgType != websocket.TextMessage {
			continue
		}

		_ = conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
		if err := conn.WriteMessage(websocket.TextMessage, []byte("You sent: "+string(data))); err != nil {
			h.logger.Debug("WebSocket write failed", zap.Error(err))
			return
		}
	}
}
