// Package websocket 把 HTTP 连接升级为事件流订阅。
package websocket

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/fflughiraeth/srpusher/internal/hub"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// 状态接口只在本机监听，不做来源校验。
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Handler 把连接升级为 WebSocket 并注册到 Hub。
type Handler struct {
	hub *hub.Hub
	log *logrus.Entry
}

// NewHandler 创建事件流处理器。
func NewHandler(h *hub.Hub, logger *logrus.Logger) *Handler {
	if h == nil {
		panic("Hub cannot be nil for websocket Handler")
	}
	return &Handler{
		hub: h,
		log: logger.WithField("component", "ws"),
	}
}

// Stream 处理 GET /ws。
func (h *Handler) Stream(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.WithError(err).Error("Failed to upgrade connection")
		return
	}
	hub.NewClient(h.hub, conn)
}
