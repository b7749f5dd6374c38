// Package http 暴露运行状态的只读 HTTP 接口。
package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/fflughiraeth/srpusher/internal/hub"
	"github.com/fflughiraeth/srpusher/internal/observer"
)

// StatusHandler 提供 /ping 和 /status 路由。
type StatusHandler struct {
	telemetry *observer.Telemetry
	hub       *hub.Hub
}

// NewStatusHandler 创建状态处理器。hub 可以为 nil (事件流未启用)。
func NewStatusHandler(telemetry *observer.Telemetry, h *hub.Hub) *StatusHandler {
	if telemetry == nil {
		panic("Telemetry cannot be nil for StatusHandler")
	}
	return &StatusHandler{telemetry: telemetry, hub: h}
}

// Ping 健康检查。
func (s *StatusHandler) Ping(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"message": "pong"})
}

// Status 返回最近一个周期的计数快照。
func (s *StatusHandler) Status(c *gin.Context) {
	snapshot := s.telemetry.Snapshot()
	resp := gin.H{"status": snapshot}
	if s.hub != nil {
		resp["stream_clients"] = s.hub.Clients()
	}
	c.JSON(http.StatusOK, resp)
}
