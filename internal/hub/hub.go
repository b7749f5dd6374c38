// Package hub 维护事件流 WebSocket 客户端集合并向其广播事件。
package hub

import (
	"context"
	"sync"

	"github.com/sirupsen/logrus"
)

// Hub 维护活跃客户端集合并把观察到的事件广播给所有订阅者。
// 对连接的写入全部发生在各客户端自己的 writePump 里，Hub 只操作通道。
type Hub struct {
	// 注册请求通道。
	register chan *Client

	// 注销请求通道。
	unregister chan *Client

	// 待广播的事件 (已序列化为 JSON)。
	broadcast chan []byte

	// 当前在线的客户端集合。
	clients map[*Client]bool

	// 保护 clients map 的互斥锁。
	clientsMu sync.RWMutex

	log *logrus.Entry
}

// NewHub 创建并返回一个新的 Hub 实例。
func NewHub(logger *logrus.Logger) *Hub {
	return &Hub{
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan []byte, 256),
		clients:    make(map[*Client]bool),
		log:        logger.WithField("component", "hub"),
	}
}

// Broadcast 把一条消息排队发给所有已连接客户端。通道满时丢弃，
// 事件流是尽力而为的，不能反压轮询循环。
func (h *Hub) Broadcast(message []byte) {
	select {
	case h.broadcast <- message:
	default:
		h.log.Warn("Broadcast channel full, dropping event")
	}
}

// Clients 返回当前连接数，供状态接口使用。
func (h *Hub) Clients() int {
	h.clientsMu.RLock()
	defer h.clientsMu.RUnlock()
	return len(h.clients)
}

// Run 启动 Hub 的主循环，监听并处理来自通道的消息。
// ctx 取消时关闭所有客户端并返回。
func (h *Hub) Run(ctx context.Context) {
	h.log.Info("Hub is running")

	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			h.log.Info("Hub stopped")
			return

		case client := <-h.register:
			h.clientsMu.Lock()
			h.clients[client] = true
			h.clientsMu.Unlock()
			h.log.WithField("remote", client.conn.RemoteAddr().String()).Info("Client registered")

		case client := <-h.unregister:
			h.clientsMu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			h.clientsMu.Unlock()
			h.log.WithField("remote", client.conn.RemoteAddr().String()).Info("Client unregistered")

		case message := <-h.broadcast:
			h.clientsMu.Lock()
			for client := range h.clients {
				select {
				case client.send <- message:
				default:
					// 发送通道已满，客户端处理缓慢或已断开，直接剔除。
					h.log.WithField("remote", client.conn.RemoteAddr().String()).Warn("Client send channel full, closing connection")
					close(client.send)
					delete(h.clients, client)
				}
			}
			h.clientsMu.Unlock()
		}
	}
}

// closeAll 在停机时关闭全部客户端的发送通道，writePump 随之发出关闭帧退出。
func (h *Hub) closeAll() {
	h.clientsMu.Lock()
	defer h.clientsMu.Unlock()
	for client := range h.clients {
		close(client.send)
		delete(h.clients, client)
	}
}
