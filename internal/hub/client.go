package hub

import (
	"time"

	"github.com/gorilla/websocket"
)

const (
	// 向客户端写入消息的超时。
	writeWait = 10 * time.Second

	// 等待客户端 pong 的超时。
	pongWait = 60 * time.Second

	// ping 间隔，必须小于 pongWait。
	pingPeriod = (pongWait * 9) / 10

	// 客户端消息大小上限。事件流是只读的，客户端不应发送大消息。
	maxMessageSize = 512
)

// Client 代表一个连接到 Hub 的 WebSocket 订阅者。
type Client struct {
	hub  *Hub
	conn *websocket.Conn

	// 用于向此客户端发送消息的缓冲通道。
	send chan []byte
}

// NewClient 把一个已升级的 WebSocket 连接注册到 Hub 并启动读写泵。
func NewClient(h *Hub, conn *websocket.Conn) *Client {
	client := &Client{
		hub:  h,
		conn: conn,
		send: make(chan []byte, 64),
	}
	h.register <- client

	go client.writePump()
	go client.readPump()
	return client
}

// readPump 丢弃客户端发来的消息，只用来检测断开和处理 pong。
func (c *Client) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()
	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

// writePump 把 send 通道里的事件写到连接上，并定期发送 ping。
// 连接的唯一写入者：gorilla 不允许并发写，ping 也必须从这里发。
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// send 通道被 Hub 关闭，通知客户端。
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
