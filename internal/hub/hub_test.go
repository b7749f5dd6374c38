package hub_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fflughiraeth/srpusher/internal/hub"
)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return logger
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// startHub 启动一个 Hub 和把连接注册进去的测试服务器。
func startHub(t *testing.T) (*hub.Hub, *httptest.Server, context.CancelFunc) {
	t.Helper()
	h := hub.NewHub(testLogger())
	ctx, cancel := context.WithCancel(context.Background())
	go h.Run(ctx)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade failed: %v", err)
			return
		}
		hub.NewClient(h, conn)
	}))
	t.Cleanup(func() {
		cancel()
		srv.Close()
	})
	return h, srv, cancel
}

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestHub_BroadcastReachesSubscriber(t *testing.T) {
	h, srv, _ := startHub(t)
	conn := dial(t, srv)

	require.Eventually(t, func() bool { return h.Clients() == 1 },
		2*time.Second, 10*time.Millisecond, "客户端应注册到 Hub")

	h.Broadcast([]byte(`{"event":"room_onlined"}`))

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, message, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.JSONEq(t, `{"event":"room_onlined"}`, string(message))
}

func TestHub_BroadcastFansOut(t *testing.T) {
	h, srv, _ := startHub(t)
	first := dial(t, srv)
	second := dial(t, srv)

	require.Eventually(t, func() bool { return h.Clients() == 2 },
		2*time.Second, 10*time.Millisecond)

	h.Broadcast([]byte(`{"event":"cycle_stats"}`))

	for _, conn := range []*websocket.Conn{first, second} {
		conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		_, message, err := conn.ReadMessage()
		require.NoError(t, err)
		assert.JSONEq(t, `{"event":"cycle_stats"}`, string(message))
	}
}

func TestHub_ClientDisconnectUnregisters(t *testing.T) {
	h, srv, _ := startHub(t)
	conn := dial(t, srv)

	require.Eventually(t, func() bool { return h.Clients() == 1 },
		2*time.Second, 10*time.Millisecond)

	conn.Close()
	assert.Eventually(t, func() bool { return h.Clients() == 0 },
		2*time.Second, 10*time.Millisecond, "断开的客户端应被注销")
}

func TestHub_ShutdownClosesSubscribers(t *testing.T) {
	h, srv, stop := startHub(t)
	conn := dial(t, srv)

	require.Eventually(t, func() bool { return h.Clients() == 1 },
		2*time.Second, 10*time.Millisecond)

	stop()

	// writePump 收到通道关闭后发出关闭帧，读端以错误结束
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err := conn.ReadMessage()
	assert.Error(t, err)
	assert.Eventually(t, func() bool { return h.Clients() == 0 },
		2*time.Second, 10*time.Millisecond)
}
