package upstream_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fflughiraeth/srpusher/internal/upstream"
)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return logger
}

// rot13 把测试服务器的 URL 编码成配置里的伪装形式。
func rot13(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z':
			return 'a' + (r-'a'+13)%26
		case r >= 'A' && r <= 'Z':
			return 'A' + (r-'A'+13)%26
		default:
			return r
		}
	}, s)
}

func TestFetch_SendsUserAgent(t *testing.T) {
	var gotUA string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		w.Write([]byte(`{"rooms":[]}`))
	}))
	defer srv.Close()

	c := upstream.NewClient(srv.URL, "custom-agent/1.0", time.Second, testLogger())
	_, err := c.Fetch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "custom-agent/1.0", gotUA)
}

func TestFetch_DefaultUserAgentWhenUnset(t *testing.T) {
	var gotUA string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		w.Write([]byte(`{"rooms":[]}`))
	}))
	defer srv.Close()

	c := upstream.NewClient(srv.URL, "", time.Second, testLogger())
	_, err := c.Fetch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, upstream.DefaultUserAgent, gotUA)
}

func TestFetch_DecodesMaskedURL(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"rooms":[{"roomName":"masked"}]}`))
	}))
	defer srv.Close()

	// 配置里的 api_url 以 rot13 伪装 ("uggc://...")，客户端应解码后请求
	masked := rot13(srv.URL)
	require.True(t, strings.HasPrefix(masked, "uggc://"))

	c := upstream.NewClient(masked, "", time.Second, testLogger())
	snapshot, err := c.Fetch(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, snapshot.NumRooms())
	assert.Equal(t, "masked", snapshot.Rooms[0].RoomName)
}

func TestFetch_ToleratesMissingKeys(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// rooms 缺失、房间无 members 都不是错误
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	c := upstream.NewClient(srv.URL, "", time.Second, testLogger())
	snapshot, err := c.Fetch(context.Background())
	require.NoError(t, err)
	require.NotNil(t, snapshot)
	assert.Equal(t, 0, snapshot.NumRooms())
}

func TestFetch_ParsesRoomsAndMembers(t *testing.T) {
	body := `{
		"rooms": [{
			"roomName": "部屋",
			"roomDesc": "説明",
			"numMembers": 1,
			"needPasswd": true,
			"createTime": "2024-03-01 12:00:00 GMT",
			"creator": {"nsgmMemberId": "creator-1", "nickname": "host"},
			"members": [{"userId": "U1", "nickname": "たろう"}]
		}],
		"totalPublishedRooms": 1
	}`
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(body))
	}))
	defer srv.Close()

	c := upstream.NewClient(srv.URL, "", time.Second, testLogger())
	snapshot, err := c.Fetch(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, snapshot.NumRooms())

	room := snapshot.Rooms[0]
	assert.Equal(t, "部屋", room.RoomName)
	assert.True(t, room.NeedPasswd)
	assert.Equal(t, "creator-1", room.ActorID())
	require.Len(t, room.Members, 1)
	assert.Equal(t, "u1", room.Members[0].Key())
}

func TestFetch_NonOKStatusIsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream exploded", http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := upstream.NewClient(srv.URL, "", time.Second, testLogger())
	snapshot, err := c.Fetch(context.Background())
	require.Error(t, err)
	assert.Nil(t, snapshot)
	assert.Contains(t, err.Error(), "500")
	assert.Contains(t, err.Error(), "upstream exploded", "错误里带响应摘录帮助排查")
}

func TestFetch_MalformedBodyIsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html>not json</html>`))
	}))
	defer srv.Close()

	c := upstream.NewClient(srv.URL, "", time.Second, testLogger())
	_, err := c.Fetch(context.Background())
	require.Error(t, err)
}
