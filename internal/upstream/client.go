// Package upstream 实现对第三方状态 API 的抓取。
// 对核心而言它只是一个返回解析后快照或错误的黑盒 Fetcher。
package upstream

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/fflughiraeth/srpusher/internal/domain"
)

// DefaultUserAgent 在配置未指定时使用。
const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/119.0.0.0 Safari/537.36"

// Client 抓取上游状态 API。
type Client struct {
	httpClient *http.Client
	url        string
	userAgent  string
	log        *logrus.Entry
}

// NewClient 创建上游客户端。
// 配置里的 api_url 允许以 rot13 形式伪装 ("uggcf://...")，在这里解码。
func NewClient(apiURL, userAgent string, timeout time.Duration, logger *logrus.Logger) *Client {
	if strings.HasPrefix(apiURL, "uggcf://") || strings.HasPrefix(apiURL, "uggc://") {
		apiURL = rot13(apiURL)
	}
	if userAgent == "" {
		userAgent = DefaultUserAgent
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		url:        apiURL,
		userAgent:  userAgent,
		log:        logger.WithField("component", "upstream"),
	}
}

// Fetch 执行一次抓取。非 2xx 状态作为错误返回，由快照缓存决定降级策略。
func (c *Client) Fetch(ctx context.Context) (*domain.Snapshot, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return nil, fmt.Errorf("upstream: failed to build request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("upstream: request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 16<<20))
	if err != nil {
		return nil, fmt.Errorf("upstream: failed to read response body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		excerpt := string(body)
		if len(excerpt) > 200 {
			excerpt = excerpt[:200]
		}
		return nil, fmt.Errorf("upstream: unexpected status %d: %s", resp.StatusCode, excerpt)
	}

	var snapshot domain.Snapshot
	if err := json.Unmarshal(body, &snapshot); err != nil {
		return nil, fmt.Errorf("upstream: failed to decode snapshot: %w", err)
	}
	c.log.WithField("rooms", snapshot.NumRooms()).Debug("Snapshot fetched")
	return &snapshot, nil
}

// rot13 解码伪装过的 URL。
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
