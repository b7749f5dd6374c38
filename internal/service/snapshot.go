// Package service 实现监视器的核心业务逻辑：
// 快照缓存、在线集合 diff 引擎、关键词匹配与自适应轮询控制。
package service

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/fflughiraeth/srpusher/internal/domain"
)

// Fetcher 是上游抓取的黑盒接口：返回解析后的快照或错误。
type Fetcher interface {
	Fetch(ctx context.Context) (*domain.Snapshot, error)
}

// DefaultFreshWindow 是同一控制周期内视为新鲜的窗口。
const DefaultFreshWindow = 10 * time.Second

// SnapshotCache 记忆上一次成功抓取的快照，避免短窗口内的冗余调用。
// serve-stale-on-error：抓取失败时记录日志并返回上一个好值 (可能已过期)，
// 而不是把失败向上传播。
// 只在控制循环的单个 goroutine 上使用，不加锁。
type SnapshotCache struct {
	fetcher   Fetcher
	freshFor  time.Duration
	last      *domain.Snapshot
	fetchedAt time.Time
	now       func() time.Time
	log       *logrus.Entry
}

// NewSnapshotCache 创建快照缓存。fetcher 为 nil 时 Current 恒返回空快照
// (备用源未配置是正常情况)。
func NewSnapshotCache(fetcher Fetcher, freshFor time.Duration, logger *logrus.Logger) *SnapshotCache {
	if freshFor <= 0 {
		freshFor = DefaultFreshWindow
	}
	return &SnapshotCache{
		fetcher:  fetcher,
		freshFor: freshFor,
		now:      time.Now,
		log:      logger.WithField("component", "snapshot_cache"),
	}
}

// Configured 报告是否注入了抓取器。
func (c *SnapshotCache) Configured() bool {
	return c != nil && c.fetcher != nil
}

// Current 返回当前快照。
// 从未成功抓取且本次也失败时返回 nil —— 下游必须容忍空快照。
func (c *SnapshotCache) Current(ctx context.Context) *domain.Snapshot {
	if c == nil || c.fetcher == nil {
		return nil
	}
	if c.last != nil && c.now().Sub(c.fetchedAt) < c.freshFor {
		return c.last
	}
	snapshot, err := c.fetcher.Fetch(ctx)
	if err != nil {
		c.log.WithError(err).Error("Upstream fetch failed, serving last good snapshot")
		return c.last
	}
	c.last = snapshot
	c.fetchedAt = c.now()
	return c.last
}
