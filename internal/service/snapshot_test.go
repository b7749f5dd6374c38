package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"

	"github.com/fflughiraeth/srpusher/internal/domain"
)

// 内部测试：需要控制 now 来模拟新鲜窗口的流逝。

type countingFetcher struct {
	calls    int
	snapshot *domain.Snapshot
	err      error
}

func (f *countingFetcher) Fetch(ctx context.Context) (*domain.Snapshot, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.snapshot, nil
}

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return logger
}

func TestSnapshotCache_FreshWindowSuppressesRefetch(t *testing.T) {
	fetcher := &countingFetcher{snapshot: &domain.Snapshot{TotalPublishedRooms: 1}}
	cache := NewSnapshotCache(fetcher, 10*time.Second, quietLogger())

	clock := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	cache.now = func() time.Time { return clock }

	ctx := context.Background()
	first := cache.Current(ctx)
	assert.NotNil(t, first)
	assert.Equal(t, 1, fetcher.calls)

	// 窗口内的重复调用命中内存
	clock = clock.Add(5 * time.Second)
	assert.Same(t, first, cache.Current(ctx))
	assert.Equal(t, 1, fetcher.calls)

	// 窗口过期后重新抓取
	clock = clock.Add(6 * time.Second)
	cache.Current(ctx)
	assert.Equal(t, 2, fetcher.calls)
}

func TestSnapshotCache_ServesStaleOnError(t *testing.T) {
	good := &domain.Snapshot{TotalPublishedRooms: 7}
	fetcher := &countingFetcher{snapshot: good}
	cache := NewSnapshotCache(fetcher, 10*time.Second, quietLogger())

	clock := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	cache.now = func() time.Time { return clock }

	ctx := context.Background()
	assert.Same(t, good, cache.Current(ctx))

	// 上游开始失败：继续提供上一个好值
	fetcher.err = errors.New("upstream down")
	clock = clock.Add(time.Minute)
	assert.Same(t, good, cache.Current(ctx))
}

func TestSnapshotCache_NilWhenNeverFetched(t *testing.T) {
	fetcher := &countingFetcher{err: errors.New("upstream down")}
	cache := NewSnapshotCache(fetcher, 10*time.Second, quietLogger())

	assert.Nil(t, cache.Current(context.Background()), "从未成功过时返回 nil")
}

func TestSnapshotCache_UnconfiguredSource(t *testing.T) {
	cache := NewSnapshotCache(nil, 0, quietLogger())
	assert.False(t, cache.Configured())
	assert.Nil(t, cache.Current(context.Background()))
}
