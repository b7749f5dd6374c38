package repository

import (
	"context"

	"github.com/fflughiraeth/srpusher/internal/domain"
)

// StateRepository 定义了监视器的全部共享可变状态，通常由 Redis 实现。
// 设计假定同一时刻只有一个进程写它；多实例共享同一存储不在契约内。
type StateRepository interface {
	// === Entity detail cache ===

	// SaveUser 缓存一个成员的最后已知状态 (1 小时 TTL)。
	// member.Online 必须已由调用方显式设置。
	SaveUser(ctx context.Context, member *domain.Member) error

	// GetUser 读取成员缓存。未命中或反序列化失败返回 ErrNotFound。
	GetUser(ctx context.Context, userID string) (*domain.Member, error)

	// SaveRoom 缓存一个房间的最后已知状态 (1 小时 TTL)。
	SaveRoom(ctx context.Context, roomID string, room *domain.Room) error

	// GetRoom 读取房间缓存。未命中或反序列化失败返回 ErrNotFound。
	GetRoom(ctx context.Context, roomID string) (*domain.Room, error)

	// === Presence sets ===

	// ReplaceSet 清空并重建一个在线集合 (1 周 TTL)。空 id 被跳过。
	ReplaceSet(ctx context.Context, key string, ids []string) error

	// DiffSets 返回 key1 − key2 的集合差 (顺序不保证)。
	DiffSets(ctx context.Context, key1, key2 string) ([]string, error)

	// AdvanceSet 把 current 推进为 previous (previous := current 后 current 消失)。
	// retain 为 true 时改用复制，current 保留用于调试检查。
	AdvanceSet(ctx context.Context, src, dst string, retain bool) error

	// === Keyword dedup markers ===

	// MarkKeyword 检查并记录一个关键词命中 (滑动 1 小时窗口)。
	// 返回 true 表示窗口内已经出现过；无论哪种情况窗口都会被延长/设置。
	// 检查和记录合并为一个操作，调用方不得投机性地调用它。
	MarkKeyword(ctx context.Context, keyword string) (bool, error)

	// === Controller state ===

	// PreviousWait 读取上个周期持久化的平滑等待秒数。未设置时返回 ErrNotFound。
	PreviousWait(ctx context.Context) (float64, error)

	// SavePreviousWait 持久化本周期的平滑等待秒数。
	SavePreviousWait(ctx context.Context, seconds float64) error
}
