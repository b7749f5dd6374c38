package repository

import (
	"context"

	"github.com/fflughiraeth/srpusher/internal/domain"
)

// HistoryRepository 定义了状态迁移历史的持久化操作，由 GORM/MySQL 实现。
type HistoryRepository interface {
	// SaveRecord 追加一条迁移记录。
	SaveRecord(ctx context.Context, record *domain.TransitionRecord) error

	// RecentRecords 按时间倒序返回最近的 limit 条记录。
	RecentRecords(ctx context.Context, limit int) ([]domain.TransitionRecord, error)
}
