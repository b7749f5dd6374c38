package gormpersistence

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/fflughiraeth/srpusher/internal/domain"
)

// GormHistoryRepository 是 HistoryRepository 接口的 GORM/MySQL 实现。
type GormHistoryRepository struct {
	db *gorm.DB
}

// NewGormHistoryRepository 创建 GormHistoryRepository 实例。
func NewGormHistoryRepository(db *gorm.DB) *GormHistoryRepository {
	if db == nil {
		panic("gorm DB cannot be nil for GormHistoryRepository")
	}
	return &GormHistoryRepository{db: db}
}

// SaveRecord 追加一条迁移记录。
func (r *GormHistoryRepository) SaveRecord(ctx context.Context, record *domain.TransitionRecord) error {
	if record == nil {
		return fmt.Errorf("gorm: cannot save nil transition record")
	}
	if err := r.db.WithContext(ctx).Create(record).Error; err != nil {
		return fmt.Errorf("gorm: failed to save transition record (%s/%s): %w", record.Event, record.EntityID, err)
	}
	return nil
}

// RecentRecords 按时间倒序返回最近的记录。
func (r *GormHistoryRepository) RecentRecords(ctx context.Context, limit int) ([]domain.TransitionRecord, error) {
	if limit <= 0 {
		limit = 100
	}
	var records []domain.TransitionRecord
	err := r.db.WithContext(ctx).
		Order("created_at DESC").
		Limit(limit).
		Find(&records).Error
	if err != nil {
		return nil, fmt.Errorf("gorm: failed to query recent transition records: %w", err)
	}
	return records, nil
}
