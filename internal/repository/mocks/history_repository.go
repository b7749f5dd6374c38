package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/fflughiraeth/srpusher/internal/domain"
)

// HistoryRepository 是 repository.HistoryRepository 的 Mock。
type HistoryRepository struct {
	mock.Mock
}

func (m *HistoryRepository) SaveRecord(ctx context.Context, record *domain.TransitionRecord) error {
	args := m.Called(ctx, record)
	return args.Error(0)
}

func (m *HistoryRepository) RecentRecords(ctx context.Context, limit int) ([]domain.TransitionRecord, error) {
	args := m.Called(ctx, limit)
	if r := args.Get(0); r != nil {
		return r.([]domain.TransitionRecord), args.Error(1)
	}
	return nil, args.Error(1)
}
