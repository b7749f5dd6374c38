// Package mocks 提供仓储接口的 testify Mock 实现，仅用于测试。
package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/fflughiraeth/srpusher/internal/domain"
)

// StateRepository 是 repository.StateRepository 的 Mock。
type StateRepository struct {
	mock.Mock
}

func (m *StateRepository) SaveUser(ctx context.Context, member *domain.Member) error {
	args := m.Called(ctx, member)
	return args.Error(0)
}

func (m *StateRepository) GetUser(ctx context.Context, userID string) (*domain.Member, error) {
	args := m.Called(ctx, userID)
	if u := args.Get(0); u != nil {
		return u.(*domain.Member), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *StateRepository) SaveRoom(ctx context.Context, roomID string, room *domain.Room) error {
	args := m.Called(ctx, roomID, room)
	return args.Error(0)
}

func (m *StateRepository) GetRoom(ctx context.Context, roomID string) (*domain.Room, error) {
	args := m.Called(ctx, roomID)
	if r := args.Get(0); r != nil {
		return r.(*domain.Room), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *StateRepository) ReplaceSet(ctx context.Context, key string, ids []string) error {
	args := m.Called(ctx, key, ids)
	return args.Error(0)
}

func (m *StateRepository) DiffSets(ctx context.Context, key1, key2 string) ([]string, error) {
	args := m.Called(ctx, key1, key2)
	if ids := args.Get(0); ids != nil {
		return ids.([]string), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *StateRepository) AdvanceSet(ctx context.Context, src, dst string, retain bool) error {
	args := m.Called(ctx, src, dst, retain)
	return args.Error(0)
}

func (m *StateRepository) MarkKeyword(ctx context.Context, keyword string) (bool, error) {
	args := m.Called(ctx, keyword)
	return args.Bool(0), args.Error(1)
}

func (m *StateRepository) PreviousWait(ctx context.Context) (float64, error) {
	args := m.Called(ctx)
	return args.Get(0).(float64), args.Error(1)
}

func (m *StateRepository) SavePreviousWait(ctx context.Context, seconds float64) error {
	args := m.Called(ctx, seconds)
	return args.Error(0)
}
