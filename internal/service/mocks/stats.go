package mocks

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"

	"github.com/SergeiKhy/sourcetrace/internal/models"
)

// MockStatsRepository implements repository.StatsRepository on testify/mock:
// агрегаты проще задать ожиданиями, чем воспроизводить SQL в памяти
type MockStatsRepository struct {
	mock.Mock
}

func (m *MockStatsRepository) CountInstalls(ctx context.Context, workspaceID string, tr models.TimeRange) (int64, error) {
	args := m.Called(ctx, workspaceID, tr)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockStatsRepository) CountEvents(ctx context.Context, workspaceID string, name models.EventName, tr models.TimeRange) (int64, error) {
	args := m.Called(ctx, workspaceID, name, tr)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockStatsRepository) SumEventValue(ctx context.Context, workspaceID string, names []models.EventName, tr models.TimeRange) (decimal.Decimal, error) {
	args := m.Called(ctx, workspaceID, names, tr)
	return args.Get(0).(decimal.Decimal), args.Error(1)
}

func (m *MockStatsRepository) SumSpend(ctx context.Context, workspaceID string, tr models.TimeRange) (decimal.Decimal, error) {
	args := m.Called(ctx, workspaceID, tr)
	return args.Get(0).(decimal.Decimal), args.Error(1)
}

func (m *MockStatsRepository) InstallsByChannel(ctx context.Context, workspaceID string, since time.Time) ([]models.ChannelAggregate, error) {
	args := m.Called(ctx, workspaceID, since)
	return aggregates(args.Get(0)), args.Error(1)
}

func (m *MockStatsRepository) EventsByChannel(ctx context.Context, workspaceID string, name models.EventName, since time.Time) ([]models.ChannelAggregate, error) {
	args := m.Called(ctx, workspaceID, name, since)
	return aggregates(args.Get(0)), args.Error(1)
}

func (m *MockStatsRepository) EventValueByChannel(ctx context.Context, workspaceID string, names []models.EventName, since time.Time) ([]models.ChannelAggregate, error) {
	args := m.Called(ctx, workspaceID, names, since)
	return aggregates(args.Get(0)), args.Error(1)
}

func (m *MockStatsRepository) SpendByChannel(ctx context.Context, workspaceID string, since time.Time) ([]models.ChannelAggregate, error) {
	args := m.Called(ctx, workspaceID, since)
	return aggregates(args.Get(0)), args.Error(1)
}

func aggregates(v any) []models.ChannelAggregate {
	if v == nil {
		return nil
	}
	return v.([]models.ChannelAggregate)
}
