package storagemock

import (
	"context"
	"time"

	"github.com/solarflow/solarflow/pkg/storage"
	"github.com/solarflow/solarflow/pkg/types"
	"github.com/stretchr/testify/mock"
)

type MockDatabase struct {
	mock.Mock
}

var _ storage.Database = (*MockDatabase)(nil)

func (m *MockDatabase) GetSettings(ctx context.Context) (types.Settings, int, error) {
	args := m.Called(ctx)
	// return empty if not specified, or checks args
	if len(args) > 0 {
		return args.Get(0).(types.Settings), args.Int(1), args.Error(2)
	}
	return types.Settings{}, 0, nil
}

func (m *MockDatabase) SetSettings(ctx context.Context, settings types.Settings, version int) error {
	args := m.Called(ctx, settings, version)
	return args.Error(0)
}

func (m *MockDatabase) UpsertDailyTotals(ctx context.Context, totals types.DailyTotals, version int) error {
	args := m.Called(ctx, totals, version)
	return args.Error(0)
}

func (m *MockDatabase) InsertSwitchEvent(ctx context.Context, event types.SwitchEvent) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

func (m *MockDatabase) GetDailyHistory(ctx context.Context, start, end time.Time) ([]types.DailyTotals, error) {
	args := m.Called(ctx, start, end)
	if len(args) > 0 {
		return args.Get(0).([]types.DailyTotals), args.Error(1)
	}
	return nil, nil
}

func (m *MockDatabase) GetLatestDailyTotals(ctx context.Context) (*types.DailyTotals, error) {
	args := m.Called(ctx)
	val := args.Get(0)
	if val == nil {
		return nil, args.Error(1)
	}
	return val.(*types.DailyTotals), args.Error(1)
}

func (m *MockDatabase) GetSwitchEvents(ctx context.Context, start, end time.Time) ([]types.SwitchEvent, error) {
	args := m.Called(ctx, start, end)
	if len(args) > 0 {
		return args.Get(0).([]types.SwitchEvent), args.Error(1)
	}
	return nil, nil
}

func (m *MockDatabase) Close() error {
	args := m.Called()
	return args.Error(0)
}
