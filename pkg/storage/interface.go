package storage

import (
	"context"
	"time"

	"github.com/solarflow/solarflow/pkg/types"
)

// Database defines the interface for persisting data and retrieving settings.
type Database interface {
	// Settings
	GetSettings(ctx context.Context) (types.Settings, int, error)
	SetSettings(ctx context.Context, settings types.Settings, version int) error

	// Data Persistence
	// UpsertDailyTotals adds or updates the record for the day in the totals.
	UpsertDailyTotals(ctx context.Context, totals types.DailyTotals, version int) error
	InsertSwitchEvent(ctx context.Context, event types.SwitchEvent) error

	// History
	GetDailyHistory(ctx context.Context, start, end time.Time) ([]types.DailyTotals, error)
	GetLatestDailyTotals(ctx context.Context) (*types.DailyTotals, error)
	GetSwitchEvents(ctx context.Context, start, end time.Time) ([]types.SwitchEvent, error)

	// Lifecycle
	Close() error
}
