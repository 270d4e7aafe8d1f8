package storage

import (
	"context"

	"github.com/askelund/spotheat/core/model"
)

// SettingsRepository reads per-user optimization tuning. The engine never
// writes settings; updates arrive through the surrounding application.
type SettingsRepository interface {
	UserScheduleSettings(ctx context.Context, userID string) (model.ScheduleSettings, error)
}

// StateRepository persists the per-user reoptimization cursor. Writes are
// last-writer-wins; per-user serialization comes from the sequential batch
// loop and the job lease, not from the store.
type StateRepository interface {
	Load(ctx context.Context, userID string) (model.FlexibleState, error)
	Save(ctx context.Context, userID string, state model.FlexibleState) error
}

// HistoryRepository appends immutable decision snapshots.
type HistoryRepository interface {
	Append(ctx context.Context, entry model.HistoryEntry) error
	Latest(ctx context.Context, userID string) (model.HistoryEntry, bool, error)
}

// UserDirectory lists the users a batch run covers.
type UserDirectory interface {
	// AutoApplyUsers returns users opted in to device pushes.
	AutoApplyUsers(ctx context.Context) ([]string, error)
	// AllUsers returns every known user, for the daily recompute.
	AllUsers(ctx context.Context) ([]string, error)
}
