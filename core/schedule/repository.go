package schedule

import (
	"context"
	"time"

	"github.com/kilianp07/soh/core/model"
)

// Repository persists schedules. A lookup that matches nothing returns a nil
// schedule and a nil error; failures are marked with ErrPersistence.
//
// Save inserts when s.ID is zero and assigns the new id. Otherwise it updates
// the row only if the stored version equals s.Version and returns ErrStale
// when it does not. On success s.Version holds the new version.
type Repository interface {
	Save(ctx context.Context, s *model.Schedule) error
	FindByID(ctx context.Context, id int64) (*model.Schedule, error)
	// FindByString returns one schedule of the string in any of states with status.
	FindByString(ctx context.Context, stringID string, states []model.State, status model.Status) (*model.Schedule, error)
	// FindDue returns schedules in state and status whose start is not after now.
	FindDue(ctx context.Context, now time.Time, state model.State, status model.Status) ([]model.Schedule, error)
	FindByStatus(ctx context.Context, status model.Status) ([]model.Schedule, error)
}
