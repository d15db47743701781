// Package schedule implements the lifecycle of SoH discharge test schedules:
// creation, rescheduling, stop requests, soft removal and listing. Every
// operation is a guarded transition validated against the persisted state.
package schedule

import (
	"context"
	"math"
	"strings"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/kilianp07/soh/core/clock"
	"github.com/kilianp07/soh/core/events"
	"github.com/kilianp07/soh/core/logger"
	"github.com/kilianp07/soh/core/model"
)

// OpenStates are the states counted by the one-test-per-string rule.
var OpenStates = []model.State{model.StatePending, model.StateRunning}

// Service exposes the schedule operations consumed by the API layer.
type Service struct {
	repo   Repository
	clock  clock.Clock
	events events.Publisher
	log    logger.Logger
}

// NewService creates a Service. A nil clock defaults to the system clock and
// a nil publisher drops events.
func NewService(repo Repository, clk clock.Clock, pub events.Publisher, log logger.Logger) (*Service, error) {
	if repo == nil || log == nil {
		return nil, errors.New("schedule: nil parameter provided to NewService")
	}
	if clk == nil {
		clk = clock.System{}
	}
	if pub == nil {
		pub = events.NopPublisher{}
	}
	return &Service{repo: repo, clock: clk, events: pub, log: log}, nil
}

// Create registers a new pending test for stringID starting at start.
func (s *Service) Create(ctx context.Context, stringID string, start time.Time, current float64) (model.Schedule, error) {
	stringID = strings.TrimSpace(stringID)
	switch {
	case stringID == "":
		return model.Schedule{}, errors.Wrap(ErrValidation, "string id is required")
	case start.IsZero():
		return model.Schedule{}, errors.Wrap(ErrValidation, "start time is required")
	case math.IsNaN(current) || math.IsInf(current, 0):
		return model.Schedule{}, errors.Wrapf(ErrValidation, "current %v is not a number", current)
	}
	existing, err := s.repo.FindByString(ctx, stringID, OpenStates, model.StatusActive)
	if err != nil {
		return model.Schedule{}, err
	}
	if existing != nil {
		return model.Schedule{}, errors.Wrapf(ErrConflict,
			"string %s already has schedule %d in state %s", stringID, existing.ID, existing.State)
	}
	sched := model.NewSchedule(stringID, current, start)
	sched.Updated = s.clock.Now()
	if err := s.repo.Save(ctx, &sched); err != nil {
		return model.Schedule{}, err
	}
	s.log.Infof("schedule %d created for string %s starting %s", sched.ID, stringID, start.Format(time.RFC3339))
	s.events.Publish(events.NewScheduleEvent(events.ActionCreated, sched, model.StatePending))
	return sched, nil
}

// Update moves the start time of a pending schedule.
func (s *Service) Update(ctx context.Context, id int64, start time.Time) (model.Schedule, error) {
	if start.IsZero() {
		return model.Schedule{}, errors.Wrap(ErrValidation, "start time is required")
	}
	sched, err := s.require(ctx, id, model.StatePending)
	if err != nil {
		return model.Schedule{}, err
	}
	sched.Start = start
	sched.Updated = s.clock.Now()
	if err := s.repo.Save(ctx, sched); err != nil {
		return model.Schedule{}, err
	}
	s.log.Infof("schedule %d rescheduled to %s", id, start.Format(time.RFC3339))
	s.events.Publish(events.NewScheduleEvent(events.ActionUpdated, *sched, model.StatePending))
	return *sched, nil
}

// Stop requests the end of a running test. The calculator owning the
// schedule finalizes it on its next iteration.
func (s *Service) Stop(ctx context.Context, id int64) (model.Schedule, error) {
	sched, err := s.require(ctx, id, model.StateRunning)
	if err != nil {
		return model.Schedule{}, err
	}
	sched.State = model.StateStopped
	sched.Updated = s.clock.Now()
	if err := s.repo.Save(ctx, sched); err != nil {
		return model.Schedule{}, err
	}
	s.log.Infof("schedule %d stop requested", id)
	s.events.Publish(events.NewScheduleEvent(events.ActionStopped, *sched, model.StateRunning))
	return *sched, nil
}

// Remove soft-deletes a pending schedule.
func (s *Service) Remove(ctx context.Context, id int64) (model.Schedule, error) {
	sched, err := s.require(ctx, id, model.StatePending)
	if err != nil {
		return model.Schedule{}, err
	}
	sched.Status = model.StatusInactive
	sched.Updated = s.clock.Now()
	if err := s.repo.Save(ctx, sched); err != nil {
		return model.Schedule{}, err
	}
	s.log.Infof("schedule %d removed", id)
	s.events.Publish(events.NewScheduleEvent(events.ActionRemoved, *sched, model.StatePending))
	return *sched, nil
}

// List returns every active schedule. Callers must not rely on ordering.
func (s *Service) List(ctx context.Context) ([]model.ScheduleView, error) {
	scheds, err := s.repo.FindByStatus(ctx, model.StatusActive)
	if err != nil {
		return nil, err
	}
	views := make([]model.ScheduleView, 0, len(scheds))
	for _, sc := range scheds {
		views = append(views, sc.View())
	}
	return views, nil
}

// Get returns a schedule in any state.
func (s *Service) Get(ctx context.Context, id int64) (model.Schedule, error) {
	sched, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return model.Schedule{}, err
	}
	if sched == nil {
		return model.Schedule{}, errors.Wrapf(ErrNotFound, "no schedule with id %d", id)
	}
	return *sched, nil
}

// require loads id and checks it is active and in state.
func (s *Service) require(ctx context.Context, id int64, state model.State) (*model.Schedule, error) {
	sched, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if sched == nil || !sched.Matches([]model.State{state}, model.StatusActive) {
		return nil, errors.Wrapf(ErrNotFound, "no %s schedule with id %d", strings.ToLower(state.String()), id)
	}
	return sched, nil
}
