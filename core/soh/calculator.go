package soh

import (
	"context"
	"strconv"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/kilianp07/soh/core/events"
	"github.com/kilianp07/soh/core/metrics"
	"github.com/kilianp07/soh/core/model"
	"github.com/kilianp07/soh/core/reading"
	"github.com/kilianp07/soh/core/schedule"
)

var calculatorStates = []model.State{model.StateRunning, model.StateStopped}

// Calculator integrates the discharge of one schedule until it reaches a
// terminal state.
type Calculator struct {
	id       int64
	interval time.Duration
	abandon  bool
	deps     Deps
}

// NewCalculator creates the worker for schedule id.
func NewCalculator(id int64, cfg Config, deps Deps) (*Calculator, error) {
	deps, err := deps.withDefaults()
	if err != nil {
		return nil, err
	}
	return &Calculator{id: id, interval: cfg.Interval(), abandon: cfg.Abandon(), deps: deps}, nil
}

// Run iterates until the schedule terminates, ctx is canceled or an
// unexpected error occurs. Cancellation leaves the persisted state untouched.
func (c *Calculator) Run(ctx context.Context) error {
	c.deps.Log.Debugf("calculator for schedule %d started", c.id)
	for {
		done, err := c.Step(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			outcomes.WithLabelValues("aborted").Inc()
			c.deps.Log.Errorf("calculator for schedule %d aborted: %v", c.id, err)
			c.deps.Monitor.CaptureException(err, map[string]string{
				"module":      "soh",
				"schedule_id": strconv.FormatInt(c.id, 10),
			})
			return err
		}
		if done {
			return nil
		}
		if !sleep(ctx, c.interval) {
			c.deps.Log.Debugf("calculator for schedule %d canceled", c.id)
			return nil
		}
	}
}

// Step performs one iteration and reports whether the calculator is done.
// A write lost to a concurrent change is skipped; the next iteration works on
// fresh state.
func (c *Calculator) Step(ctx context.Context) (bool, error) {
	s, err := c.deps.Repo.FindByID(ctx, c.id)
	if err != nil {
		return false, errors.Wrapf(err, "load schedule %d", c.id)
	}
	if s == nil || !s.Matches(calculatorStates, model.StatusActive) {
		if c.abandon {
			outcomes.WithLabelValues("abandoned").Inc()
			c.deps.Log.Infof("schedule %d is no longer running, calculator exits", c.id)
			return true, nil
		}
		return false, nil
	}
	now := c.deps.Clock.Now()

	if s.State == model.StateStopped {
		return c.finish(ctx, s, model.StateSuccess, now)
	}

	cnominal, ok := c.required(ctx, s.StringID, reading.NominalCapacity)
	if !ok || cnominal <= 0 {
		c.deps.Log.Warnf("schedule %d: %v", s.ID, errors.Wrapf(ErrDataUnavailable, "nominal capacity of %s is %v", s.StringID, cnominal))
		return c.finish(ctx, s, model.StateFailed, now)
	}
	socAfter, ok := c.required(ctx, s.StringID, reading.SoC)
	if !ok {
		c.deps.Log.Warnf("schedule %d: %v", s.ID, errors.Wrapf(ErrDataUnavailable, "state of charge of %s", s.StringID))
		return c.finish(ctx, s, model.StateFailed, now)
	}
	current := c.optional(ctx, s.StringID, reading.Current)
	temperature := c.optional(ctx, s.StringID, reading.Temperature)

	socBefore := 100.0
	if s.SoCBefore != nil {
		socBefore = *s.SoCBefore
	}
	s.UsedCharge = Integrate(s.UsedCharge, current, temperature, c.interval)
	soh := StateOfHealth(s.UsedCharge, socBefore, socAfter, cnominal)
	s.SoH = model.Float(soh)
	s.SoCAfter = model.Float(socAfter)
	s.Updated = now

	if stale, err := c.save(ctx, s); err != nil || stale {
		return false, err
	}
	iterations.Inc()
	c.deps.Log.Debugw("soh iteration", map[string]any{
		"schedule_id": s.ID,
		"string_id":   s.StringID,
		"used_charge": s.UsedCharge,
		"soh":         soh,
		"soc_after":   socAfter,
	})
	if err := c.deps.Sink.RecordProgress(metrics.ProgressEvent{
		ScheduleID:  s.ID,
		StringID:    s.StringID,
		SoH:         soh,
		UsedCharge:  s.UsedCharge,
		SoCBefore:   socBefore,
		SoCAfter:    socAfter,
		Current:     current,
		Temperature: temperature,
		Factor:      TemperatureFactor(temperature),
		Time:        now,
	}); err != nil {
		c.deps.Log.Warnf("record progress for schedule %d: %v", s.ID, err)
	}
	return false, nil
}

// finish moves s to a terminal state. A stale write keeps the calculator
// alive so the next iteration re-evaluates the schedule.
func (c *Calculator) finish(ctx context.Context, s *model.Schedule, state model.State, now time.Time) (bool, error) {
	from := s.State
	s.Finish(state, now)
	stale, err := c.save(ctx, s)
	if err != nil || stale {
		return false, err
	}
	outcomes.WithLabelValues(outcomeLabel(state)).Inc()
	c.deps.Log.Infof("schedule %d finished %s", s.ID, state)
	c.deps.Events.Publish(events.NewScheduleEvent(events.ActionFinished, *s, from))
	return true, nil
}

func (c *Calculator) save(ctx context.Context, s *model.Schedule) (stale bool, err error) {
	err = c.deps.Repo.Save(ctx, s)
	if errors.Is(err, schedule.ErrStale) {
		staleWrites.WithLabelValues("calculator").Inc()
		c.deps.Log.Warnf("schedule %d changed concurrently, iteration skipped", s.ID)
		return true, nil
	}
	if err != nil {
		return false, errors.Wrapf(err, "save schedule %d", s.ID)
	}
	return false, nil
}

// required reads a reading the iteration cannot do without. Source errors
// count as unavailable.
func (c *Calculator) required(ctx context.Context, stringID string, k reading.Kind) (float64, bool) {
	v, ok, err := reading.Value(ctx, c.deps.Readings, stringID, k)
	if err != nil {
		c.deps.Log.Warnf("read %s of %s: %v", k, stringID, err)
		return 0, false
	}
	return v, ok
}

// optional reads a live measurement; missing values read as zero.
func (c *Calculator) optional(ctx context.Context, stringID string, k reading.Kind) float64 {
	v, ok := c.required(ctx, stringID, k)
	if !ok {
		c.deps.Log.Debugf("%s of %s unavailable, using 0", k, stringID)
		return 0
	}
	return v
}

func outcomeLabel(s model.State) string {
	if s == model.StateSuccess {
		return "success"
	}
	return "failed"
}

// sleep waits for d and reports false if ctx ended first.
func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
