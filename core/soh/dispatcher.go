package soh

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/kilianp07/soh/core/events"
	"github.com/kilianp07/soh/core/model"
	"github.com/kilianp07/soh/core/reading"
	"github.com/kilianp07/soh/core/schedule"
)

// Dispatcher promotes due schedules and launches their calculators.
type Dispatcher struct {
	cfg      Config
	deps     Deps
	registry *Registry
}

// NewDispatcher creates a Dispatcher. Calculators are supervised by registry.
func NewDispatcher(cfg Config, deps Deps, registry *Registry) (*Dispatcher, error) {
	deps, err := deps.withDefaults()
	if err != nil {
		return nil, err
	}
	if registry == nil {
		return nil, errors.New("soh: registry is required")
	}
	return &Dispatcher{cfg: cfg, deps: deps, registry: registry}, nil
}

// Run ticks every dispatch period until ctx is canceled. A tick that outlasts
// the period delays the next one; ticks never overlap. Calculators started by
// Run inherit ctx.
func (d *Dispatcher) Run(ctx context.Context) error {
	period := d.cfg.DispatchPeriod()
	d.deps.Log.Infof("dispatcher started, period %s, interval %s", period, d.cfg.Interval())
	ticker := time.NewTicker(period)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			d.deps.Log.Infof("dispatcher stopped")
			return nil
		case <-ticker.C:
			d.safeTick(ctx)
		}
	}
}

// safeTick runs one tick, logging and reporting errors and panics so the
// loop survives them.
func (d *Dispatcher) safeTick(ctx context.Context) {
	defer func() {
		if v := recover(); v != nil {
			dispatchFailures.Inc()
			d.deps.Log.Errorf("dispatcher tick panicked: %v", v)
			d.deps.Monitor.CapturePanic(v, map[string]string{"module": "soh", "component": "dispatcher"})
		}
	}()
	if _, err := d.Tick(ctx); err != nil && ctx.Err() == nil {
		dispatchFailures.Inc()
		d.deps.Log.Errorf("dispatcher tick: %v", err)
		d.deps.Monitor.CaptureException(err, map[string]string{"module": "soh", "component": "dispatcher"})
	}
}

// Tick promotes every due PENDING schedule and returns the promoted ids. A
// schedule changed concurrently is skipped until the next tick; any other
// persistence error abandons the rest of the tick.
func (d *Dispatcher) Tick(ctx context.Context) ([]int64, error) {
	start := time.Now()
	dispatchTicks.Inc()
	defer func() { tickDuration.Observe(time.Since(start).Seconds()) }()

	now := d.deps.Clock.Now()
	due, err := d.deps.Repo.FindDue(ctx, now, model.StatePending, model.StatusActive)
	if err != nil {
		return nil, errors.Wrap(err, "find due schedules")
	}
	var promoted []int64
	for i := range due {
		s := due[i]
		soc, ok, err := reading.Value(ctx, d.deps.Readings, s.StringID, reading.SoC)
		if err != nil {
			d.deps.Log.Warnf("read state of charge of %s: %v", s.StringID, err)
		}
		if !ok {
			d.deps.Log.Warnf("state of charge of %s unavailable, assuming 100%%", s.StringID)
			soc = 100
		}
		s.SoCBefore = model.Float(soc)
		s.State = model.StateRunning
		s.Updated = now
		if err := d.deps.Repo.Save(ctx, &s); err != nil {
			if errors.Is(err, schedule.ErrStale) {
				staleWrites.WithLabelValues("dispatcher").Inc()
				d.deps.Log.Warnf("schedule %d changed before promotion, skipped", s.ID)
				continue
			}
			return promoted, errors.Wrapf(err, "promote schedule %d", s.ID)
		}
		promotions.Inc()
		d.deps.Log.Infof("schedule %d promoted for string %s, soc before %.1f%%", s.ID, s.StringID, soc)
		d.deps.Events.Publish(events.NewScheduleEvent(events.ActionPromoted, s, model.StatePending))
		d.launch(ctx, s.ID)
		promoted = append(promoted, s.ID)
	}
	return promoted, nil
}

// Resume relaunches calculators for active schedules left RUNNING or STOPPED,
// typically by a previous process. It returns the number of tasks started.
func (d *Dispatcher) Resume(ctx context.Context) (int, error) {
	active, err := d.deps.Repo.FindByStatus(ctx, model.StatusActive)
	if err != nil {
		return 0, errors.Wrap(err, "find running schedules")
	}
	n := 0
	for _, s := range active {
		if !s.In(calculatorStates...) {
			continue
		}
		if d.launch(ctx, s.ID) {
			n++
			d.deps.Log.Infof("schedule %d resumed in state %s", s.ID, s.State)
			d.deps.Events.Publish(events.NewScheduleEvent(events.ActionResumed, s, s.State))
		}
	}
	return n, nil
}

// Registry exposes the supervisor of running calculators.
func (d *Dispatcher) Registry() *Registry { return d.registry }

func (d *Dispatcher) launch(ctx context.Context, id int64) bool {
	calc := &Calculator{id: id, interval: d.cfg.Interval(), abandon: d.cfg.Abandon(), deps: d.deps}
	started := d.registry.Start(ctx, id, func(ctx context.Context) { _ = calc.Run(ctx) })
	if !started {
		d.deps.Log.Warnf("calculator for schedule %d already running", id)
	}
	return started
}
