package metrics

import (
	"context"

	"github.com/kilianp07/soh/core/events"
	coremetrics "github.com/kilianp07/soh/core/metrics"
	"github.com/kilianp07/soh/infra/logger"
	"github.com/kilianp07/soh/internal/eventbus"
)

// StartEventCollector subscribes to the schedule event bus and forwards every
// event to sinks implementing TransitionRecorder. It stops when the context is
// canceled or the bus is closed. The returned channel is closed on exit.
func StartEventCollector(ctx context.Context, bus *eventbus.TypedBus[events.ScheduleEvent], sink coremetrics.MetricsSink, log logger.Logger) <-chan struct{} {
	done := make(chan struct{})
	rec, ok := sink.(coremetrics.TransitionRecorder)
	if bus == nil || !ok {
		close(done)
		return done
	}
	if log == nil {
		log = logger.NopLogger{}
	}
	sub := bus.Subscribe()
	go func() {
		defer close(done)
		defer bus.Unsubscribe(sub)
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-sub:
				if !ok {
					return
				}
				if err := rec.RecordTransition(Transition(ev)); err != nil {
					log.Warnf("record transition %s for schedule %d: %v", ev.Action, ev.ScheduleID, err)
				}
			}
		}
	}()
	return done
}

// Transition converts a schedule event into its metrics form.
func Transition(ev events.ScheduleEvent) coremetrics.TransitionEvent {
	return coremetrics.TransitionEvent{
		ScheduleID: ev.ScheduleID,
		StringID:   ev.StringID,
		Action:     string(ev.Action),
		From:       ev.From,
		To:         ev.To,
		Status:     ev.Status,
		Time:       ev.Time,
	}
}
