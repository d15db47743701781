package metrics

import (
	"time"

	"github.com/kilianp07/soh/core/model"
)

// ProgressEvent captures one calculator iteration of a running test.
type ProgressEvent struct {
	ScheduleID  int64
	StringID    string
	SoH         float64
	UsedCharge  float64
	SoCBefore   float64
	SoCAfter    float64
	Current     float64
	Temperature float64
	Factor      float64
	Time        time.Time
}

// MetricsSink records test progress for observability purposes.
type MetricsSink interface {
	RecordProgress(ev ProgressEvent) error
}

// TransitionEvent records a persisted schedule change.
type TransitionEvent struct {
	ScheduleID int64
	StringID   string
	Action     string
	From       model.State
	To         model.State
	Status     model.Status
	Time       time.Time
}

// TransitionRecorder records schedule transitions.
type TransitionRecorder interface {
	RecordTransition(ev TransitionEvent) error
}

// ActiveTasksRecorder records how many calculators are running.
type ActiveTasksRecorder interface {
	RecordActiveTasks(n int) error
}

// NopSink implements every recorder with no-op methods.
type NopSink struct{}

func (NopSink) RecordProgress(ProgressEvent) error     { return nil }
func (NopSink) RecordTransition(TransitionEvent) error { return nil }
func (NopSink) RecordActiveTasks(int) error            { return nil }
