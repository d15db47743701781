package soh

import (
	"github.com/cockroachdb/errors"

	"github.com/kilianp07/soh/core/clock"
	"github.com/kilianp07/soh/core/events"
	"github.com/kilianp07/soh/core/logger"
	"github.com/kilianp07/soh/core/metrics"
	"github.com/kilianp07/soh/core/monitoring"
	"github.com/kilianp07/soh/core/reading"
	"github.com/kilianp07/soh/core/schedule"
)

// Deps groups the collaborators shared by the dispatcher and calculators.
// Repo, Readings and Log are required; the others default to no-op or
// system implementations.
type Deps struct {
	Repo     schedule.Repository
	Readings reading.Source
	Clock    clock.Clock
	Events   events.Publisher
	Sink     metrics.MetricsSink
	Monitor  monitoring.Monitor
	Log      logger.Logger
}

func (d Deps) withDefaults() (Deps, error) {
	if d.Repo == nil || d.Readings == nil || d.Log == nil {
		return d, errors.New("soh: repository, reading source and logger are required")
	}
	if d.Clock == nil {
		d.Clock = clock.System{}
	}
	if d.Events == nil {
		d.Events = events.NopPublisher{}
	}
	if d.Sink == nil {
		d.Sink = metrics.NopSink{}
	}
	if d.Monitor == nil {
		d.Monitor = monitoring.NopMonitor{}
	}
	return d, nil
}
