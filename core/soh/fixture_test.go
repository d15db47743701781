package soh

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/kilianp07/soh/core/clock"
	"github.com/kilianp07/soh/core/events"
	"github.com/kilianp07/soh/core/metrics"
	"github.com/kilianp07/soh/core/model"
	"github.com/kilianp07/soh/core/reading"
	"github.com/kilianp07/soh/core/schedule"
	"github.com/kilianp07/soh/infra/logger"
)

var t0 = time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC)

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.ScheduleEvent
}

func (r *recordingPublisher) Publish(ev events.ScheduleEvent) {
	r.mu.Lock()
	r.events = append(r.events, ev)
	r.mu.Unlock()
}

func (r *recordingPublisher) actions() []events.Action {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]events.Action, len(r.events))
	for i, ev := range r.events {
		out[i] = ev.Action
	}
	return out
}

type progressSink struct {
	metrics.NopSink
	mu     sync.Mutex
	events []metrics.ProgressEvent
	active []int
}

func (p *progressSink) RecordProgress(ev metrics.ProgressEvent) error {
	p.mu.Lock()
	p.events = append(p.events, ev)
	p.mu.Unlock()
	return nil
}

func (p *progressSink) RecordActiveTasks(n int) error {
	p.mu.Lock()
	p.active = append(p.active, n)
	p.mu.Unlock()
	return nil
}

func (p *progressSink) progress() []metrics.ProgressEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]metrics.ProgressEvent(nil), p.events...)
}

type recordMonitor struct {
	mu      sync.Mutex
	errs    []error
	panics  []any
	lastTag map[string]string
}

func (r *recordMonitor) CaptureException(err error, tags map[string]string) {
	r.mu.Lock()
	r.errs = append(r.errs, err)
	r.lastTag = tags
	r.mu.Unlock()
}

func (r *recordMonitor) CapturePanic(v any, tags map[string]string) {
	r.mu.Lock()
	r.panics = append(r.panics, v)
	r.lastTag = tags
	r.mu.Unlock()
}

func (r *recordMonitor) Flush(time.Duration) {}

func (r *recordMonitor) counts() (int, int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.errs), len(r.panics)
}

// staleRepo fails the next n saves with a version conflict.
type staleRepo struct {
	*schedule.MemoryRepository
	n atomic.Int32
}

func (r *staleRepo) Save(ctx context.Context, s *model.Schedule) error {
	if r.n.Add(-1) >= 0 {
		return schedule.Stale(s.ID, s.Version)
	}
	return r.MemoryRepository.Save(ctx, s)
}

// errSource fails every read.
type errSource struct{}

func (errSource) Latest(context.Context, string) (*model.Reading, error) {
	return nil, context.DeadlineExceeded
}

type fixture struct {
	repo *schedule.MemoryRepository
	src  *reading.MemorySource
	clk  *clock.Manual
	pub  *recordingPublisher
	sink *progressSink
	mon  *recordMonitor
	svc  *schedule.Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		repo: schedule.NewMemoryRepository(),
		src:  reading.NewMemorySource(),
		clk:  clock.NewManual(t0),
		pub:  &recordingPublisher{},
		sink: &progressSink{},
		mon:  &recordMonitor{},
	}
	svc, err := schedule.NewService(f.repo, f.clk, f.pub, logger.NopLogger{})
	require.NoError(t, err)
	f.svc = svc
	return f
}

func (f *fixture) deps() Deps {
	return Deps{
		Repo:     f.repo,
		Readings: f.src,
		Clock:    f.clk,
		Events:   f.pub,
		Sink:     f.sink,
		Monitor:  f.mon,
		Log:      logger.NopLogger{},
	}
}

// readings sets every point used by the calculator for stringID.
func (f *fixture) readings(stringID string, cnominal, soc, current, temp float64) {
	f.src.SetFloat(reading.Point(stringID, reading.NominalCapacity), cnominal)
	f.src.SetFloat(reading.Point(stringID, reading.SoC), soc)
	f.src.SetFloat(reading.Point(stringID, reading.Current), current)
	f.src.SetFloat(reading.Point(stringID, reading.Temperature), temp)
}

// running stores a RUNNING schedule for stringID with the given baseline.
func (f *fixture) running(t *testing.T, stringID string, socBefore float64) model.Schedule {
	t.Helper()
	s, err := f.svc.Create(context.Background(), stringID, t0, 10)
	require.NoError(t, err)
	s.State = model.StateRunning
	s.SoCBefore = model.Float(socBefore)
	require.NoError(t, f.repo.Save(context.Background(), &s))
	return s
}

func (f *fixture) load(t *testing.T, id int64) model.Schedule {
	t.Helper()
	s, err := f.repo.FindByID(context.Background(), id)
	require.NoError(t, err)
	require.NotNil(t, s)
	return *s
}

func secondConfig() Config {
	cfg := Config{IntervalSeconds: 1, DispatchPeriodSeconds: 1}
	cfg.SetDefaults()
	return cfg
}
