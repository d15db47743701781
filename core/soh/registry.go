package soh

import (
	"context"
	"sort"
	"strconv"
	"sync"

	"github.com/kilianp07/soh/core/logger"
	"github.com/kilianp07/soh/core/metrics"
	"github.com/kilianp07/soh/core/monitoring"
)

// Registry supervises running calculators, keyed by schedule id. At most one
// task runs per id.
type Registry struct {
	log  logger.Logger
	mon  monitoring.Monitor
	sink metrics.MetricsSink

	mu    sync.Mutex
	tasks map[int64]context.CancelFunc
	wg    sync.WaitGroup
}

// NewRegistry creates an empty registry. sink may be nil.
func NewRegistry(log logger.Logger, mon monitoring.Monitor, sink metrics.MetricsSink) *Registry {
	if mon == nil {
		mon = monitoring.NopMonitor{}
	}
	if sink == nil {
		sink = metrics.NopSink{}
	}
	return &Registry{log: log, mon: mon, sink: sink, tasks: make(map[int64]context.CancelFunc)}
}

// Start runs task for id in its own goroutine under a context derived from
// ctx. It returns false when a task for id is already running.
func (r *Registry) Start(ctx context.Context, id int64, task func(context.Context)) bool {
	r.mu.Lock()
	if _, ok := r.tasks[id]; ok {
		r.mu.Unlock()
		return false
	}
	taskCtx, cancel := context.WithCancel(ctx)
	r.tasks[id] = cancel
	r.wg.Add(1)
	n := len(r.tasks)
	r.mu.Unlock()
	r.report(n)

	go func() {
		defer r.wg.Done()
		defer r.remove(id, cancel)
		defer func() {
			if v := recover(); v != nil {
				r.log.Errorf("calculator for schedule %d panicked: %v", id, v)
				r.mon.CapturePanic(v, map[string]string{"module": "soh", "schedule_id": strconv.FormatInt(id, 10)})
			}
		}()
		task(taskCtx)
	}()
	return true
}

func (r *Registry) remove(id int64, cancel context.CancelFunc) {
	cancel()
	r.mu.Lock()
	delete(r.tasks, id)
	n := len(r.tasks)
	r.mu.Unlock()
	r.report(n)
}

func (r *Registry) report(n int) {
	if rec, ok := r.sink.(metrics.ActiveTasksRecorder); ok {
		_ = rec.RecordActiveTasks(n)
	}
}

// Running reports whether a task is registered for id.
func (r *Registry) Running(id int64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.tasks[id]
	return ok
}

// IDs lists the schedule ids with a running task, ascending.
func (r *Registry) IDs() []int64 {
	r.mu.Lock()
	ids := make([]int64, 0, len(r.tasks))
	for id := range r.tasks {
		ids = append(ids, id)
	}
	r.mu.Unlock()
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Len returns the number of running tasks.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.tasks)
}

// Cancel cancels the task for id. Persisted state is left untouched.
func (r *Registry) Cancel(id int64) bool {
	r.mu.Lock()
	cancel, ok := r.tasks[id]
	r.mu.Unlock()
	if ok {
		cancel()
	}
	return ok
}

// Shutdown cancels every task and waits for them to return.
func (r *Registry) Shutdown() {
	r.mu.Lock()
	for _, cancel := range r.tasks {
		cancel()
	}
	r.mu.Unlock()
	r.Wait()
}

// Wait blocks until every started task has returned.
func (r *Registry) Wait() { r.wg.Wait() }
