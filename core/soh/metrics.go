package soh

import "github.com/prometheus/client_golang/prometheus"

var (
	dispatchTicks    prometheus.Counter
	dispatchFailures prometheus.Counter
	tickDuration     prometheus.Histogram
	promotions       prometheus.Counter
	iterations       prometheus.Counter
	outcomes         *prometheus.CounterVec
	staleWrites      *prometheus.CounterVec
)

// newCollectors creates new metric collectors.
func newCollectors() (prometheus.Counter, prometheus.Counter, prometheus.Histogram, prometheus.Counter, prometheus.Counter, *prometheus.CounterVec, *prometheus.CounterVec) {
	ticks := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "soh_dispatcher_ticks_total",
		Help: "Number of dispatcher ticks executed",
	})
	failures := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "soh_dispatcher_tick_errors_total",
		Help: "Number of dispatcher ticks abandoned on error or panic",
	})
	dur := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "soh_dispatcher_tick_duration_seconds",
		Help:    "Duration of a dispatcher tick",
		Buckets: prometheus.DefBuckets,
	})
	promoted := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "soh_schedules_promoted_total",
		Help: "Number of schedules promoted from PENDING to RUNNING",
	})
	iters := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "soh_calculator_iterations_total",
		Help: "Number of persisted calculator iterations",
	})
	out := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "soh_calculator_exits_total",
		Help: "Calculator exits by outcome",
	}, []string{"outcome"})
	stale := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "soh_stale_writes_total",
		Help: "Writes rejected because the schedule changed underneath",
	}, []string{"actor"})
	return ticks, failures, dur, promoted, iters, out, stale
}

func init() {
	dispatchTicks, dispatchFailures, tickDuration, promotions, iterations, outcomes, staleWrites = newCollectors()
	MustRegisterMetrics(nil)
}

// MustRegisterMetrics registers scheduler metrics on the provided registry.
// If reg is nil, prometheus.DefaultRegisterer is used.
func MustRegisterMetrics(reg prometheus.Registerer) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(dispatchTicks, dispatchFailures, tickDuration, promotions, iterations, outcomes, staleWrites)
}
