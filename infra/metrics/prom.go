package metrics

import (
	"github.com/cockroachdb/errors"
	"github.com/prometheus/client_golang/prometheus"

	coremetrics "github.com/kilianp07/soh/core/metrics"
)

// PromSink exposes discharge test progress as Prometheus metrics.
type PromSink struct {
	soh         *prometheus.GaugeVec
	usedCharge  *prometheus.GaugeVec
	temperature *prometheus.GaugeVec
	transitions *prometheus.CounterVec
	running     prometheus.Gauge
}

// NewPromSink registers metrics on the default Prometheus registerer.
// The HTTP endpoint is served separately by StartPromServer.
func NewPromSink() (*PromSink, error) {
	return NewPromSinkWithRegistry(prometheus.DefaultRegisterer)
}

// NewPromSinkWithRegistry registers metrics on the provided registerer.
// A nil registerer defaults to the global Prometheus registerer.
func NewPromSinkWithRegistry(reg prometheus.Registerer) (*PromSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	var err error
	s := &PromSink{}
	if s.soh, err = register(reg, prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "soh_test_state_of_health_percent",
		Help: "Latest state of health computed for a string under test",
	}, []string{"string_id"})); err != nil {
		return nil, err
	}
	if s.usedCharge, err = register(reg, prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "soh_test_used_charge_ah",
		Help: "Charge drawn since the test started",
	}, []string{"string_id"})); err != nil {
		return nil, err
	}
	if s.temperature, err = register(reg, prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "soh_test_ambient_temperature_celsius",
		Help: "Ambient temperature seen by the last iteration",
	}, []string{"string_id"})); err != nil {
		return nil, err
	}
	if s.transitions, err = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "soh_schedule_transitions_total",
		Help: "Persisted schedule changes by action and resulting state",
	}, []string{"action", "state"})); err != nil {
		return nil, err
	}
	if s.running, err = register(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "soh_calculators_running",
		Help: "Number of discharge tests currently being integrated",
	})); err != nil {
		return nil, err
	}
	return s, nil
}

// register adds c to reg or returns the collector already registered under
// the same descriptor.
func register[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing, nil
			}
		}
		return c, err
	}
	return c, nil
}

// RecordProgress updates the per-string gauges.
func (s *PromSink) RecordProgress(ev coremetrics.ProgressEvent) error {
	s.soh.WithLabelValues(ev.StringID).Set(ev.SoH)
	s.usedCharge.WithLabelValues(ev.StringID).Set(ev.UsedCharge)
	s.temperature.WithLabelValues(ev.StringID).Set(ev.Temperature)
	return nil
}

// RecordTransition counts schedule changes.
func (s *PromSink) RecordTransition(ev coremetrics.TransitionEvent) error {
	s.transitions.WithLabelValues(ev.Action, ev.To.String()).Inc()
	return nil
}

// RecordActiveTasks sets the running calculator gauge.
func (s *PromSink) RecordActiveTasks(n int) error {
	s.running.Set(float64(n))
	return nil
}
