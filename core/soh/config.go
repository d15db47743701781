package soh

import (
	"time"

	"github.com/cockroachdb/errors"
)

// Config holds the scheduler tunables.
type Config struct {
	// IntervalSeconds is the calculator polling and integration period.
	IntervalSeconds float64 `json:"interval_seconds"`
	// DispatchPeriodSeconds is the dispatcher tick period.
	DispatchPeriodSeconds float64 `json:"dispatch_period_seconds"`
	// ResumeRunning relaunches calculators for schedules left RUNNING or
	// STOPPED by a previous process.
	ResumeRunning bool `json:"resume_running"`
	// AbandonMissing makes a calculator exit when its schedule disappears or
	// leaves the RUNNING/STOPPED states. When false it keeps polling.
	AbandonMissing *bool `json:"abandon_missing"`
}

// SetDefaults applies sane defaults.
func (c *Config) SetDefaults() {
	if c.IntervalSeconds <= 0 {
		c.IntervalSeconds = 1
	}
	if c.DispatchPeriodSeconds <= 0 {
		c.DispatchPeriodSeconds = 1
	}
	if c.AbandonMissing == nil {
		v := true
		c.AbandonMissing = &v
	}
}

// Validate checks the configured periods.
func (c Config) Validate() error {
	if c.IntervalSeconds < 0.001 {
		return errors.Newf("scheduler interval %vs is too short", c.IntervalSeconds)
	}
	if c.DispatchPeriodSeconds < 0.001 {
		return errors.Newf("scheduler dispatch period %vs is too short", c.DispatchPeriodSeconds)
	}
	return nil
}

// Interval returns the calculator period, one second when unset.
func (c Config) Interval() time.Duration {
	if c.IntervalSeconds <= 0 {
		return time.Second
	}
	return time.Duration(c.IntervalSeconds * float64(time.Second))
}

// DispatchPeriod returns the dispatcher period, one second when unset.
func (c Config) DispatchPeriod() time.Duration {
	if c.DispatchPeriodSeconds <= 0 {
		return time.Second
	}
	return time.Duration(c.DispatchPeriodSeconds * float64(time.Second))
}

// Abandon reports whether calculators exit once their schedule is gone.
func (c Config) Abandon() bool {
	return c.AbandonMissing == nil || *c.AbandonMissing
}
