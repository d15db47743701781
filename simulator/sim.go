package main

import (
	"context"
	"encoding/json"
	"sync/atomic"
	"time"

	"github.com/kilianp07/soh/core/logger"
	"github.com/kilianp07/soh/core/model"
	"github.com/kilianp07/soh/core/reading"
)

// SimulatedString publishes the readings of one battery string and drains its
// battery while a discharge test is running on it.
type SimulatedString struct {
	ID          string
	Battery     *StringBattery
	Current     float64
	Temperature float64

	discharging atomic.Bool
}

// Discharging reports whether a test is draining the string.
func (s *SimulatedString) Discharging() bool { return s.discharging.Load() }

// scheduleMessage is the subset of the schedule event payload the simulator
// reacts to.
type scheduleMessage struct {
	StringID string `json:"string_id"`
	State    string `json:"state"`
}

// HandleSchedule starts the discharge when the string's schedule reaches
// RUNNING and stops it on any other state.
func (s *SimulatedString) HandleSchedule(_ string, payload []byte) {
	var msg scheduleMessage
	if err := json.Unmarshal(payload, &msg); err != nil || msg.StringID != s.ID {
		return
	}
	st, err := model.ParseState(msg.State)
	if err != nil {
		return
	}
	s.discharging.Store(st == model.StateRunning)
}

// Step advances the simulation by dt and writes every reading to target.
func (s *SimulatedString) Step(ctx context.Context, target Target, dt time.Duration, at time.Time) error {
	current := 0.0
	if s.discharging.Load() {
		current = s.Current
		s.Battery.Discharge(current, s.Temperature, dt)
	}
	values := map[reading.Kind]float64{
		reading.NominalCapacity: s.Battery.CapacityAh,
		reading.SoC:             s.Battery.SoC(),
		reading.Current:         current,
		reading.Temperature:     s.Temperature,
	}
	for k, v := range values {
		if err := target.Store(ctx, reading.Point(s.ID, k), v, at); err != nil {
			return err
		}
	}
	return nil
}

// Run steps the string every interval until ctx is done. scale multiplies
// the simulated time elapsed per tick.
func (s *SimulatedString) Run(ctx context.Context, target Target, interval time.Duration, scale float64, log logger.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	dt := time.Duration(float64(interval) * scale)
	if err := s.Step(ctx, target, 0, time.Now()); err != nil {
		log.Warnf("%s: publish readings: %v", s.ID, err)
	}
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			if err := s.Step(ctx, target, dt, now); err != nil {
				log.Warnf("%s: publish readings: %v", s.ID, err)
				continue
			}
			if s.discharging.Load() {
				log.Debugf("%s: soc %.2f%%", s.ID, s.Battery.SoC())
			}
		}
	}
}
