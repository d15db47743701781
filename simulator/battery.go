package main

import (
	"sync"
	"time"

	"github.com/kilianp07/soh/core/soh"
)

// StringBattery models the state of charge of a battery string whose usable
// capacity is Health times its nominal capacity. Discharge applies the same
// temperature factor as the SoH calculation, so a full test converges on
// Health*100.
type StringBattery struct {
	CapacityAh float64
	Health     float64

	mu  sync.Mutex
	soc float64
}

// NewStringBattery returns a battery charged to soc percent.
func NewStringBattery(capacityAh, health, soc float64) *StringBattery {
	return &StringBattery{CapacityAh: capacityAh, Health: health, soc: soc}
}

// SoC returns the state of charge in percent.
func (b *StringBattery) SoC() float64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.soc
}

// Discharge draws currentA for dt at temperature and returns the new SoC.
func (b *StringBattery) Discharge(currentA, temperature float64, dt time.Duration) float64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	if dt <= 0 || currentA == 0 {
		return b.soc
	}
	usable := b.CapacityAh * b.Health * 3600
	if currentA < 0 {
		currentA = -currentA
	}
	drawn := currentA * dt.Seconds() * soh.TemperatureFactor(temperature)
	b.soc -= drawn / usable * 100
	if b.soc < 0 {
		b.soc = 0
	}
	return b.soc
}
