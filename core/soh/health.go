package soh

import (
	"math"
	"time"
)

// Integrate returns usedCharge advanced by one iteration of length interval.
// The magnitude of the current is used so the accumulated charge never
// decreases, whatever the sign convention of the meter.
func Integrate(usedCharge, current, temperature float64, interval time.Duration) float64 {
	return usedCharge + math.Abs(current)*interval.Seconds()*TemperatureFactor(temperature)
}

// StateOfHealth estimates the remaining capacity in percent from the charge
// drawn (A·s), the state of charge drop (percent) and the nominal capacity (Ah).
// An unchanged state of charge yields exactly 100. The result is clamped to
// [0, 100].
func StateOfHealth(usedCharge, socBefore, socAfter, cnominal float64) float64 {
	delta := socBefore - socAfter
	if delta == 0 {
		return 100
	}
	capacityAs := cnominal * 3600
	soh := math.Abs(usedCharge / delta / capacityAs * 10000)
	if soh > 100 || math.IsNaN(soh) {
		return 100
	}
	return soh
}
