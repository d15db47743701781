package soh

import (
	"math"

	"gonum.org/v1/gonum/interp"
)

// ReferenceTemperature is the ambient temperature at which the derating
// factor is exactly 1.
const ReferenceTemperature = 25.0

var (
	factorTemps  = []float64{-10, 0, 10, 20, 25, 30, 40, 50}
	factorValues = []float64{1.30, 1.20, 1.10, 1.04, 1.00, 0.97, 0.93, 0.90}
	factorCurve  interp.PiecewiseLinear
)

func init() {
	if err := factorCurve.Fit(factorTemps, factorValues); err != nil {
		panic(err)
	}
}

// TemperatureFactor returns the multiplier applied to the measured current
// before integration. Cold strings draw more effective capacity per ampere,
// hot strings less. Inputs beyond the table clamp to its end points and NaN
// is treated as the reference temperature.
func TemperatureFactor(celsius float64) float64 {
	switch {
	case math.IsNaN(celsius):
		return 1
	case celsius <= factorTemps[0]:
		return factorValues[0]
	case celsius >= factorTemps[len(factorTemps)-1]:
		return factorValues[len(factorValues)-1]
	}
	return factorCurve.Predict(celsius)
}
