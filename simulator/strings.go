package main

import (
	"fmt"
	"math/rand"
)

// GenerateStrings creates cfg.Count strings with ids str001..strNNN and a
// true health drawn uniformly from [HealthMin, HealthMax].
func GenerateStrings(cfg Config, rng *rand.Rand) []*SimulatedString {
	if cfg.Count <= 0 {
		return nil
	}
	out := make([]*SimulatedString, cfg.Count)
	for i := range out {
		health := cfg.HealthMin + rng.Float64()*(cfg.HealthMax-cfg.HealthMin)
		out[i] = &SimulatedString{
			ID:          fmt.Sprintf("str%03d", i+1),
			Battery:     NewStringBattery(cfg.CapacityAh, health, cfg.InitialSoC),
			Current:     cfg.Current,
			Temperature: cfg.Temperature,
		}
	}
	return out
}
