package main

import (
	"flag"
	"time"

	"github.com/cockroachdb/errors"
)

// Config holds parameters for the simulator.
type Config struct {
	Broker      string
	TopicPrefix string
	RedisAddr   string
	Count       int
	// CapacityAh is the nominal capacity published for every string.
	CapacityAh float64
	// HealthMin and HealthMax bound the true health fraction drawn per string.
	HealthMin   float64
	HealthMax   float64
	InitialSoC  float64
	Current     float64
	Temperature float64
	Interval    time.Duration
	// TimeScale speeds up simulated time relative to wall time.
	TimeScale float64
	Seed      int64
	Verbose   bool
}

func parseFlags(args []string) (Config, error) {
	var cfg Config
	fs := flag.NewFlagSet("simulator", flag.ContinueOnError)
	fs.StringVar(&cfg.Broker, "broker", "tcp://localhost:1883", "MQTT broker URL")
	fs.StringVar(&cfg.TopicPrefix, "topic-prefix", "soh", "MQTT topic prefix")
	fs.StringVar(&cfg.RedisAddr, "redis", "", "also write readings to this Redis address")
	fs.IntVar(&cfg.Count, "count", 1, "number of battery strings")
	fs.Float64Var(&cfg.CapacityAh, "capacity", 100, "nominal string capacity in Ah")
	fs.Float64Var(&cfg.HealthMin, "health-min", 0.85, "lowest true health fraction")
	fs.Float64Var(&cfg.HealthMax, "health-max", 1.0, "highest true health fraction")
	fs.Float64Var(&cfg.InitialSoC, "soc", 95, "initial state of charge in percent")
	fs.Float64Var(&cfg.Current, "current", 20, "discharge current in A while a test runs")
	fs.Float64Var(&cfg.Temperature, "temperature", 25, "ambient temperature in Celsius")
	fs.DurationVar(&cfg.Interval, "interval", time.Second, "reading publish interval")
	fs.Float64Var(&cfg.TimeScale, "time-scale", 1, "simulated seconds per wall-clock second")
	fs.Int64Var(&cfg.Seed, "seed", time.Now().UnixNano(), "random seed")
	fs.BoolVar(&cfg.Verbose, "verbose", false, "enable verbose logging")
	if err := fs.Parse(args); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate checks the simulator parameters.
func (c Config) Validate() error {
	switch {
	case c.Broker == "" && c.RedisAddr == "":
		return errors.New("broker or redis address is required")
	case c.Count <= 0:
		return errors.New("count must be positive")
	case c.CapacityAh <= 0:
		return errors.New("capacity must be positive")
	case c.HealthMin <= 0 || c.HealthMax > 1.2 || c.HealthMin > c.HealthMax:
		return errors.Newf("invalid health range [%v, %v]", c.HealthMin, c.HealthMax)
	case c.InitialSoC < 0 || c.InitialSoC > 100:
		return errors.New("soc must be within [0, 100]")
	case c.Interval <= 0:
		return errors.New("interval must be positive")
	case c.TimeScale <= 0:
		return errors.New("time-scale must be positive")
	}
	return nil
}
