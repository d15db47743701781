// Command simulator publishes synthetic battery string readings so the SoH
// service can be exercised without a plant. Each string discharges while its
// schedule is RUNNING and its SoC drop reflects a randomly drawn true health.
package main

import (
	"context"
	"math/rand"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/kilianp07/soh/core/logger"
	sohlogger "github.com/kilianp07/soh/infra/logger"
	sohmqtt "github.com/kilianp07/soh/infra/mqtt"
	redisreadings "github.com/kilianp07/soh/infra/readings/redis"
)

func main() {
	cfg, err := parseFlags(os.Args[1:])
	if err != nil {
		os.Exit(2)
	}
	level := "info"
	if cfg.Verbose {
		level = "debug"
	}
	if err := sohlogger.Configure(level, "console"); err != nil {
		os.Exit(2)
	}
	log := sohlogger.New("simulator")
	if err := cfg.Validate(); err != nil {
		log.Errorf("invalid config: %v", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	strs := GenerateStrings(cfg, rand.New(rand.NewSource(cfg.Seed)))
	for _, s := range strs {
		log.Infof("%s: capacity %.1fAh true health %.1f%%", s.ID, s.Battery.CapacityAh, s.Battery.Health*100)
	}

	var targets multiTarget
	if cfg.Broker != "" {
		client, err := sohmqtt.NewClient(sohmqtt.Config{
			Broker:      cfg.Broker,
			ClientID:    "soh-simulator",
			TopicPrefix: cfg.TopicPrefix,
			QoS:         1,
		})
		if err != nil {
			log.Errorf("mqtt: %v", err)
			os.Exit(1)
		}
		defer client.Disconnect()
		for _, s := range strs {
			if err := client.Subscribe(sohmqtt.EventTopic(cfg.TopicPrefix, s.ID), s.HandleSchedule); err != nil {
				log.Errorf("subscribe %s: %v", s.ID, err)
				os.Exit(1)
			}
		}
		targets = append(targets, mqttTarget{pub: client, prefix: cfg.TopicPrefix})
	}
	if cfg.RedisAddr != "" {
		hashes, err := redisreadings.NewClient(ctx, redisreadings.Config{Addr: cfg.RedisAddr})
		if err != nil {
			log.Errorf("redis: %v", err)
			os.Exit(1)
		}
		src := redisreadings.NewSource(hashes, cfg.TopicPrefix)
		defer func() { _ = src.Close() }()
		targets = append(targets, src)
	}

	runStrings(ctx, strs, targets, cfg, log)
}

func runStrings(ctx context.Context, strs []*SimulatedString, target Target, cfg Config, log logger.Logger) {
	var wg sync.WaitGroup
	for _, s := range strs {
		wg.Add(1)
		go func(s *SimulatedString) {
			defer wg.Done()
			s.Run(ctx, target, cfg.Interval, cfg.TimeScale, log)
		}(s)
	}
	wg.Wait()
}
