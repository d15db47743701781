package readings

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/kilianp07/soh/core/factory"
	"github.com/kilianp07/soh/core/reading"
	"github.com/kilianp07/soh/infra/logger"
	sohmqtt "github.com/kilianp07/soh/infra/mqtt"
	mqttreadings "github.com/kilianp07/soh/infra/readings/mqtt"
	pgreadings "github.com/kilianp07/soh/infra/readings/postgres"
	redisreadings "github.com/kilianp07/soh/infra/readings/redis"
)

// ConnectTimeout bounds the initial connection of network backends.
var ConnectTimeout = 10 * time.Second

func init() {
	_ = reading.RegisterSource("memory", func(map[string]any) (reading.Source, error) {
		return reading.NewMemorySource(), nil
	})

	_ = reading.RegisterSource("postgres", func(conf map[string]any) (reading.Source, error) {
		var c pgreadings.Config
		if err := factory.Decode(conf, &c); err != nil {
			return nil, err
		}
		ctx, cancel := context.WithTimeout(context.Background(), ConnectTimeout)
		defer cancel()
		return pgreadings.Open(ctx, c)
	})

	_ = reading.RegisterSource("mqtt", func(conf map[string]any) (reading.Source, error) {
		var c sohmqtt.Config
		if err := factory.Decode(conf, &c); err != nil {
			return nil, err
		}
		if !c.Enabled() {
			return nil, errors.New("mqtt readings require broker")
		}
		return mqttreadings.Connect(c, logger.New("mqtt_readings"))
	})

	_ = reading.RegisterSource("redis", func(conf map[string]any) (reading.Source, error) {
		var c redisreadings.Config
		if err := factory.Decode(conf, &c); err != nil {
			return nil, err
		}
		if c.Addr == "" {
			return nil, errors.New("redis readings require addr")
		}
		ctx, cancel := context.WithTimeout(context.Background(), ConnectTimeout)
		defer cancel()
		client, err := redisreadings.NewClient(ctx, c)
		if err != nil {
			return nil, err
		}
		return redisreadings.NewSource(client, c.Prefix), nil
	})
}
