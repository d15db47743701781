package main

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"

	readingsmqtt "github.com/kilianp07/soh/infra/readings/mqtt"
)

// Target receives simulated readings. *redis.Source satisfies it.
type Target interface {
	Store(ctx context.Context, point string, v float64, at time.Time) error
}

// publisher is the subset of the MQTT client used by mqttTarget.
type publisher interface {
	Publish(topic string, payload []byte, retained bool) error
}

// mqttTarget publishes readings as retained messages on the readings topics.
type mqttTarget struct {
	pub    publisher
	prefix string
}

func (m mqttTarget) Store(_ context.Context, point string, v float64, at time.Time) error {
	payload, err := readingsmqtt.EncodeReading(v, at)
	if err != nil {
		return err
	}
	return m.pub.Publish(readingsmqtt.ReadingTopic(m.prefix, point), payload, true)
}

// multiTarget fans readings out to every target.
type multiTarget []Target

func (m multiTarget) Store(ctx context.Context, point string, v float64, at time.Time) error {
	var errs error
	for _, t := range m {
		if err := t.Store(ctx, point, v, at); err != nil {
			errs = errors.CombineErrors(errs, err)
		}
	}
	return errs
}
