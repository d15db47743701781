// Package mqtt caches data point values published on MQTT topics of the form
// <prefix>/readings/<point>.
package mqtt

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/kilianp07/soh/core/logger"
	"github.com/kilianp07/soh/core/model"
	"github.com/kilianp07/soh/core/reading"
	sohmqtt "github.com/kilianp07/soh/infra/mqtt"
)

// Subscriber is the part of the MQTT client used by Source.
type Subscriber interface {
	Subscribe(topic string, h sohmqtt.Handler) error
}

// Payload is the JSON form of a reading message. Plain numeric or textual
// payloads are accepted as well.
type Payload struct {
	Value     any       `json:"value"`
	Timestamp time.Time `json:"timestamp,omitempty"`
}

// ReadingTopic returns the topic carrying point.
func ReadingTopic(prefix, point string) string {
	return prefix + "/readings/" + point
}

// EncodeReading serializes a numeric reading.
func EncodeReading(v float64, at time.Time) ([]byte, error) {
	return json.Marshal(Payload{Value: v, Timestamp: at.UTC()})
}

// Source stores the latest message of every reading topic.
type Source struct {
	*reading.MemorySource
	prefix string
	log    logger.Logger
	now    func() time.Time
	owned  *sohmqtt.Client
}

// NewSource subscribes to every reading topic below prefix.
func NewSource(sub Subscriber, prefix string, log logger.Logger) (*Source, error) {
	s := &Source{
		MemorySource: reading.NewMemorySource(),
		prefix:       strings.TrimSuffix(prefix, "/"),
		log:          log,
		now:          time.Now,
	}
	if err := sub.Subscribe(s.prefix+"/readings/#", s.handle); err != nil {
		return nil, errors.Wrap(err, "subscribe readings")
	}
	return s, nil
}

func (s *Source) handle(topic string, payload []byte) {
	point := strings.TrimPrefix(topic, s.prefix+"/readings/")
	if point == topic || point == "" || strings.Contains(point, "/") {
		s.log.Debugf("ignoring reading topic %s", topic)
		return
	}
	if len(payload) == 0 {
		// An empty retained message clears the point.
		s.Delete(point)
		return
	}
	r, err := Decode(point, payload, s.now())
	if err != nil {
		s.log.Warnf("invalid reading on %s: %v", topic, err)
		return
	}
	s.Set(r)
}

// Connect opens a dedicated client and subscribes to the readings of
// cfg.Prefix(). Close disconnects it.
func Connect(cfg sohmqtt.Config, log logger.Logger) (*Source, error) {
	client, err := sohmqtt.NewClient(cfg)
	if err != nil {
		return nil, err
	}
	s, err := NewSource(client, cfg.Prefix(), log)
	if err != nil {
		client.Disconnect()
		return nil, err
	}
	s.owned = client
	return s, nil
}

// Close disconnects a client opened by Connect.
func (s *Source) Close() error {
	if s.owned != nil {
		s.owned.Disconnect()
	}
	return nil
}

// Decode parses a reading payload for point. now stamps payloads without a
// timestamp.
func Decode(point string, payload []byte, now time.Time) (model.Reading, error) {
	r := model.Reading{Point: point, Time: now}
	trimmed := bytes.TrimSpace(payload)
	if len(trimmed) > 0 && trimmed[0] == '{' {
		var p Payload
		if err := json.Unmarshal(trimmed, &p); err != nil {
			return r, errors.Wrap(err, "decode reading")
		}
		if !p.Timestamp.IsZero() {
			r.Time = p.Timestamp
		}
		switch v := p.Value.(type) {
		case float64:
			r.Number = model.Float(v)
		case string:
			r.Text = v
		case bool:
			r.Bool = &v
		default:
			return r, errors.Newf("unsupported value %v", p.Value)
		}
		return r, nil
	}
	text := string(trimmed)
	if f, err := strconv.ParseFloat(text, 64); err == nil {
		r.Number = model.Float(f)
		return r, nil
	}
	if b, err := strconv.ParseBool(text); err == nil {
		r.Bool = &b
		return r, nil
	}
	r.Text = text
	return r, nil
}
