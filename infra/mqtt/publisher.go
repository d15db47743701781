package mqtt

import (
	"context"
	"encoding/json"
	"time"

	"github.com/kilianp07/soh/core/events"
	"github.com/kilianp07/soh/infra/logger"
	"github.com/kilianp07/soh/internal/eventbus"
)

// Publisher is the subset of Client used to emit messages.
type Publisher interface {
	Publish(topic string, payload []byte, retained bool) error
}

// eventMessage is the JSON payload published for every schedule transition.
type eventMessage struct {
	EventID    string    `json:"event_id"`
	Action     string    `json:"action"`
	ScheduleID int64     `json:"schedule_id"`
	StringID   string    `json:"string_id"`
	From       string    `json:"from"`
	State      string    `json:"state"`
	Status     string    `json:"status"`
	SoH        *float64  `json:"soh,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

// EventTopic returns the topic schedule events of stringID are published on.
func EventTopic(prefix, stringID string) string {
	return prefix + "/" + stringID + "/schedule"
}

// EncodeEvent renders ev as the published JSON payload.
func EncodeEvent(ev events.ScheduleEvent) ([]byte, error) {
	return json.Marshal(eventMessage{
		EventID:    ev.ID,
		Action:     string(ev.Action),
		ScheduleID: ev.ScheduleID,
		StringID:   ev.StringID,
		From:       ev.From.String(),
		State:      ev.To.String(),
		Status:     ev.Status.String(),
		SoH:        ev.SoH,
		Timestamp:  ev.Time,
	})
}

// StartEventPublisher forwards schedule events from the bus to the broker as
// retained messages, so late subscribers see the latest state of each string.
// It stops when ctx is canceled or the bus is closed; the returned channel is
// closed on exit.
func StartEventPublisher(ctx context.Context, bus *eventbus.TypedBus[events.ScheduleEvent], pub Publisher, prefix string, log logger.Logger) <-chan struct{} {
	done := make(chan struct{})
	if bus == nil || pub == nil {
		close(done)
		return done
	}
	if log == nil {
		log = logger.NopLogger{}
	}
	sub := bus.Subscribe()
	go func() {
		defer close(done)
		defer bus.Unsubscribe(sub)
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-sub:
				if !ok {
					return
				}
				payload, err := EncodeEvent(ev)
				if err != nil {
					log.Errorf("encode event %s: %v", ev.ID, err)
					continue
				}
				if err := pub.Publish(EventTopic(prefix, ev.StringID), payload, true); err != nil {
					log.Errorf("publish event %s for schedule %d: %v", ev.Action, ev.ScheduleID, err)
				}
			}
		}
	}()
	return done
}
