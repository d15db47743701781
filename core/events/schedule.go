package events

import (
	"time"

	"github.com/google/uuid"

	"github.com/kilianp07/soh/core/model"
)

// Action names the operation that produced a ScheduleEvent.
type Action string

const (
	ActionCreated  Action = "created"
	ActionUpdated  Action = "updated"
	ActionPromoted Action = "promoted"
	ActionResumed  Action = "resumed"
	ActionStopped  Action = "stopped"
	ActionRemoved  Action = "removed"
	ActionFinished Action = "finished"
)

// ScheduleEvent is published after a schedule change has been persisted.
type ScheduleEvent struct {
	ID         string
	Action     Action
	ScheduleID int64
	StringID   string
	From       model.State
	To         model.State
	Status     model.Status
	SoH        *float64
	Time       time.Time
}

// Publisher accepts schedule events. *eventbus.TypedBus[ScheduleEvent]
// satisfies it.
type Publisher interface {
	Publish(ScheduleEvent)
}

// NopPublisher drops every event.
type NopPublisher struct{}

func (NopPublisher) Publish(ScheduleEvent) {}

// NewScheduleEvent describes the persisted state of s after action moved it
// away from state from.
func NewScheduleEvent(action Action, s model.Schedule, from model.State) ScheduleEvent {
	ev := ScheduleEvent{
		ID:         uuid.NewString(),
		Action:     action,
		ScheduleID: s.ID,
		StringID:   s.StringID,
		From:       from,
		To:         s.State,
		Status:     s.Status,
		Time:       s.Updated,
	}
	if s.SoH != nil {
		v := *s.SoH
		ev.SoH = &v
	}
	return ev
}
