package eventbus

import (
	"testing"
	"time"

	"github.com/kilianp07/soh/core/events"
	"github.com/kilianp07/soh/core/model"
)

var _ events.Publisher = (*TypedBus[events.ScheduleEvent])(nil)

func TestTypedBusPublishSubscribe(t *testing.T) {
	bus := NewTyped[events.ScheduleEvent]()
	ch := bus.Subscribe()
	s := model.NewSchedule("str1", 10, time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC))
	bus.Publish(events.NewScheduleEvent(events.ActionCreated, s, model.StatePending))
	v := <-ch
	if v.Action != events.ActionCreated || v.StringID != "str1" {
		t.Fatalf("unexpected event %+v", v)
	}
	bus.Unsubscribe(ch)
	if bus.Subscribers() != 0 {
		t.Fatalf("expected no subscribers")
	}
}

func TestTypedBusDropsWhenFull(t *testing.T) {
	bus := NewTypedBuffered[int](1)
	ch := bus.Subscribe()
	bus.Publish(1)
	bus.Publish(2)
	if got := bus.Dropped(); got != 1 {
		t.Fatalf("expected 1 dropped event got %d", got)
	}
	if v := <-ch; v != 1 {
		t.Fatalf("expected first event got %d", v)
	}
}

func TestTypedBusClose(t *testing.T) {
	bus := NewTyped[int]()
	ch1 := bus.Subscribe()
	ch2 := bus.Subscribe()
	bus.Close()
	if _, ok := <-ch1; ok {
		t.Fatalf("expected ch1 closed")
	}
	if _, ok := <-ch2; ok {
		t.Fatalf("expected ch2 closed")
	}
	bus.Publish(1)
	if _, ok := <-bus.Subscribe(); ok {
		t.Fatalf("expected subscription on closed bus to be closed")
	}
}

func TestTypedBusUnsubscribeAfterClose(t *testing.T) {
	bus := NewTyped[float64]()
	ch := bus.Subscribe()
	bus.Close()
	defer func() {
		if r := recover(); r != nil {
			t.Fatalf("panic on Unsubscribe after Close: %v", r)
		}
	}()
	bus.Unsubscribe(ch)
}
