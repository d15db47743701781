package model

import (
	"fmt"
	"strings"
	"time"
)

// State is the lifecycle state of a discharge test schedule.
type State int

const (
	StatePending State = iota
	StateRunning
	StateStopped
	StateSuccess
	StateFailed
)

// String returns the persisted representation of the state.
func (s State) String() string {
	switch s {
	case StatePending:
		return "PENDING"
	case StateRunning:
		return "RUNNING"
	case StateStopped:
		return "STOPPED"
	case StateSuccess:
		return "SUCCESS"
	case StateFailed:
		return "FAILED"
	default:
		return "UNKNOWN"
	}
}

// Terminal reports whether no further transition can leave s.
func (s State) Terminal() bool {
	return s == StateSuccess || s == StateFailed
}

// ParseState converts the textual form produced by String back to a State.
func ParseState(v string) (State, error) {
	switch strings.ToUpper(strings.TrimSpace(v)) {
	case "PENDING":
		return StatePending, nil
	case "RUNNING":
		return StateRunning, nil
	case "STOPPED":
		return StateStopped, nil
	case "SUCCESS":
		return StateSuccess, nil
	case "FAILED":
		return StateFailed, nil
	}
	return 0, fmt.Errorf("unknown schedule state %q", v)
}

// MarshalText implements encoding.TextMarshaler.
func (s State) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *State) UnmarshalText(b []byte) error {
	v, err := ParseState(string(b))
	if err != nil {
		return err
	}
	*s = v
	return nil
}

// Status is the soft-delete flag of a schedule, independent of its State.
type Status int

const (
	StatusActive Status = iota
	StatusInactive
)

func (s Status) String() string {
	if s == StatusInactive {
		return "INACTIVE"
	}
	return "ACTIVE"
}

// ParseStatus converts the textual form produced by String back to a Status.
func ParseStatus(v string) (Status, error) {
	switch strings.ToUpper(strings.TrimSpace(v)) {
	case "ACTIVE":
		return StatusActive, nil
	case "INACTIVE":
		return StatusInactive, nil
	}
	return 0, fmt.Errorf("unknown schedule status %q", v)
}

func (s Status) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

func (s *Status) UnmarshalText(b []byte) error {
	v, err := ParseStatus(string(b))
	if err != nil {
		return err
	}
	*s = v
	return nil
}

// Schedule is one discharge test of a battery string.
type Schedule struct {
	ID       int64
	StringID string
	// Current is the commanded discharge current in A.
	Current float64
	// UsedCharge accumulates consumed charge in A·s.
	UsedCharge float64
	SoH        *float64
	SoCBefore  *float64
	SoCAfter   *float64
	State      State
	Status     Status
	Start      time.Time
	Updated    time.Time
	End        *time.Time
	// Version is bumped by every successful save; writes are conditional on it.
	Version int64
}

// NewSchedule returns an unsaved PENDING, ACTIVE schedule.
func NewSchedule(stringID string, current float64, start time.Time) Schedule {
	return Schedule{
		StringID: stringID,
		Current:  current,
		Start:    start,
		State:    StatePending,
		Status:   StatusActive,
	}
}

// In reports whether the schedule is in one of the given states.
func (s Schedule) In(states ...State) bool {
	for _, st := range states {
		if s.State == st {
			return true
		}
	}
	return false
}

// Matches reports whether the schedule has the given status and one of the states.
func (s Schedule) Matches(states []State, status Status) bool {
	return s.Status == status && s.In(states...)
}

// Finish moves the schedule into a terminal state and stamps the end time.
func (s *Schedule) Finish(state State, now time.Time) {
	s.State = state
	s.Updated = now
	end := now
	s.End = &end
}

// View projects the schedule to the record exposed to API consumers.
func (s Schedule) View() ScheduleView {
	v := ScheduleView{
		ID:        s.ID,
		StringID:  s.StringID,
		Current:   s.Current,
		SoH:       s.SoH,
		State:     s.State.String(),
		StartTime: s.Start,
	}
	if s.End != nil {
		end := *s.End
		v.EndTime = &end
	}
	return v
}

// ScheduleView is the plain data record returned by list operations.
type ScheduleView struct {
	ID        int64      `json:"id"`
	StringID  string     `json:"strId"`
	Current   float64    `json:"current"`
	SoH       *float64   `json:"soh,omitempty"`
	State     string     `json:"state"`
	StartTime time.Time  `json:"startTime"`
	EndTime   *time.Time `json:"endTime,omitempty"`
}

// Float returns a pointer to v.
func Float(v float64) *float64 { return &v }
