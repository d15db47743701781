// Package events defines the events emitted on the event bus whenever a
// discharge test schedule changes.
//
// Available event types:
//   - ScheduleEvent: lifecycle transition of one schedule
package events
