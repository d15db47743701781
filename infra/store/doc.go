// Package store groups the SQL implementations of schedule.Repository. Both
// backends persist schedules in a soh_schedule table, make every update
// conditional on the version last read and enforce the one-open-test-per-string
// rule with a partial unique index.
package store
