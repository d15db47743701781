// Package soh runs battery string discharge tests.
//
// The Dispatcher polls the schedule repository on a fixed period and promotes
// due PENDING schedules to RUNNING, capturing the string's state of charge as
// the baseline. Each promoted schedule gets its own Calculator, supervised by
// a Registry, which integrates the measured current into used charge and
// derives the state of health until the schedule is stopped or a required
// reading disappears.
//
// All coordination goes through persisted state: a stop request flips the
// stored state and the owning Calculator observes it on its next iteration.
package soh
