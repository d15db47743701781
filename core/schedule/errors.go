package schedule

import "github.com/cockroachdb/errors"

// Error kinds returned by the lifecycle service and the repositories. Callers
// classify errors with errors.Is.
var (
	// ErrConflict reports that a string already has a pending or running test.
	ErrConflict = errors.New("schedule conflict")
	// ErrNotFound reports that no schedule exists in the state an operation requires.
	ErrNotFound = errors.New("schedule not found")
	// ErrStale reports a lost optimistic-versioning race. The write may be retried
	// after re-reading the schedule.
	ErrStale = errors.New("schedule modified concurrently")
	// ErrPersistence marks repository failures.
	ErrPersistence = errors.New("schedule persistence failure")
	// ErrValidation reports malformed input.
	ErrValidation = errors.New("invalid schedule")
)

// Persistence wraps err with op and marks it as ErrPersistence. It returns nil
// for a nil err.
func Persistence(err error, op string) error {
	if err == nil {
		return nil
	}
	return errors.Mark(errors.Wrap(err, op), ErrPersistence)
}

// Stale returns ErrStale annotated with the schedule id and the version the
// writer expected.
func Stale(id, version int64) error {
	return errors.Wrapf(ErrStale, "schedule %d at version %d", id, version)
}
