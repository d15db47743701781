package soh

import "github.com/cockroachdb/errors"

// ErrDataUnavailable reports that a reading required by the calculator could
// not be obtained. It finalizes the schedule as FAILED and never reaches API
// callers.
var ErrDataUnavailable = errors.New("required reading unavailable")
