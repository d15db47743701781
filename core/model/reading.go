package model

import (
	"math"
	"strconv"
	"strings"
	"time"
)

// Reading is the latest value recorded for a data point of a battery string.
// A data point carries a numeric, textual or boolean value depending on the
// channel type; Float hides the difference for numeric consumers.
type Reading struct {
	Point  string
	Number *float64
	Text   string
	Bool   *bool
	Time   time.Time
}

// Float returns the numeric value of the reading. Text values are parsed.
// The second result is false when no finite numeric interpretation exists,
// so NaN and infinities read as absent.
func (r *Reading) Float() (float64, bool) {
	if r == nil {
		return 0, false
	}
	if r.Number != nil {
		return finite(*r.Number)
	}
	if s := strings.TrimSpace(r.Text); s != "" {
		f, err := strconv.ParseFloat(s, 64)
		if err == nil {
			return finite(f)
		}
	}
	return 0, false
}

func finite(f float64) (float64, bool) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}
