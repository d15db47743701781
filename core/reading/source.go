// Package reading resolves the live measurements of a battery string. Point
// names are derived from the string id with fixed suffixes; the Source
// backends decide where the latest value of each point is stored.
package reading

import (
	"context"

	"github.com/kilianp07/soh/core/model"
)

// Point name suffixes appended to a string id.
const (
	SuffixNominalCapacity = "_Cnominal"
	SuffixSoC             = "_string_soc"
	SuffixCurrent         = "_total_i"
	SuffixTemperature     = "_ambient_t"
)

// Source returns the most recent reading for a data point. A nil reading with
// a nil error means the point has no value.
type Source interface {
	Latest(ctx context.Context, point string) (*model.Reading, error)
}

// Kind identifies one of the measurements used by the SoH calculation.
type Kind int

const (
	NominalCapacity Kind = iota
	SoC
	Current
	Temperature
)

func (k Kind) String() string {
	switch k {
	case NominalCapacity:
		return "nominal capacity"
	case SoC:
		return "state of charge"
	case Current:
		return "current"
	case Temperature:
		return "temperature"
	default:
		return "unknown"
	}
}

// Point returns the data point name of kind k for stringID.
func Point(stringID string, k Kind) string {
	switch k {
	case NominalCapacity:
		return stringID + SuffixNominalCapacity
	case SoC:
		return stringID + SuffixSoC
	case Current:
		return stringID + SuffixCurrent
	case Temperature:
		return stringID + SuffixTemperature
	}
	return stringID
}

// Value reads kind k of stringID as a number. ok is false when the point is
// absent or not numeric; err is only set for source failures.
func Value(ctx context.Context, src Source, stringID string, k Kind) (v float64, ok bool, err error) {
	r, err := src.Latest(ctx, Point(stringID, k))
	if err != nil {
		return 0, false, err
	}
	v, ok = r.Float()
	return v, ok, nil
}
