// Package timealign maps raw measurement timestamps onto the hourly grid
// used by the time-series store. Every stored point falls exactly on an
// hour boundary; the mapping depends on the measurement semantics.
package timealign

import "time"

// Kind describes the semantics of a measurement timestamp.
type Kind int

const (
	// Instant is a point-in-time sample, e.g. a temperature reading.
	Instant Kind = iota

	// PeriodEnd labels an aggregate over a trailing period with the
	// timestamp of the period's right edge, e.g. rainfall accumulated
	// over the previous hour. Producers must pre-aggregate to hourly
	// periods; this layer only performs the final rounding.
	PeriodEnd
)

func (k Kind) String() string {
	switch k {
	case Instant:
		return "instant"
	case PeriodEnd:
		return "period_end"
	default:
		return "unknown"
	}
}

// Align maps a raw timestamp to its canonical hourly grid timestamp in UTC.
//
// Instant samples are aligned to the next full hour at or after the
// measurement time. A sample exactly on the hour maps to itself.
// PeriodEnd labels are rounded to the nearest hour (half up).
func Align(t time.Time, k Kind) time.Time {
	t = t.UTC()
	switch k {
	case PeriodEnd:
		return t.Round(time.Hour)
	default:
		return ceilHour(t)
	}
}

func ceilHour(t time.Time) time.Time {
	truncated := t.Truncate(time.Hour)
	if truncated.Equal(t) {
		return t
	}
	return truncated.Add(time.Hour)
}

// IsAligned reports whether t lies exactly on an hour boundary.
func IsAligned(t time.Time) bool {
	return t.UTC().Truncate(time.Hour).Equal(t.UTC())
}
