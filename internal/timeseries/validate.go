package timeseries

import (
	"fmt"
	"math"
	"time"

	"github.com/smart-resource-management-trier/phorecast/internal/timealign"
)

// ValidationError reports a frame that violates the store's data rules.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return "frame validation failed: " + e.Reason
}

// Validate checks the structural rules every frame must satisfy before it
// is written to the series store: at least one row and column, every
// timestamp exactly on the hour, every value finite.
func Validate(f *Frame) error {
	if f == nil || f.Len() == 0 {
		return &ValidationError{Reason: "frame has no rows"}
	}
	if len(f.Columns()) == 0 {
		return &ValidationError{Reason: "frame has no columns"}
	}
	for _, t := range f.Times() {
		if !timealign.IsAligned(t) {
			return &ValidationError{Reason: fmt.Sprintf("timestamp %s is not hour-aligned", t)}
		}
	}
	for _, col := range f.Columns() {
		for _, p := range f.Column(col) {
			if math.IsNaN(p.Value) || math.IsInf(p.Value, 0) {
				return &ValidationError{
					Reason: fmt.Sprintf("column %q has a non-finite value at %s", col, p.Time),
				}
			}
		}
	}
	return nil
}

// ValidateContinuous additionally requires a gap-free hourly index.
func ValidateContinuous(f *Frame) error {
	if err := Validate(f); err != nil {
		return err
	}
	times := f.Times()
	for i := 1; i < len(times); i++ {
		if times[i].Sub(times[i-1]) != time.Hour {
			return &ValidationError{
				Reason: fmt.Sprintf("missing hour between %s and %s", times[i-1], times[i]),
			}
		}
	}
	return nil
}
