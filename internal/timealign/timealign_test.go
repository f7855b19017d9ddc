package timealign

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestAlignInstantCeiling(t *testing.T) {
	cases := []struct {
		name string
		in   time.Time
		want time.Time
	}{
		{
			name: "mid hour rounds up",
			in:   time.Date(2024, 6, 1, 10, 17, 33, 0, time.UTC),
			want: time.Date(2024, 6, 1, 11, 0, 0, 0, time.UTC),
		},
		{
			name: "one second after hour rounds up",
			in:   time.Date(2024, 6, 1, 10, 0, 1, 0, time.UTC),
			want: time.Date(2024, 6, 1, 11, 0, 0, 0, time.UTC),
		},
		{
			name: "exact hour maps to itself",
			in:   time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC),
			want: time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC),
		},
		{
			name: "last nanosecond before hour rounds up",
			in:   time.Date(2024, 6, 1, 10, 59, 59, 999999999, time.UTC),
			want: time.Date(2024, 6, 1, 11, 0, 0, 0, time.UTC),
		},
		{
			name: "day boundary",
			in:   time.Date(2024, 6, 1, 23, 30, 0, 0, time.UTC),
			want: time.Date(2024, 6, 2, 0, 0, 0, 0, time.UTC),
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, Align(tc.in, Instant))
		})
	}
}

func TestAlignInstantProperties(t *testing.T) {
	// Ceiling property over a sweep of offsets within one hour.
	base := time.Date(2024, 3, 15, 8, 0, 0, 0, time.UTC)
	for offset := time.Duration(0); offset < time.Hour; offset += 7 * time.Minute {
		in := base.Add(offset)
		got := Align(in, Instant)

		require.True(t, IsAligned(got), "aligned time must be on the hour: %s", got)
		require.False(t, got.Before(in), "aligned time must not precede input")
		require.Less(t, got.Sub(in), time.Hour, "aligned time must be within one hour of input")
	}
}

func TestAlignPeriodEnd(t *testing.T) {
	// An already aligned right edge stays untouched.
	edge := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	require.Equal(t, edge, Align(edge, PeriodEnd))

	// Slightly skewed edges round to the nearest hour.
	require.Equal(t, edge, Align(edge.Add(2*time.Minute), PeriodEnd))
	require.Equal(t, edge, Align(edge.Add(-2*time.Minute), PeriodEnd))

	// Exactly half past rounds up.
	require.Equal(t,
		time.Date(2024, 6, 1, 13, 0, 0, 0, time.UTC),
		Align(time.Date(2024, 6, 1, 12, 30, 0, 0, time.UTC), PeriodEnd))
}

func TestAlignConvertsToUTC(t *testing.T) {
	loc := time.FixedZone("CET", 3600)
	in := time.Date(2024, 6, 1, 11, 15, 0, 0, loc)
	got := Align(in, Instant)
	require.Equal(t, time.UTC, got.Location())
	require.Equal(t, time.Date(2024, 6, 1, 11, 0, 0, 0, time.UTC), got)
}
