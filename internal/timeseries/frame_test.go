package timeseries

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func hour(i int) time.Time {
	return time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC).Add(time.Duration(i) * time.Hour)
}

func TestFrameSetOverwrites(t *testing.T) {
	f := NewFrame("power")
	f.Set(hour(0), "power", 1.0)
	f.Set(hour(0), "power", 2.0)

	require.Equal(t, 1, f.Len())
	v, ok := f.Value(hour(0), "power")
	require.True(t, ok)
	assert.Equal(t, 2.0, v)
}

func TestFrameTimesSorted(t *testing.T) {
	f := NewFrame("x")
	f.Set(hour(3), "x", 3)
	f.Set(hour(1), "x", 1)
	f.Set(hour(2), "x", 2)

	times := f.Times()
	require.Len(t, times, 3)
	assert.Equal(t, []time.Time{hour(1), hour(2), hour(3)}, times)
}

func TestFrameColumn(t *testing.T) {
	f := NewFrame("x", "y")
	f.Set(hour(0), "x", 1)
	f.Set(hour(1), "x", 2)
	f.Set(hour(1), "y", 9)

	points := f.Column("x")
	require.Len(t, points, 2)
	assert.Equal(t, Point{Time: hour(0), Value: 1}, points[0])
	assert.Equal(t, Point{Time: hour(1), Value: 2}, points[1])

	require.Len(t, f.Column("y"), 1)
}

func TestInnerJoinExcludesUnmatchedRows(t *testing.T) {
	weather := NewFrame("temp")
	weather.Set(hour(0), "temp", 10)
	weather.Set(hour(1), "temp", 11)
	weather.Set(hour(2), "temp", 12)

	power := NewFrame("power")
	power.Set(hour(1), "power", 5)
	power.Set(hour(2), "power", 6)
	power.Set(hour(3), "power", 7)

	joined := InnerJoin(weather, power)
	require.Equal(t, 2, joined.Len())
	assert.Equal(t, []string{"temp", "power"}, joined.Columns())

	v, ok := joined.Value(hour(1), "temp")
	require.True(t, ok)
	assert.Equal(t, 11.0, v)
	v, ok = joined.Value(hour(1), "power")
	require.True(t, ok)
	assert.Equal(t, 5.0, v)

	_, ok = joined.Value(hour(0), "temp")
	assert.False(t, ok, "row without counterpart must be excluded")
	_, ok = joined.Value(hour(3), "power")
	assert.False(t, ok, "row without counterpart must be excluded")
}

func TestInnerJoinRequiresCompleteRows(t *testing.T) {
	a := NewFrame("x", "y")
	a.Set(hour(0), "x", 1) // y missing, row incomplete
	a.Set(hour(1), "x", 2)
	a.Set(hour(1), "y", 3)

	b := NewFrame("z")
	b.Set(hour(0), "z", 9)
	b.Set(hour(1), "z", 9)

	joined := InnerJoin(a, b)
	require.Equal(t, 1, joined.Len())
	_, ok := joined.Value(hour(0), "z")
	assert.False(t, ok)
}

func TestMatrix(t *testing.T) {
	f := NewFrame("a", "b")
	f.Set(hour(0), "a", 1)
	f.Set(hour(0), "b", 2)
	f.Set(hour(1), "a", 3) // b missing, row dropped
	f.Set(hour(2), "a", 5)
	f.Set(hour(2), "b", 6)

	times, data := f.Matrix([]string{"a", "b"})
	require.Len(t, times, 2)
	assert.Equal(t, []time.Time{hour(0), hour(2)}, times)
	assert.Equal(t, []float64{1, 2, 5, 6}, data)
}

func TestValidate(t *testing.T) {
	f := NewFrame("x")
	f.Set(hour(0), "x", 1)
	require.NoError(t, Validate(f))

	empty := NewFrame("x")
	require.Error(t, Validate(empty))
	require.Error(t, Validate(nil))

	misaligned := NewFrame("x")
	misaligned.Set(hour(0).Add(30*time.Minute), "x", 1)
	var verr *ValidationError
	require.ErrorAs(t, Validate(misaligned), &verr)

	nan := NewFrame("x")
	nan.Set(hour(0), "x", math.NaN())
	require.Error(t, Validate(nan))
}

func TestValidateContinuous(t *testing.T) {
	f := NewFrame("x")
	f.Set(hour(0), "x", 1)
	f.Set(hour(1), "x", 2)
	require.NoError(t, ValidateContinuous(f))

	f.Set(hour(3), "x", 4)
	require.Error(t, ValidateContinuous(f))
}
