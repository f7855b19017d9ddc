package memstore

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smart-resource-management-trier/phorecast/internal/persistence"
	"github.com/smart-resource-management-trier/phorecast/internal/runid"
	"github.com/smart-resource-management-trier/phorecast/internal/timeseries"
)

func hour(i int) time.Time {
	return time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC).Add(time.Duration(i) * time.Hour)
}

func powerFrame(values ...float64) *timeseries.Frame {
	f := timeseries.NewFrame("power")
	for i, v := range values {
		f.Set(hour(i), "power", v)
	}
	return f
}

func TestWriteAndReadLast(t *testing.T) {
	s := New()
	ctx := context.Background()
	tags := map[string]string{persistence.TagLoaderID: "l1"}

	require.NoError(t, s.Write(ctx, persistence.MeasurementPVData, tags, powerFrame(1, 2, 3)))

	v, ts, err := s.ReadLast(ctx, persistence.MeasurementPVData, "power", tags)
	require.NoError(t, err)
	assert.Equal(t, 3.0, v)
	assert.Equal(t, hour(2), ts)
}

func TestReadLastNoData(t *testing.T) {
	s := New()
	_, _, err := s.ReadLast(context.Background(), persistence.MeasurementPVData, "power", nil)
	require.ErrorIs(t, err, persistence.ErrNoData)
}

func TestRepeatedWriteIsIdempotent(t *testing.T) {
	s := New()
	ctx := context.Background()
	tags := map[string]string{persistence.TagLoaderID: "l1"}

	require.NoError(t, s.Write(ctx, persistence.MeasurementPVData, tags, powerFrame(1, 2, 3)))
	first := s.PointCount()
	require.NoError(t, s.Write(ctx, persistence.MeasurementPVData, tags, powerFrame(1, 2, 3)))

	assert.Equal(t, first, s.PointCount(), "repeat write with identical keys must not add rows")
}

func TestWriteRejectsMisalignedFrame(t *testing.T) {
	s := New()
	f := timeseries.NewFrame("power")
	f.Set(hour(0).Add(10*time.Minute), "power", 1)
	err := s.Write(context.Background(), persistence.MeasurementPVData, nil, f)
	require.Error(t, err)
}

func TestReadRange(t *testing.T) {
	s := New()
	ctx := context.Background()
	tags := map[string]string{persistence.TagLoaderID: "l1"}
	require.NoError(t, s.Write(ctx, persistence.MeasurementPVData, tags, powerFrame(1, 2, 3, 4)))

	points, err := s.ReadRange(ctx, persistence.MeasurementPVData, "power", tags, hour(1), hour(2))
	require.NoError(t, err)
	require.Len(t, points, 2)
	assert.Equal(t, 2.0, points[0].Value)
	assert.Equal(t, 3.0, points[1].Value)

	// Unbounded range returns everything, sorted.
	points, err = s.ReadRange(ctx, persistence.MeasurementPVData, "power", tags, time.Time{}, time.Time{})
	require.NoError(t, err)
	require.Len(t, points, 4)
}

func TestTagFiltering(t *testing.T) {
	s := New()
	ctx := context.Background()
	require.NoError(t, s.Write(ctx, persistence.MeasurementPVData,
		map[string]string{persistence.TagLoaderID: "l1"}, powerFrame(1)))
	require.NoError(t, s.Write(ctx, persistence.MeasurementPVData,
		map[string]string{persistence.TagLoaderID: "l2"}, powerFrame(9)))

	v, _, err := s.ReadLast(ctx, persistence.MeasurementPVData, "power",
		map[string]string{persistence.TagLoaderID: "l2"})
	require.NoError(t, err)
	assert.Equal(t, 9.0, v)
}

func TestRuns(t *testing.T) {
	s := New()
	ctx := context.Background()

	write := func(run string, loaderID string) {
		tags := map[string]string{
			persistence.TagLoaderID: loaderID,
			persistence.TagRun:      run,
		}
		require.NoError(t, s.Write(ctx, persistence.MeasurementWeatherForecast, tags, powerFrame(1)))
	}
	write("2023071812", "l1")
	write("2023071815", "l1")
	write("2023071818", "l2")

	runs, err := s.Runs(ctx, persistence.MeasurementWeatherForecast,
		map[string]string{persistence.TagLoaderID: "l1"})
	require.NoError(t, err)
	assert.Equal(t, []runid.RunID{2023071812, 2023071815}, runs)

	runs, err = s.Runs(ctx, persistence.MeasurementWeatherForecast, nil)
	require.NoError(t, err)
	assert.Len(t, runs, 3)
}
