package target

import (
	"context"
	"math"
	"strconv"
	"time"

	"github.com/smart-resource-management-trier/phorecast/internal/component"
	"github.com/smart-resource-management-trier/phorecast/internal/core"
	"github.com/smart-resource-management-trier/phorecast/internal/logger"
	"github.com/smart-resource-management-trier/phorecast/internal/persistence"
	"github.com/smart-resource-management-trier/phorecast/internal/timealign"
	"github.com/smart-resource-management-trier/phorecast/internal/timeseries"
)

func init() {
	component.Register("dummy_target_loader", core.CategoryTargetLoader, newDummyLoader)
}

// dummyLoader produces a synthetic hourly power curve. It exists for
// integration tests and for trying out the engine without an external
// source.
type dummyLoader struct {
	spec   core.ComponentSpec
	series persistence.SeriesStore

	field string
	hours int
	peakW float64
	start time.Time
}

func newDummyLoader(spec core.ComponentSpec, deps component.Deps) (component.Component, error) {
	if len(spec.Fields) == 0 {
		return nil, component.NewError(component.KindConfiguration, nil,
			"dummy target loader %q has no field configured", spec.Name)
	}

	hours, err := strconv.Atoi(spec.Param("hours", "24"))
	if err != nil || hours < 1 {
		return nil, component.NewError(component.KindConfiguration, err,
			"invalid hours parameter %q", spec.Param("hours", "24"))
	}
	peak, err := strconv.ParseFloat(spec.Param("peak_watts", "5000"), 64)
	if err != nil {
		return nil, component.NewError(component.KindConfiguration, err,
			"invalid peak_watts parameter %q", spec.Param("peak_watts", "5000"))
	}

	var start time.Time
	if raw := spec.Param("start", ""); raw != "" {
		start, err = time.Parse(time.RFC3339, raw)
		if err != nil {
			return nil, component.NewError(component.KindConfiguration, err,
				"invalid start parameter %q", raw)
		}
	}

	return &dummyLoader{
		spec:   spec,
		series: deps.Series,
		field:  spec.Fields[0].InfluxField,
		hours:  hours,
		peakW:  peak,
		start:  start,
	}, nil
}

func (l *dummyLoader) PreExecute(ctx context.Context) error {
	if err := l.series.Ping(ctx); err != nil {
		return component.NewError(component.KindConnectivity, err, "time-series store unreachable")
	}
	return nil
}

func (l *dummyLoader) Execute(ctx context.Context) error {
	start := l.start
	if start.IsZero() {
		start = time.Now().UTC().Add(-time.Duration(l.hours) * time.Hour)
	}

	frame := timeseries.NewFrame(l.field)
	for i := 0; i < l.hours; i++ {
		t := timealign.Align(start.Add(time.Duration(i)*time.Hour), timealign.Instant)
		frame.Set(t, l.field, l.syntheticPower(t))
	}

	tags := map[string]string{persistence.TagLoaderID: l.spec.ID}
	if err := l.series.Write(ctx, persistence.MeasurementPVData, tags, frame); err != nil {
		return component.NewError(component.KindDataIntegrity, err,
			"failed to write synthetic power data")
	}
	logger.Debug(ctx, "Dummy target loader wrote synthetic data",
		"component", l.spec.Name, "hours", l.hours)
	return nil
}

func (l *dummyLoader) PostExecute(_ context.Context) error {
	return nil
}

// syntheticPower follows a crude daylight curve: zero at night, a sine
// bump peaking at noon.
func (l *dummyLoader) syntheticPower(t time.Time) float64 {
	hour := float64(t.Hour())
	if hour < 6 || hour > 18 {
		return 0
	}
	return l.peakW * math.Sin(math.Pi*(hour-6)/12)
}
