// Package weather contains the loaders that fetch numerical weather
// prediction output and persist it as weather_forecast runs. Every run
// is tagged with the loader, the cell and the model run id so forecast
// models can line predictions up with the weather that produced them.
package weather

import (
	"context"
	"math"
	"strconv"
	"time"

	"github.com/smart-resource-management-trier/phorecast/internal/component"
	"github.com/smart-resource-management-trier/phorecast/internal/core"
	"github.com/smart-resource-management-trier/phorecast/internal/logger"
	"github.com/smart-resource-management-trier/phorecast/internal/persistence"
	"github.com/smart-resource-management-trier/phorecast/internal/runid"
	"github.com/smart-resource-management-trier/phorecast/internal/timeseries"
)

func init() {
	component.Register("dummy_weather_loader", core.CategoryWeatherLoader, newDummyLoader)
}

// dummyLoader writes one synthetic forecast run per cycle. Used in
// integration tests and to exercise models without DWD access.
type dummyLoader struct {
	spec   core.ComponentSpec
	series persistence.SeriesStore

	horizon int
	run     runid.RunID
}

func newDummyLoader(spec core.ComponentSpec, deps component.Deps) (component.Component, error) {
	if len(spec.Fields) == 0 {
		return nil, component.NewError(component.KindConfiguration, nil,
			"dummy weather loader %q has no field configured", spec.Name)
	}
	if len(spec.Cells) == 0 {
		return nil, component.NewError(component.KindConfiguration, nil,
			"dummy weather loader %q has no cell configured", spec.Name)
	}

	horizon, err := strconv.Atoi(spec.Param("horizon_hours", "48"))
	if err != nil || horizon < 1 {
		return nil, component.NewError(component.KindConfiguration, err,
			"invalid horizon_hours parameter %q", spec.Param("horizon_hours", "48"))
	}

	var run runid.RunID
	if raw := spec.Param("run", ""); raw != "" {
		run, err = runid.Parse(raw)
		if err != nil {
			return nil, component.NewError(component.KindConfiguration, err,
				"invalid run parameter %q", raw)
		}
	}

	return &dummyLoader{
		spec:    spec,
		series:  deps.Series,
		horizon: horizon,
		run:     run,
	}, nil
}

func (l *dummyLoader) PreExecute(ctx context.Context) error {
	if err := l.series.Ping(ctx); err != nil {
		return component.NewError(component.KindConnectivity, err, "time-series store unreachable")
	}
	return nil
}

func (l *dummyLoader) Execute(ctx context.Context) error {
	run := l.run
	if run == 0 {
		run = runid.FromTime(time.Now().UTC())
	}

	existing, err := l.series.Runs(ctx, persistence.MeasurementWeatherForecast,
		map[string]string{persistence.TagLoaderID: l.spec.ID})
	if err != nil {
		return component.NewError(component.KindConnectivity, err,
			"failed to list existing forecast runs")
	}
	for _, id := range existing {
		if id == run {
			logger.Info(ctx, "No new forecasts found, nothing to do",
				"component", l.spec.Name, "run", run)
			return nil
		}
	}

	start := run.Time()
	fields := make([]string, len(l.spec.Fields))
	for i, f := range l.spec.Fields {
		fields[i] = f.InfluxField
	}

	for _, cell := range l.spec.Cells {
		frame := timeseries.NewFrame(fields...)
		for i := 0; i < l.horizon; i++ {
			t := start.Add(time.Duration(i) * time.Hour)
			for j, field := range fields {
				frame.Set(t, field, syntheticWeather(t, cell.Member+j))
			}
		}

		tags := map[string]string{
			persistence.TagLoaderID: l.spec.ID,
			persistence.TagCellID:   cell.ID,
			persistence.TagModel:    "dummy",
			persistence.TagRun:      run.String(),
		}
		if err := l.series.Write(ctx, persistence.MeasurementWeatherForecast, tags, frame); err != nil {
			return component.NewError(component.KindDataIntegrity, err,
				"failed to write forecast run %s for cell %s", run, cell.ID)
		}
	}

	logger.Debug(ctx, "Dummy weather loader wrote forecast run",
		"component", l.spec.Name, "run", run, "cells", len(l.spec.Cells))
	return nil
}

func (l *dummyLoader) PostExecute(_ context.Context) error {
	return nil
}

// syntheticWeather is a deterministic diurnal wave so models trained on
// it converge to something non-trivial.
func syntheticWeather(t time.Time, phase int) float64 {
	hour := float64(t.Hour()) + float64(phase)
	return 100 * (1 + math.Sin(math.Pi*hour/12))
}
