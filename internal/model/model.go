// Package model contains the forecast models. A model trains on the
// joined history of one target field and one weather loader's forecasts,
// keeps an immutable run per training attempt and predicts every weather
// run that has no forecast yet.
package model

import (
	"context"
	"math"
	"time"

	"github.com/smart-resource-management-trier/phorecast/internal/component"
	"github.com/smart-resource-management-trier/phorecast/internal/core"
	"github.com/smart-resource-management-trier/phorecast/internal/logger"
	"github.com/smart-resource-management-trier/phorecast/internal/persistence"
	"github.com/smart-resource-management-trier/phorecast/internal/runid"
	"github.com/smart-resource-management-trier/phorecast/internal/timeseries"
)

// maxRunAge is the retrain fallback: models without a fresh enough run
// are retrained even when the retrain flag is off.
const maxRunAge = 7 * 24 * time.Hour

// base carries the plumbing every model variant shares: the resolved
// source loader, the run history of the current cycle and the store
// handles.
type base struct {
	spec   core.ComponentSpec
	loader core.ComponentSpec
	series persistence.SeriesStore
	meta   persistence.MetadataStore
	arts   persistence.ArtifactStore

	// runs starts as the snapshot history and grows when training in
	// this cycle appends a new run, so predict sees it immediately.
	runs []core.ModelRun
}

func newBase(spec core.ComponentSpec, deps component.Deps) (base, error) {
	if spec.FieldRef == "" {
		return base{}, component.NewError(component.KindConfiguration, nil,
			"model %q has no target field configured", spec.Name)
	}
	if spec.LoaderRef == "" {
		return base{}, component.NewError(component.KindConfiguration, nil,
			"model %q has no source weather loader configured", spec.Name)
	}
	if deps.Lookup == nil {
		return base{}, component.NewError(component.KindConfiguration, nil,
			"model %q cannot resolve its source loader", spec.Name)
	}
	loader, ok := deps.Lookup(spec.LoaderRef)
	if !ok {
		return base{}, component.NewError(component.KindConfiguration, nil,
			"model %q references unknown weather loader %q", spec.Name, spec.LoaderRef)
	}
	if len(loader.Cells) == 0 {
		return base{}, component.NewError(component.KindConfiguration, nil,
			"source loader %q of model %q has no cells", loader.Name, spec.Name)
	}

	runs := make([]core.ModelRun, len(spec.Runs))
	copy(runs, spec.Runs)
	return base{
		spec:   spec,
		loader: loader,
		series: deps.Series,
		meta:   deps.Meta,
		arts:   deps.Artifacts,
		runs:   runs,
	}, nil
}

// needsRetraining implements the retrain policy: the explicit flag
// forces a training attempt, otherwise the newest run must be younger
// than maxRunAge.
func (b *base) needsRetraining(now time.Time) bool {
	if b.spec.Retrain {
		return true
	}
	last := core.LastRun(b.runs)
	if last == nil {
		return true
	}
	return now.Sub(last.StartedAt) > maxRunAge
}

// featureNames returns the canonical weather field names of the source
// loader, in configuration order.
func (b *base) featureNames() []string {
	names := make([]string, len(b.loader.Fields))
	for i, f := range b.loader.Fields {
		names[i] = f.InfluxField
	}
	return names
}

// trainingFrame joins the target measurement history with the source
// loader's forecast history for its primary cell on the shared hourly
// index. Only complete rows survive the join.
func (b *base) trainingFrame(ctx context.Context) (*timeseries.Frame, error) {
	target, err := b.series.ReadRange(ctx, persistence.MeasurementPVData, b.spec.FieldRef,
		nil, time.Time{}, time.Time{})
	if err != nil {
		return nil, component.NewError(component.KindConnectivity, err,
			"failed to read target history for field %q", b.spec.FieldRef)
	}
	if len(target) == 0 {
		return nil, component.NewError(component.KindTraining, nil,
			"there seems to be no training data to train on")
	}

	cell := b.loader.Cells[0]
	weather := timeseries.NewFrame(b.featureNames()...)
	for _, name := range b.featureNames() {
		points, err := b.series.ReadRange(ctx, persistence.MeasurementWeatherForecast, name,
			map[string]string{
				persistence.TagLoaderID: b.loader.ID,
				persistence.TagCellID:   cell.ID,
			}, time.Time{}, time.Time{})
		if err != nil {
			return nil, component.NewError(component.KindConnectivity, err,
				"failed to read weather history for field %q", name)
		}
		for _, p := range points {
			weather.Set(p.Time, name, p.Value)
		}
	}

	joined := timeseries.InnerJoin(timeseries.FromPoints(b.spec.FieldRef, target), weather)
	if joined.Len() == 0 {
		return nil, component.NewError(component.KindTraining, nil,
			"target and weather history share no timestamps")
	}
	return joined, nil
}

// missingRuns returns the weather runs of the source loader that have no
// forecast from this model yet, sorted ascending.
func (b *base) missingRuns(ctx context.Context) ([]runid.RunID, error) {
	available, err := b.series.Runs(ctx, persistence.MeasurementWeatherForecast,
		map[string]string{persistence.TagLoaderID: b.loader.ID})
	if err != nil {
		return nil, component.NewError(component.KindConnectivity, err,
			"failed to list weather runs")
	}
	predicted, err := b.series.Runs(ctx, persistence.MeasurementPVForecast,
		map[string]string{persistence.TagModelID: b.spec.ID})
	if err != nil {
		return nil, component.NewError(component.KindConnectivity, err,
			"failed to list forecast runs")
	}
	return runid.Diff(available, predicted), nil
}

// weatherRunFrame loads one forecast run of the source loader's primary
// cell as a frame.
func (b *base) weatherRunFrame(ctx context.Context, run runid.RunID) (*timeseries.Frame, error) {
	cell := b.loader.Cells[0]
	frame := timeseries.NewFrame(b.featureNames()...)
	for _, name := range b.featureNames() {
		points, err := b.series.ReadRange(ctx, persistence.MeasurementWeatherForecast, name,
			map[string]string{
				persistence.TagLoaderID: b.loader.ID,
				persistence.TagCellID:   cell.ID,
				persistence.TagRun:      run.String(),
			}, time.Time{}, time.Time{})
		if err != nil {
			return nil, component.NewError(component.KindConnectivity, err,
				"failed to read weather run %s", run)
		}
		for _, p := range points {
			frame.Set(p.Time, name, p.Value)
		}
	}
	return frame, nil
}

// writeForecast persists one prediction run. Negative predictions are
// clipped to zero before the write; photovoltaic output cannot go
// below it.
func (b *base) writeForecast(ctx context.Context, run runid.RunID, times []time.Time, values []float64) error {
	frame := timeseries.NewFrame(b.spec.FieldRef)
	for i, t := range times {
		frame.Set(t, b.spec.FieldRef, math.Max(0, values[i]))
	}
	tags := map[string]string{
		persistence.TagModelID: b.spec.ID,
		persistence.TagRun:     run.String(),
	}
	if err := b.series.Write(ctx, persistence.MeasurementPVForecast, tags, frame); err != nil {
		return component.NewError(component.KindDataIntegrity, err,
			"failed to write forecast run %s", run)
	}
	return nil
}

// appendRun records a completed training attempt both in the metadata
// store and in the in-cycle history.
func (b *base) appendRun(ctx context.Context, run core.ModelRun) error {
	if err := b.meta.AppendRun(ctx, b.spec.ID, run); err != nil {
		return component.NewError(component.KindTraining, err,
			"failed to record training run")
	}
	b.runs = append(b.runs, run)
	return nil
}

// evaluate writes an absolute-error series for every forecast run that
// overlaps stored measurements and has no evaluation yet. Runs without
// overlap are left for a later cycle.
func (b *base) evaluate(ctx context.Context) error {
	forecasts, err := b.series.Runs(ctx, persistence.MeasurementPVForecast,
		map[string]string{persistence.TagModelID: b.spec.ID})
	if err != nil {
		return component.NewError(component.KindConnectivity, err,
			"failed to list forecast runs")
	}
	evaluated, err := b.series.Runs(ctx, persistence.MeasurementPVEvaluation,
		map[string]string{persistence.TagModelID: b.spec.ID})
	if err != nil {
		return component.NewError(component.KindConnectivity, err,
			"failed to list evaluation runs")
	}

	for _, run := range runid.Diff(forecasts, evaluated) {
		predicted, err := b.series.ReadRange(ctx, persistence.MeasurementPVForecast, b.spec.FieldRef,
			map[string]string{
				persistence.TagModelID: b.spec.ID,
				persistence.TagRun:     run.String(),
			}, time.Time{}, time.Time{})
		if err != nil {
			return component.NewError(component.KindConnectivity, err,
				"failed to read forecast run %s", run)
		}
		if len(predicted) == 0 {
			continue
		}

		measured, err := b.series.ReadRange(ctx, persistence.MeasurementPVData, b.spec.FieldRef,
			nil, predicted[0].Time, predicted[len(predicted)-1].Time)
		if err != nil {
			return component.NewError(component.KindConnectivity, err,
				"failed to read measurements for run %s", run)
		}
		actual := make(map[int64]float64, len(measured))
		for _, p := range measured {
			actual[p.Time.Unix()] = p.Value
		}

		frame := timeseries.NewFrame(b.spec.FieldRef)
		for _, p := range predicted {
			if v, ok := actual[p.Time.Unix()]; ok {
				frame.Set(p.Time, b.spec.FieldRef, math.Abs(p.Value-v))
			}
		}
		if frame.Len() == 0 {
			continue
		}

		tags := map[string]string{
			persistence.TagModelID: b.spec.ID,
			persistence.TagRun:     run.String(),
		}
		if err := b.series.Write(ctx, persistence.MeasurementPVEvaluation, tags, frame); err != nil {
			return component.NewError(component.KindDataIntegrity, err,
				"failed to write evaluation for run %s", run)
		}
		logger.Debug(ctx, "Evaluated forecast run",
			"component", b.spec.Name, "run", run, "hours", frame.Len())
	}
	return nil
}

// rmse is the shared score metric, lower is better.
func rmse(predicted, actual []float64) float64 {
	if len(predicted) == 0 || len(predicted) != len(actual) {
		return math.Inf(1)
	}
	var sum float64
	for i := range predicted {
		d := predicted[i] - actual[i]
		sum += d * d
	}
	return math.Sqrt(sum / float64(len(predicted)))
}
