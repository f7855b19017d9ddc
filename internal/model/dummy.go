package model

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/smart-resource-management-trier/phorecast/internal/component"
	"github.com/smart-resource-management-trier/phorecast/internal/core"
	"github.com/smart-resource-management-trier/phorecast/internal/logger"
)

const dummyArtifactFile = "mean.json"

func init() {
	component.Register("dummy_model", core.CategoryModel, newDummyModel)
}

// dummyModel predicts the historical mean of the target field for every
// hour. It exercises the full train/predict/evaluate path without any
// numerics, which makes it the model of choice for engine tests.
type dummyModel struct {
	base
}

func newDummyModel(spec core.ComponentSpec, deps component.Deps) (component.Component, error) {
	b, err := newBase(spec, deps)
	if err != nil {
		return nil, err
	}
	return &dummyModel{base: b}, nil
}

func (m *dummyModel) PreExecute(ctx context.Context) error {
	if err := m.series.Ping(ctx); err != nil {
		return component.NewError(component.KindConnectivity, err, "time-series store unreachable")
	}
	return nil
}

func (m *dummyModel) Execute(ctx context.Context) error {
	if m.needsRetraining(time.Now().UTC()) {
		if err := m.train(ctx); err != nil {
			return err
		}
	}
	if err := m.predict(ctx); err != nil {
		return err
	}
	return m.evaluate(ctx)
}

func (m *dummyModel) PostExecute(_ context.Context) error {
	return nil
}

type dummyArtifact struct {
	Mean float64 `json:"mean"`
}

func (m *dummyModel) train(ctx context.Context) error {
	frame, err := m.trainingFrame(ctx)
	if err != nil {
		return err
	}

	points := frame.Column(m.spec.FieldRef)
	var mean float64
	for _, p := range points {
		mean += p.Value
	}
	mean /= float64(len(points))

	predicted := make([]float64, len(points))
	actual := make([]float64, len(points))
	for i, p := range points {
		predicted[i] = mean
		actual[i] = p.Value
	}

	dir, err := m.arts.CreateRunDir(m.spec.ID)
	if err != nil {
		return component.NewError(component.KindTraining, err,
			"could not create a run directory")
	}
	data, err := json.Marshal(dummyArtifact{Mean: mean})
	if err != nil {
		return component.NewError(component.KindTraining, err,
			"could not serialize the trained model")
	}
	if err := os.WriteFile(filepath.Join(dir, dummyArtifactFile), data, 0600); err != nil {
		return component.NewError(component.KindTraining, err,
			"could not save the trained model")
	}

	run := core.ModelRun{
		ID:           uuid.New().String(),
		Score:        rmse(predicted, actual),
		StartedAt:    time.Now().UTC(),
		ArtifactPath: dir,
	}
	if err := m.appendRun(ctx, run); err != nil {
		return err
	}
	logger.Info(ctx, "Dummy model trained", "component", m.spec.Name, "mean", mean)
	return nil
}

func (m *dummyModel) predict(ctx context.Context) error {
	if len(m.runs) == 0 {
		logger.Info(ctx, "Model has no runs, can't predict", "component", m.spec.Name)
		return nil
	}

	missing, err := m.missingRuns(ctx)
	if err != nil {
		return err
	}
	if len(missing) == 0 {
		return nil
	}

	best := core.BestRun(m.runs, 0)
	data, err := os.ReadFile(filepath.Join(best.ArtifactPath, dummyArtifactFile))
	if err != nil {
		return component.NewError(component.KindTraining, err,
			"could not load the trained model from run %s", best.ID)
	}
	var art dummyArtifact
	if err := json.Unmarshal(data, &art); err != nil {
		return component.NewError(component.KindTraining, err,
			"artifact of run %s is corrupt", best.ID)
	}

	for _, run := range missing {
		frame, err := m.weatherRunFrame(ctx, run)
		if err != nil {
			return err
		}
		times := frame.Times()
		if len(times) == 0 {
			continue
		}
		values := make([]float64, len(times))
		for i := range values {
			values[i] = art.Mean
		}
		if err := m.writeForecast(ctx, run, times, values); err != nil {
			return err
		}
		logger.Debug(ctx, "Dummy model predicted",
			"component", m.spec.Name, "run", run, "hours", len(times))
	}
	return nil
}
