package model

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/google/uuid"
	"gonum.org/v1/gonum/mat"

	"github.com/smart-resource-management-trier/phorecast/internal/component"
	"github.com/smart-resource-management-trier/phorecast/internal/core"
	"github.com/smart-resource-management-trier/phorecast/internal/logger"
)

const ridgeArtifactFile = "model.json"

func init() {
	component.Register("ridge_model", core.CategoryModel, newRidgeModel)
}

// ridgeArtifact is the serialized trained state: one weight per feature
// plus an intercept, with the feature order pinned so a prediction run
// assembles its input matrix the same way training did.
type ridgeArtifact struct {
	Features  []string  `json:"features"`
	Weights   []float64 `json:"weights"`
	Intercept float64   `json:"intercept"`
	Lambda    float64   `json:"lambda"`
}

// ridgeModel fits a linear map from the weather features to the target
// field with L2 regularization, solved via the normal equations.
type ridgeModel struct {
	base

	lambda  float64
	minRows int
	bestOf  int
}

func newRidgeModel(spec core.ComponentSpec, deps component.Deps) (component.Component, error) {
	b, err := newBase(spec, deps)
	if err != nil {
		return nil, err
	}

	lambda, err := strconv.ParseFloat(spec.Param("lambda", "1.0"), 64)
	if err != nil || lambda < 0 {
		return nil, component.NewError(component.KindConfiguration, err,
			"invalid lambda parameter %q", spec.Param("lambda", "1.0"))
	}
	minRows, err := strconv.Atoi(spec.Param("min_rows", "24"))
	if err != nil || minRows < 1 {
		return nil, component.NewError(component.KindConfiguration, err,
			"invalid min_rows parameter %q", spec.Param("min_rows", "24"))
	}
	bestOf, err := strconv.Atoi(spec.Param("best_of", "0"))
	if err != nil || bestOf < 0 {
		return nil, component.NewError(component.KindConfiguration, err,
			"invalid best_of parameter %q", spec.Param("best_of", "0"))
	}

	return &ridgeModel{base: b, lambda: lambda, minRows: minRows, bestOf: bestOf}, nil
}

func (m *ridgeModel) PreExecute(ctx context.Context) error {
	if err := m.series.Ping(ctx); err != nil {
		return component.NewError(component.KindConnectivity, err, "time-series store unreachable")
	}
	return nil
}

func (m *ridgeModel) Execute(ctx context.Context) error {
	if m.needsRetraining(time.Now().UTC()) {
		if err := m.train(ctx); err != nil {
			return err
		}
	} else {
		logger.Debug(ctx, "Model was already trained recently, skipping retraining",
			"component", m.spec.Name)
	}
	if err := m.predict(ctx); err != nil {
		return err
	}
	return m.evaluate(ctx)
}

func (m *ridgeModel) PostExecute(_ context.Context) error {
	return nil
}

func (m *ridgeModel) train(ctx context.Context) error {
	frame, err := m.trainingFrame(ctx)
	if err != nil {
		return err
	}

	features := m.featureNames()
	times, x := frame.Matrix(features)
	if len(times) < m.minRows {
		return component.NewError(component.KindTraining, nil,
			"not enough training data available: has %d rows, needs %d", len(times), m.minRows)
	}
	y := make([]float64, len(times))
	for i, t := range times {
		v, _ := frame.Value(t, m.spec.FieldRef)
		y[i] = v
	}

	weights, intercept, err := fitRidge(x, y, len(features), m.lambda)
	if err != nil {
		return component.NewError(component.KindTraining, err, "ridge fit failed")
	}

	art := ridgeArtifact{Features: features, Weights: weights, Intercept: intercept, Lambda: m.lambda}
	predicted := make([]float64, len(y))
	for i := range y {
		predicted[i] = art.apply(x[i*len(features) : (i+1)*len(features)])
	}
	score := rmse(predicted, y)

	dir, err := m.arts.CreateRunDir(m.spec.ID)
	if err != nil {
		return component.NewError(component.KindTraining, err,
			"could not create a run directory")
	}
	if err := saveRidgeArtifact(dir, art); err != nil {
		return component.NewError(component.KindTraining, err,
			"could not save the trained model")
	}

	run := core.ModelRun{
		ID:           uuid.New().String(),
		Score:        score,
		StartedAt:    time.Now().UTC(),
		ArtifactPath: dir,
	}
	if err := m.appendRun(ctx, run); err != nil {
		return err
	}
	logger.Info(ctx, "Successfully trained model",
		"component", m.spec.Name, "score", score, "rows", len(times))
	return nil
}

func (m *ridgeModel) predict(ctx context.Context) error {
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

	best := core.BestRun(m.runs, m.bestOf)
	art, err := loadRidgeArtifact(best.ArtifactPath)
	if err != nil {
		return component.NewError(component.KindTraining, err,
			"could not load the trained model from run %s", best.ID)
	}

	for _, run := range missing {
		frame, err := m.weatherRunFrame(ctx, run)
		if err != nil {
			return err
		}
		times, x := frame.Matrix(art.Features)
		if len(times) == 0 {
			logger.Warn(ctx, "Weather run carries no usable rows, skipping",
				"component", m.spec.Name, "run", run)
			continue
		}

		values := make([]float64, len(times))
		for i := range times {
			values[i] = art.apply(x[i*len(art.Features) : (i+1)*len(art.Features)])
		}
		if err := m.writeForecast(ctx, run, times, values); err != nil {
			return err
		}
		logger.Info(ctx, "Model created predictions",
			"component", m.spec.Name, "run", run, "hours", len(times))
	}
	return nil
}

func (a ridgeArtifact) apply(row []float64) float64 {
	v := a.Intercept
	for i, w := range a.Weights {
		v += w * row[i]
	}
	return v
}

// fitRidge solves (XᵀX + λI)w = Xᵀy with an unpenalized intercept
// column. x is row-major with cols columns.
func fitRidge(x, y []float64, cols int, lambda float64) (weights []float64, intercept float64, err error) {
	rows := len(y)

	// Augment with a leading ones column for the intercept.
	aug := mat.NewDense(rows, cols+1, nil)
	for i := 0; i < rows; i++ {
		aug.Set(i, 0, 1)
		for j := 0; j < cols; j++ {
			aug.Set(i, j+1, x[i*cols+j])
		}
	}
	target := mat.NewVecDense(rows, y)

	var gram mat.Dense
	gram.Mul(aug.T(), aug)
	for j := 1; j <= cols; j++ {
		gram.Set(j, j, gram.At(j, j)+lambda)
	}

	var rhs mat.VecDense
	rhs.MulVec(aug.T(), target)

	var solution mat.VecDense
	if err := solution.SolveVec(&gram, &rhs); err != nil {
		return nil, 0, fmt.Errorf("normal equations are singular: %w", err)
	}

	weights = make([]float64, cols)
	for j := 0; j < cols; j++ {
		weights[j] = solution.AtVec(j + 1)
	}
	return weights, solution.AtVec(0), nil
}

func saveRidgeArtifact(dir string, art ridgeArtifact) error {
	data, err := json.MarshalIndent(art, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, ridgeArtifactFile), data, 0600)
}

func loadRidgeArtifact(dir string) (ridgeArtifact, error) {
	data, err := os.ReadFile(filepath.Join(dir, ridgeArtifactFile))
	if err != nil {
		return ridgeArtifact{}, err
	}
	var art ridgeArtifact
	if err := json.Unmarshal(data, &art); err != nil {
		return ridgeArtifact{}, err
	}
	if len(art.Features) == 0 || len(art.Features) != len(art.Weights) {
		return ridgeArtifact{}, fmt.Errorf("artifact in %s is inconsistent", dir)
	}
	return art, nil
}
