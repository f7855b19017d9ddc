// Package persistence defines the narrow store interfaces the engine and
// the components depend on. The relational metadata store and the
// time-series store are deliberately split so either can be swapped
// without touching orchestration logic.
package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/smart-resource-management-trier/phorecast/internal/core"
	"github.com/smart-resource-management-trier/phorecast/internal/runid"
	"github.com/smart-resource-management-trier/phorecast/internal/timeseries"
)

// Measurement names of the shared time-series store.
const (
	MeasurementPVData          = "pv_measurement"
	MeasurementWeatherForecast = "weather_forecast"
	MeasurementPVForecast      = "pv_forecast"
	MeasurementPVEvaluation    = "pv_evaluation"
)

// Tag keys of the shared addressing scheme. Two correctly configured
// components never write the same (measurement, tag set, timestamp) key.
const (
	TagLoaderID   = "loader_id"
	TagCellID     = "cell_id"
	TagModelID    = "model_id"
	TagRun        = "run"
	TagModel      = "model"
	TagAPIVersion = "api_version"
)

// APIVersion tags every stored point so incompatible layouts can coexist
// in one bucket.
const APIVersion = "v1.0"

// ErrNoData is returned by reads that match no stored points.
var ErrNoData = errors.New("no data found")

// SeriesStore is the read/write interface to the shared time-series
// store. Writes are keyed by measurement name, tag set and aligned
// timestamp: a repeated write with an identical key overwrites, it never
// creates a duplicate row. Implementations must support concurrent
// writers addressing disjoint key spaces without a cross-component lock.
type SeriesStore interface {
	// Write persists all columns of the frame under the given
	// measurement and tag set. The frame must pass validation.
	Write(ctx context.Context, measurement string, tags map[string]string, frame *timeseries.Frame) error

	// ReadLast returns the most recent value of the field, or ErrNoData.
	ReadLast(ctx context.Context, measurement, field string, tags map[string]string) (float64, time.Time, error)

	// ReadRange returns the field's points within [from, to], sorted
	// ascending. A zero from or to leaves that side unbounded.
	ReadRange(ctx context.Context, measurement, field string, tags map[string]string, from, to time.Time) ([]timeseries.Point, error)

	// Runs returns the distinct run tags stored under the measurement
	// and tag set, sorted ascending.
	Runs(ctx context.Context, measurement string, tags map[string]string) ([]runid.RunID, error)

	// Ping reports whether the store is reachable.
	Ping(ctx context.Context) error
}

// MetadataStore holds the component configuration and the model run
// history. The engine reads one snapshot per cycle and writes back the
// per-attempt status; components append completed model runs.
type MetadataStore interface {
	// Snapshot returns the full configured component set.
	Snapshot(ctx context.Context) ([]core.ComponentSpec, error)

	// UpdateStatus records the outcome of an execution attempt. An empty
	// errMsg clears the error; a zero lastExec leaves the previous
	// last-execution timestamp untouched.
	UpdateStatus(ctx context.Context, componentID string, errMsg string, lastExec time.Time) error

	// AppendRun appends one immutable model run to the component's
	// history.
	AppendRun(ctx context.Context, componentID string, run core.ModelRun) error
}

// ArtifactStore hands out durable directories for trained-model
// artifacts.
type ArtifactStore interface {
	// CreateRunDir creates and returns a fresh directory for one
	// training run of the given model.
	CreateRunDir(modelID string) (string, error)
}
