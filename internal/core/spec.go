// Package core defines the data model shared by the engine, the stores
// and the configurable components: component descriptors, fields, cells
// and model run history.
package core

import "time"

// Category is a scheduling group. Loader categories form one barrier that
// must fully complete before the model category starts.
type Category string

const (
	CategoryTargetLoader  Category = "target_loaders"
	CategoryWeatherLoader Category = "weather_loaders"
	CategoryModel         Category = "models"
)

// IsLoader reports whether the category belongs to the loader barrier.
func (c Category) IsLoader() bool {
	return c == CategoryTargetLoader || c == CategoryWeatherLoader
}

// Field identifies one scalar time series produced by a loader.
// InfluxField is the canonical measurement field name used as the join
// key against the store; ExternalField is the name used by the external
// source for loaders that must translate.
type Field struct {
	InfluxField   string `json:"influxField"`
	ExternalField string `json:"externalField,omitempty"`
}

// Cell is the geographic addressing unit owned by a weather loader. Lat2
// and Lon2 optionally define the lower-right corner of a grid rectangle.
// Member identifies one ensemble member, 0 for the main run.
type Cell struct {
	ID     string  `json:"id"`
	Member int     `json:"member"`
	Lat1   float64 `json:"lat1"`
	Lon1   float64 `json:"lon1"`
	Lat2   float64 `json:"lat2,omitempty"`
	Lon2   float64 `json:"lon2,omitempty"`
}

// ComponentSpec is the validated configuration snapshot of one component
// as loaded from the metadata store at cycle start.
type ComponentSpec struct {
	ID     string            `json:"id"`
	Name   string            `json:"name"`
	Type   string            `json:"type"`
	Params map[string]string `json:"params,omitempty"`

	// Loader ownership.
	Fields []Field `json:"fields,omitempty"`
	Cells  []Cell  `json:"cells,omitempty"`

	// Model references and state.
	FieldRef  string     `json:"fieldRef,omitempty"`  // influx field name of the training target
	LoaderRef string     `json:"loaderRef,omitempty"` // component id of the source weather loader
	Retrain   bool       `json:"retrain,omitempty"`
	Runs      []ModelRun `json:"runs,omitempty"`

	// Status bookkeeping, mutated only via the metadata store after each
	// execution attempt.
	Error         string     `json:"error,omitempty"`
	LastExecution *time.Time `json:"lastExecution,omitempty"`
}

// Param returns the named parameter or the given default.
func (s ComponentSpec) Param(key, def string) string {
	if v, ok := s.Params[key]; ok {
		return v
	}
	return def
}
