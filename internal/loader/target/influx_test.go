package target

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smart-resource-management-trier/phorecast/internal/component"
	"github.com/smart-resource-management-trier/phorecast/internal/core"
	"github.com/smart-resource-management-trier/phorecast/internal/persistence/memstore"
)

func TestBuildIncrementalQueryReplacesRange(t *testing.T) {
	query := `from(bucket: "solar")
  |> range(start: -30d)
  |> filter(fn: (r) => r._measurement == "inverter")`

	got, err := buildIncrementalQuery(query, "2024-06-01T00:00:00Z")
	require.NoError(t, err)

	assert.Equal(t, 1, strings.Count(got, "|> range("))
	assert.Contains(t, got, "range(start: 2024-06-01T00:00:00Z)")
	lines := strings.Split(got, "\n")
	assert.Contains(t, lines[1], "range(")
}

func TestBuildIncrementalQueryAppendsAggregation(t *testing.T) {
	query := `from(bucket: "solar")
  |> filter(fn: (r) => r._measurement == "inverter")`

	got, err := buildIncrementalQuery(query, "-3y")
	require.NoError(t, err)
	assert.Contains(t, got, `aggregateWindow(every: 1h, fn: mean`)
	assert.Contains(t, got, `timeSrc: "_stop"`)
}

func TestBuildIncrementalQueryKeepsExistingAggregation(t *testing.T) {
	query := `from(bucket: "solar")
  |> filter(fn: (r) => r._measurement == "inverter")
  |> aggregateWindow(every: 1h, fn: max)`

	got, err := buildIncrementalQuery(query, "-3y")
	require.NoError(t, err)
	assert.Equal(t, 1, strings.Count(got, "aggregateWindow"))
	assert.Contains(t, got, "fn: max")
}

func TestBuildIncrementalQueryRejectsMalformed(t *testing.T) {
	for name, query := range map[string]string{
		"single line":  `from(bucket: "solar") |> filter(fn: (r) => true)`,
		"no from head": "buckets()\n  |> limit(n: 1)",
	} {
		t.Run(name, func(t *testing.T) {
			_, err := buildIncrementalQuery(query, "-3y")
			require.Error(t, err)
		})
	}
}

func TestInfluxLoaderRequiresConnectionParams(t *testing.T) {
	spec := core.ComponentSpec{
		ID:   "tl2",
		Name: "external pv",
		Type: "influx_target_loader",
		Params: map[string]string{
			"url":   "http://influx:8086",
			"token": "secret",
			"org":   "home",
			// query missing
		},
		Fields: []core.Field{{InfluxField: "power", ExternalField: "w_total"}},
	}
	_, _, err := component.Build(spec, component.Deps{Series: memstore.New()})
	require.Error(t, err)
	var cerr *component.Error
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, component.KindConfiguration, cerr.Kind)
}
