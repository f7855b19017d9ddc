// Package target contains the loaders that fetch the measured values the
// models learn to predict, align them to the hourly grid and persist
// them as pv_measurement fields.
package target

import (
	"context"
	"fmt"
	"strings"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"

	"github.com/smart-resource-management-trier/phorecast/internal/component"
	"github.com/smart-resource-management-trier/phorecast/internal/core"
	"github.com/smart-resource-management-trier/phorecast/internal/logger"
	"github.com/smart-resource-management-trier/phorecast/internal/persistence"
	"github.com/smart-resource-management-trier/phorecast/internal/timealign"
	"github.com/smart-resource-management-trier/phorecast/internal/timeseries"
)

func init() {
	component.Register("influx_target_loader", core.CategoryTargetLoader, newInfluxLoader)
}

// influxLoader pulls one target field from an external InfluxDB. The
// user supplies a flux query returning the raw series; the loader
// injects the incremental time range and an hourly aggregation, then
// stores the result under the canonical field name.
type influxLoader struct {
	spec   core.ComponentSpec
	series persistence.SeriesStore

	url           string
	token         string
	org           string
	query         string
	externalField string
	influxField   string

	client   influxdb2.Client
	queryAPI api.QueryAPI
}

func newInfluxLoader(spec core.ComponentSpec, deps component.Deps) (component.Component, error) {
	if len(spec.Fields) == 0 {
		return nil, component.NewError(component.KindConfiguration, nil,
			"influx target loader %q has no field configured", spec.Name)
	}
	for _, key := range []string{"url", "token", "org", "query"} {
		if spec.Param(key, "") == "" {
			return nil, component.NewError(component.KindConfiguration, nil,
				"influx target loader %q is missing the %s parameter", spec.Name, key)
		}
	}

	field := spec.Fields[0]
	external := field.ExternalField
	if external == "" {
		external = field.InfluxField
	}

	return &influxLoader{
		spec:          spec,
		series:        deps.Series,
		url:           spec.Param("url", ""),
		token:         spec.Param("token", ""),
		org:           spec.Param("org", ""),
		query:         spec.Param("query", ""),
		externalField: external,
		influxField:   field.InfluxField,
	}, nil
}

func (l *influxLoader) PreExecute(ctx context.Context) error {
	if err := l.series.Ping(ctx); err != nil {
		return component.NewError(component.KindConnectivity, err, "time-series store unreachable")
	}

	l.client = influxdb2.NewClient(l.url, l.token)
	ok, err := l.client.Ping(ctx)
	if err != nil || !ok {
		return component.NewError(component.KindConnectivity, err,
			"external InfluxDB at %s is not reachable, check server config and credentials", l.url)
	}
	l.queryAPI = l.client.QueryAPI(l.org)
	return nil
}

func (l *influxLoader) Execute(ctx context.Context) error {
	// Incremental fetch window from the last stored point. Repeating the
	// window after a partial advance is safe: writes overwrite by key.
	since := "-3y"
	if _, ts, err := l.series.ReadLast(ctx, persistence.MeasurementPVData, l.influxField,
		map[string]string{persistence.TagLoaderID: l.spec.ID}); err == nil {
		since = ts.UTC().Format(time.RFC3339)
	}

	query, err := buildIncrementalQuery(l.query, since)
	if err != nil {
		return component.NewError(component.KindConfiguration, err, "invalid source query")
	}

	result, err := l.queryAPI.Query(ctx, query)
	if err != nil {
		return component.NewError(component.KindConnectivity, err,
			"query against the external InfluxDB failed")
	}
	defer result.Close()

	frame := timeseries.NewFrame(l.influxField)
	for result.Next() {
		record := result.Record()
		if record.Field() != l.externalField {
			continue
		}
		value, ok := record.Value().(float64)
		if !ok {
			continue
		}
		// aggregateWindow labels with the right edge of each hour.
		t := timealign.Align(record.Time(), timealign.PeriodEnd)
		frame.Set(t, l.influxField, value)
	}
	if result.Err() != nil {
		return component.NewError(component.KindConnectivity, result.Err(),
			"query against the external InfluxDB failed")
	}
	if frame.Len() == 0 {
		return component.NewError(component.KindDataIntegrity, nil,
			"the source query returned no rows for field %q", l.externalField)
	}

	tags := map[string]string{persistence.TagLoaderID: l.spec.ID}
	if err := l.series.Write(ctx, persistence.MeasurementPVData, tags, frame); err != nil {
		return component.NewError(component.KindDataIntegrity, err,
			"failed to write fetched target data")
	}

	times := frame.Times()
	logger.Info(ctx, "Target data written",
		"component", l.spec.Name, "rows", frame.Len(),
		"from", times[0], "to", times[len(times)-1])
	return nil
}

func (l *influxLoader) PostExecute(_ context.Context) error {
	if l.client != nil {
		l.client.Close()
		l.client = nil
	}
	return nil
}

// buildIncrementalQuery rewrites the user-supplied flux query: any range
// line is replaced with the incremental window, and an hourly mean
// aggregation is appended when the query does not aggregate itself.
func buildIncrementalQuery(query, since string) (string, error) {
	lines := strings.Split(query, "\n")
	if len(lines) <= 1 {
		return "", fmt.Errorf("the query must span multiple lines, starting with a from statement")
	}
	if !strings.Contains(strings.ReplaceAll(lines[0], " ", ""), "from(bucket:") {
		return "", fmt.Errorf("the query must start with a from statement")
	}

	kept := lines[:0]
	for _, line := range lines {
		if strings.Contains(strings.ReplaceAll(line, " ", ""), "|>range(") {
			continue
		}
		kept = append(kept, line)
	}

	out := make([]string, 0, len(kept)+2)
	out = append(out, kept[0], fmt.Sprintf("  |> range(start: %s)", since))
	out = append(out, kept[1:]...)

	hasAggregate := false
	for _, line := range out {
		if strings.Contains(strings.ReplaceAll(line, " ", ""), "|>aggregateWindow(") {
			hasAggregate = true
			break
		}
	}
	if !hasAggregate {
		out = append(out, `  |> aggregateWindow(every: 1h, fn: mean, createEmpty: false, timeSrc: "_stop", timeDst: "_time")`)
	}
	return strings.Join(out, "\n"), nil
}
