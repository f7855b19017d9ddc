// Package influxstore implements the SeriesStore on InfluxDB 2.x. The
// flux queries are bounded to a fixed window around now to keep result
// sets sane: three years back, eleven days forward (forecasts reach into
// the future).
package influxstore

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"

	"github.com/smart-resource-management-trier/phorecast/internal/persistence"
	"github.com/smart-resource-management-trier/phorecast/internal/runid"
	"github.com/smart-resource-management-trier/phorecast/internal/timeseries"
)

const (
	minRange = "-3y"
	maxRange = "11d"
)

var _ persistence.SeriesStore = (*Store)(nil)

// Config holds the InfluxDB connection settings.
type Config struct {
	URL    string
	Token  string
	Org    string
	Bucket string
}

// Store wraps the InfluxDB client behind the SeriesStore interface.
type Store struct {
	client   influxdb2.Client
	writeAPI api.WriteAPIBlocking
	queryAPI api.QueryAPI
	bucket   string
}

// New creates a store for the given connection settings.
func New(cfg Config) *Store {
	client := influxdb2.NewClient(cfg.URL, cfg.Token)
	return &Store{
		client:   client,
		writeAPI: client.WriteAPIBlocking(cfg.Org, cfg.Bucket),
		queryAPI: client.QueryAPI(cfg.Org),
		bucket:   cfg.Bucket,
	}
}

// Close releases the underlying client.
func (s *Store) Close() {
	s.client.Close()
}

// Ping implements persistence.SeriesStore.
func (s *Store) Ping(ctx context.Context) error {
	ok, err := s.client.Ping(ctx)
	if err != nil {
		return fmt.Errorf("influxdb ping failed: %w", err)
	}
	if !ok {
		return fmt.Errorf("influxdb at %s is not ready", s.bucket)
	}
	return nil
}

// Write implements persistence.SeriesStore. One point per timestamp
// carries all frame columns; the api_version tag is added to every
// point. Writes are keyed by measurement, tag set and timestamp, so a
// repeated write overwrites instead of duplicating.
func (s *Store) Write(ctx context.Context, measurement string, tags map[string]string, frame *timeseries.Frame) error {
	if err := timeseries.Validate(frame); err != nil {
		return err
	}

	tagged := make(map[string]string, len(tags)+1)
	for k, v := range tags {
		tagged[k] = v
	}
	tagged[persistence.TagAPIVersion] = persistence.APIVersion

	cols := frame.Columns()
	for _, t := range frame.Times() {
		fields := make(map[string]any, len(cols))
		for _, col := range cols {
			if v, ok := frame.Value(t, col); ok {
				fields[col] = v
			}
		}
		if len(fields) == 0 {
			continue
		}
		point := influxdb2.NewPoint(measurement, tagged, fields, t)
		if err := s.writeAPI.WritePoint(ctx, point); err != nil {
			return fmt.Errorf("influxdb write to %s failed: %w", measurement, err)
		}
	}
	return nil
}

func tagFilters(tags map[string]string) string {
	keys := make([]string, 0, len(tags))
	for k := range tags {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var b strings.Builder
	for _, k := range keys {
		fmt.Fprintf(&b, "  |> filter(fn: (r) => r.%s == %q)\n", k, tags[k])
	}
	fmt.Fprintf(&b, "  |> filter(fn: (r) => r.%s == %q)\n",
		persistence.TagAPIVersion, persistence.APIVersion)
	return b.String()
}

// ReadLast implements persistence.SeriesStore.
func (s *Store) ReadLast(ctx context.Context, measurement, field string, tags map[string]string) (float64, time.Time, error) {
	query := fmt.Sprintf(`from(bucket: %q)
  |> range(start: %s, stop: %s)
  |> filter(fn: (r) => r._measurement == %q)
  |> filter(fn: (r) => r._field == %q)
%s  |> group()
  |> sort(columns: ["_time"])
  |> last()`,
		s.bucket, minRange, maxRange, measurement, field, tagFilters(tags))

	result, err := s.queryAPI.Query(ctx, query)
	if err != nil {
		return 0, time.Time{}, fmt.Errorf("influxdb query failed: %w", err)
	}
	defer result.Close()

	if !result.Next() {
		if result.Err() != nil {
			return 0, time.Time{}, fmt.Errorf("influxdb query failed: %w", result.Err())
		}
		return 0, time.Time{}, persistence.ErrNoData
	}
	record := result.Record()
	value, ok := record.Value().(float64)
	if !ok {
		return 0, time.Time{}, fmt.Errorf("field %q holds a non-numeric value", field)
	}
	return value, record.Time().UTC(), nil
}

// ReadRange implements persistence.SeriesStore.
func (s *Store) ReadRange(ctx context.Context, measurement, field string, tags map[string]string, from, to time.Time) ([]timeseries.Point, error) {
	start, stop := minRange, maxRange
	if !from.IsZero() {
		start = from.UTC().Format(time.RFC3339)
	}
	if !to.IsZero() {
		// One second for flux's exclusive stop.
		stop = to.UTC().Add(time.Second).Format(time.RFC3339)
	}

	query := fmt.Sprintf(`from(bucket: %q)
  |> range(start: %s, stop: %s)
  |> filter(fn: (r) => r._measurement == %q)
  |> filter(fn: (r) => r._field == %q)
%s  |> group()
  |> sort(columns: ["_time"])`,
		s.bucket, start, stop, measurement, field, tagFilters(tags))

	result, err := s.queryAPI.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("influxdb query failed: %w", err)
	}
	defer result.Close()

	var points []timeseries.Point
	for result.Next() {
		value, ok := result.Record().Value().(float64)
		if !ok {
			continue
		}
		points = append(points, timeseries.Point{
			Time:  result.Record().Time().UTC(),
			Value: value,
		})
	}
	if result.Err() != nil {
		return nil, fmt.Errorf("influxdb query failed: %w", result.Err())
	}
	return points, nil
}

// Runs implements persistence.SeriesStore.
func (s *Store) Runs(ctx context.Context, measurement string, tags map[string]string) ([]runid.RunID, error) {
	query := fmt.Sprintf(`from(bucket: %q)
  |> range(start: %s, stop: %s)
  |> filter(fn: (r) => r._measurement == %q)
%s  |> keep(columns: ["run"])
  |> group()
  |> distinct(column: "run")`,
		s.bucket, minRange, maxRange, measurement, tagFilters(tags))

	result, err := s.queryAPI.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("influxdb query failed: %w", err)
	}
	defer result.Close()

	distinct := make(map[runid.RunID]struct{})
	for result.Next() {
		raw, ok := result.Record().Value().(string)
		if !ok {
			continue
		}
		id, err := runid.Parse(raw)
		if err != nil {
			continue
		}
		distinct[id] = struct{}{}
	}
	if result.Err() != nil {
		return nil, fmt.Errorf("influxdb query failed: %w", result.Err())
	}

	ids := make([]runid.RunID, 0, len(distinct))
	for id := range distinct {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}
