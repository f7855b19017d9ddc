// Package memstore provides an in-memory SeriesStore used by tests and
// by deployments without an InfluxDB instance.
package memstore

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/smart-resource-management-trier/phorecast/internal/persistence"
	"github.com/smart-resource-management-trier/phorecast/internal/runid"
	"github.com/smart-resource-management-trier/phorecast/internal/timeseries"
)

var _ persistence.SeriesStore = (*Store)(nil)

type series struct {
	measurement string
	field       string
	tags        map[string]string
	points      map[int64]float64
}

// Store keeps all series in memory. Writes with identical keys overwrite;
// concurrent writers are serialized by a single lock, which is acceptable
// because disjoint key spaces never contend on data.
type Store struct {
	mu     sync.RWMutex
	series map[string]*series
}

// New creates an empty store.
func New() *Store {
	return &Store{series: make(map[string]*series)}
}

func seriesKey(measurement, field string, tags map[string]string) string {
	keys := make([]string, 0, len(tags))
	for k := range tags {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var b strings.Builder
	b.WriteString(measurement)
	b.WriteByte('|')
	b.WriteString(field)
	for _, k := range keys {
		b.WriteByte('|')
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(tags[k])
	}
	return b.String()
}

// Write implements persistence.SeriesStore.
func (s *Store) Write(_ context.Context, measurement string, tags map[string]string, frame *timeseries.Frame) error {
	if err := timeseries.Validate(frame); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, col := range frame.Columns() {
		key := seriesKey(measurement, col, tags)
		entry, ok := s.series[key]
		if !ok {
			copied := make(map[string]string, len(tags))
			for k, v := range tags {
				copied[k] = v
			}
			entry = &series{
				measurement: measurement,
				field:       col,
				tags:        copied,
				points:      make(map[int64]float64),
			}
			s.series[key] = entry
		}
		for _, p := range frame.Column(col) {
			entry.points[p.Time.Unix()] = p.Value
		}
	}
	return nil
}

// matches reports whether the series carries every filter tag with the
// filtered value.
func (e *series) matches(measurement, field string, tags map[string]string) bool {
	if e.measurement != measurement {
		return false
	}
	if field != "" && e.field != field {
		return false
	}
	for k, v := range tags {
		if e.tags[k] != v {
			return false
		}
	}
	return true
}

// ReadLast implements persistence.SeriesStore.
func (s *Store) ReadLast(_ context.Context, measurement, field string, tags map[string]string) (float64, time.Time, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var (
		found   bool
		lastKey int64
		lastVal float64
	)
	for _, entry := range s.series {
		if !entry.matches(measurement, field, tags) {
			continue
		}
		for ts, v := range entry.points {
			if !found || ts > lastKey {
				found = true
				lastKey = ts
				lastVal = v
			}
		}
	}
	if !found {
		return 0, time.Time{}, persistence.ErrNoData
	}
	return lastVal, time.Unix(lastKey, 0).UTC(), nil
}

// ReadRange implements persistence.SeriesStore.
func (s *Store) ReadRange(_ context.Context, measurement, field string, tags map[string]string, from, to time.Time) ([]timeseries.Point, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	merged := make(map[int64]float64)
	for _, entry := range s.series {
		if !entry.matches(measurement, field, tags) {
			continue
		}
		for ts, v := range entry.points {
			t := time.Unix(ts, 0).UTC()
			if !from.IsZero() && t.Before(from) {
				continue
			}
			if !to.IsZero() && t.After(to) {
				continue
			}
			merged[ts] = v
		}
	}

	keys := make([]int64, 0, len(merged))
	for ts := range merged {
		keys = append(keys, ts)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })

	points := make([]timeseries.Point, 0, len(keys))
	for _, ts := range keys {
		points = append(points, timeseries.Point{Time: time.Unix(ts, 0).UTC(), Value: merged[ts]})
	}
	return points, nil
}

// Runs implements persistence.SeriesStore.
func (s *Store) Runs(_ context.Context, measurement string, tags map[string]string) ([]runid.RunID, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	distinct := make(map[runid.RunID]struct{})
	for _, entry := range s.series {
		if !entry.matches(measurement, "", tags) {
			continue
		}
		raw, ok := entry.tags[persistence.TagRun]
		if !ok {
			continue
		}
		id, err := runid.Parse(raw)
		if err != nil {
			continue
		}
		distinct[id] = struct{}{}
	}

	ids := make([]runid.RunID, 0, len(distinct))
	for id := range distinct {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

// Ping implements persistence.SeriesStore.
func (s *Store) Ping(_ context.Context) error {
	return nil
}

// PointCount returns the total number of stored points, for tests.
func (s *Store) PointCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	count := 0
	for _, entry := range s.series {
		count += len(entry.points)
	}
	return count
}
