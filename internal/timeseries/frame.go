// Package timeseries provides the in-memory table used to move hourly
// measurement data between loaders, models and the series store, plus the
// validation rules every frame must satisfy before a store write.
package timeseries

import (
	"sort"
	"time"
)

// Point is one timestamped scalar value.
type Point struct {
	Time  time.Time
	Value float64
}

// Frame is a table of scalar columns sharing one hourly timestamp index.
// Rows are addressed by timestamp; column order is preserved.
type Frame struct {
	cols []string
	rows map[int64]map[string]float64
}

// NewFrame creates an empty frame with the given column order.
func NewFrame(cols ...string) *Frame {
	f := &Frame{rows: make(map[int64]map[string]float64)}
	for _, c := range cols {
		f.addColumn(c)
	}
	return f
}

// FromPoints creates a single-column frame from a point series.
func FromPoints(col string, points []Point) *Frame {
	f := NewFrame(col)
	for _, p := range points {
		f.Set(p.Time, col, p.Value)
	}
	return f
}

func (f *Frame) addColumn(col string) {
	for _, c := range f.cols {
		if c == col {
			return
		}
	}
	f.cols = append(f.cols, col)
}

// Set stores a value for the given timestamp and column, creating the
// column if needed. A repeated Set for the same key overwrites.
func (f *Frame) Set(t time.Time, col string, v float64) {
	f.addColumn(col)
	key := t.UTC().Unix()
	row, ok := f.rows[key]
	if !ok {
		row = make(map[string]float64, len(f.cols))
		f.rows[key] = row
	}
	row[col] = v
}

// Value returns the stored value for the timestamp and column.
func (f *Frame) Value(t time.Time, col string) (float64, bool) {
	row, ok := f.rows[t.UTC().Unix()]
	if !ok {
		return 0, false
	}
	v, ok := row[col]
	return v, ok
}

// Columns returns the column names in insertion order.
func (f *Frame) Columns() []string {
	out := make([]string, len(f.cols))
	copy(out, f.cols)
	return out
}

// Len returns the number of rows.
func (f *Frame) Len() int {
	return len(f.rows)
}

// Times returns all row timestamps sorted ascending.
func (f *Frame) Times() []time.Time {
	keys := make([]int64, 0, len(f.rows))
	for k := range f.rows {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	times := make([]time.Time, len(keys))
	for i, k := range keys {
		times[i] = time.Unix(k, 0).UTC()
	}
	return times
}

// Column returns one column as a sorted point series. Rows without a
// value for the column are skipped.
func (f *Frame) Column(col string) []Point {
	var points []Point
	for _, t := range f.Times() {
		if v, ok := f.Value(t, col); ok {
			points = append(points, Point{Time: t, Value: v})
		}
	}
	return points
}

// InnerJoin joins two frames on their timestamp index. Only timestamps
// present in both frames with complete rows on both sides survive; rows
// with a missing counterpart on either side are excluded.
func InnerJoin(a, b *Frame) *Frame {
	joined := NewFrame()
	for _, c := range a.cols {
		joined.addColumn(c)
	}
	for _, c := range b.cols {
		joined.addColumn(c)
	}

	for key, rowA := range a.rows {
		rowB, ok := b.rows[key]
		if !ok || len(rowA) != len(a.cols) || len(rowB) != len(b.cols) {
			continue
		}
		t := time.Unix(key, 0).UTC()
		for c, v := range rowA {
			joined.Set(t, c, v)
		}
		for c, v := range rowB {
			joined.Set(t, c, v)
		}
	}
	return joined
}

// Matrix extracts the given columns into a dense row-major matrix,
// keeping only rows that carry a value for every requested column. The
// row timestamps are returned alongside, sorted ascending.
func (f *Frame) Matrix(cols []string) ([]time.Time, []float64) {
	var times []time.Time
	var data []float64
rows:
	for _, t := range f.Times() {
		row := make([]float64, len(cols))
		for i, c := range cols {
			v, ok := f.Value(t, c)
			if !ok {
				continue rows
			}
			row[i] = v
		}
		times = append(times, t)
		data = append(data, row...)
	}
	return times, data
}
