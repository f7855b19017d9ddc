// Package runid handles forecast run identifiers. A run id is the ZULU
// time of a weather model run in YYYYMMDDHH format, e.g. 2023071815.
package runid

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"time"
)

// RunID identifies one forecast run of a weather model.
type RunID int

const layout = "2006010215"

var filePattern = regexp.MustCompile(`[^/\\]*?_+(\d{10})_+[^/\\]*?\.[^/\\]+$`)

// FromTime returns the run id for the given time, truncated to the hour.
func FromTime(t time.Time) RunID {
	id, _ := strconv.Atoi(t.UTC().Format(layout))
	return RunID(id)
}

// Parse validates and converts a run id string.
func Parse(s string) (RunID, error) {
	if len(s) != 10 {
		return 0, fmt.Errorf("run id %q must be 10 characters long", s)
	}
	if _, err := time.Parse(layout, s); err != nil {
		return 0, fmt.Errorf("invalid run id %q: %w", s, err)
	}
	id, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("invalid run id %q: %w", s, err)
	}
	return RunID(id), nil
}

// FromFilename extracts the run id embedded in a forecast file name, e.g.
// MOSMIX_L_2023071815_10637.kmz.
func FromFilename(name string) (RunID, error) {
	matches := filePattern.FindAllStringSubmatch(name, -1)
	if len(matches) == 0 {
		return 0, fmt.Errorf("no run id found in %q", name)
	}
	if len(matches) > 1 {
		return 0, fmt.Errorf("more than one run id found in %q", name)
	}
	return Parse(matches[0][1])
}

// Time returns the start time of the run in UTC. Ids produced by
// FromTime or Parse always format back into a valid timestamp.
func (r RunID) Time() time.Time {
	t, _ := time.Parse(layout, r.String())
	return t
}

func (r RunID) String() string {
	return fmt.Sprintf("%010d", int(r))
}

// Diff returns the ids present in a but missing from b, sorted ascending.
func Diff(a, b []RunID) []RunID {
	have := make(map[RunID]struct{}, len(b))
	for _, id := range b {
		have[id] = struct{}{}
	}
	var missing []RunID
	for _, id := range a {
		if _, ok := have[id]; !ok {
			missing = append(missing, id)
		}
	}
	sort.Slice(missing, func(i, j int) bool { return missing[i] < missing[j] })
	return missing
}
