package core

import (
	"sort"
	"time"
)

// ModelRun is one immutable record of a completed training attempt.
// Score is a loss metric, lower is better. ArtifactPath is an opaque
// handle to the trained-model artifacts on durable storage.
type ModelRun struct {
	ID           string    `json:"id"`
	Score        float64   `json:"score"`
	StartedAt    time.Time `json:"startedAt"`
	ArtifactPath string    `json:"artifactPath"`
}

// BestRun selects the run with the numerically lowest score. If bestOf is
// positive, only the most recent bestOf runs by creation time are
// considered. Ties are broken by the earliest-created run. Returns nil if
// no runs exist. The selection is a pure function of the run records.
func BestRun(runs []ModelRun, bestOf int) *ModelRun {
	if len(runs) == 0 {
		return nil
	}

	candidates := make([]ModelRun, len(runs))
	copy(candidates, runs)
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].StartedAt.After(candidates[j].StartedAt)
	})
	if bestOf > 0 && bestOf < len(candidates) {
		candidates = candidates[:bestOf]
	}

	best := candidates[0]
	for _, run := range candidates[1:] {
		if run.Score < best.Score {
			best = run
			continue
		}
		if run.Score == best.Score && run.StartedAt.Before(best.StartedAt) {
			best = run
		}
	}
	return &best
}

// LastRun returns the most recently created run, or nil if none exist.
func LastRun(runs []ModelRun) *ModelRun {
	if len(runs) == 0 {
		return nil
	}
	last := runs[0]
	for _, run := range runs[1:] {
		if run.StartedAt.After(last.StartedAt) {
			last = run
		}
	}
	return &last
}
