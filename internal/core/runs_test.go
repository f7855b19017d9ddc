package core

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runFixture() []ModelRun {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	return []ModelRun{
		{ID: "r1", Score: 0.5, StartedAt: base},
		{ID: "r2", Score: 0.2, StartedAt: base.Add(time.Hour)},
		{ID: "r3", Score: 0.9, StartedAt: base.Add(2 * time.Hour)},
	}
}

func TestBestRunAll(t *testing.T) {
	best := BestRun(runFixture(), 0)
	require.NotNil(t, best)
	assert.Equal(t, "r2", best.ID)
	assert.Equal(t, 0.2, best.Score)
}

func TestBestRunBestOf(t *testing.T) {
	// Last two runs by creation order are r2 and r3; r2 wins.
	best := BestRun(runFixture(), 2)
	require.NotNil(t, best)
	assert.Equal(t, "r2", best.ID)

	// Only the newest run is considered.
	best = BestRun(runFixture(), 1)
	require.NotNil(t, best)
	assert.Equal(t, "r3", best.ID)

	// bestOf larger than the collection falls back to all runs.
	best = BestRun(runFixture(), 10)
	require.NotNil(t, best)
	assert.Equal(t, "r2", best.ID)
}

func TestBestRunEmpty(t *testing.T) {
	require.Nil(t, BestRun(nil, 0))
	require.Nil(t, BestRun([]ModelRun{}, 3))
}

func TestBestRunTieBreak(t *testing.T) {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	runs := []ModelRun{
		{ID: "late", Score: 0.3, StartedAt: base.Add(time.Hour)},
		{ID: "early", Score: 0.3, StartedAt: base},
	}
	best := BestRun(runs, 0)
	require.NotNil(t, best)
	assert.Equal(t, "early", best.ID)
}

func TestBestRunIsPure(t *testing.T) {
	runs := runFixture()
	_ = BestRun(runs, 2)
	assert.Equal(t, runFixture(), runs, "selection must not reorder or mutate the run records")
}

func TestLastRun(t *testing.T) {
	last := LastRun(runFixture())
	require.NotNil(t, last)
	assert.Equal(t, "r3", last.ID)
	require.Nil(t, LastRun(nil))
}
