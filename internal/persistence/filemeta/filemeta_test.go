package filemeta

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smart-resource-management-trier/phorecast/internal/core"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := New(filepath.Join(t.TempDir(), "components.json"))
	require.NoError(t, err)
	return store
}

func TestSnapshotEmpty(t *testing.T) {
	store := newTestStore(t)
	components, err := store.Snapshot(context.Background())
	require.NoError(t, err)
	assert.Empty(t, components)
}

func TestSaveAndSnapshot(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	specs := []core.ComponentSpec{
		{ID: "l1", Name: "roof pv", Type: "dummy_target_loader",
			Fields: []core.Field{{InfluxField: "power"}}},
		{ID: "m1", Name: "baseline", Type: "ridge_model", FieldRef: "power", LoaderRef: "w1"},
	}
	require.NoError(t, store.Save(ctx, specs))

	got, err := store.Snapshot(ctx)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "roof pv", got[0].Name)
	assert.Equal(t, "power", got[1].FieldRef)
}

func TestUpdateStatus(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, store.Save(ctx, []core.ComponentSpec{{ID: "l1", Type: "dummy_target_loader"}}))

	ts := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, store.UpdateStatus(ctx, "l1", "", ts))

	got, err := store.Snapshot(ctx)
	require.NoError(t, err)
	require.NotNil(t, got[0].LastExecution)
	assert.True(t, got[0].LastExecution.Equal(ts))
	assert.Empty(t, got[0].Error)

	// A failed attempt replaces the error and keeps the timestamp.
	require.NoError(t, store.UpdateStatus(ctx, "l1", "ConnectivityError: unreachable", time.Time{}))
	got, err = store.Snapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, "ConnectivityError: unreachable", got[0].Error)
	require.NotNil(t, got[0].LastExecution)
	assert.True(t, got[0].LastExecution.Equal(ts))
}

func TestUpdateStatusUnknownComponent(t *testing.T) {
	store := newTestStore(t)
	err := store.UpdateStatus(context.Background(), "nope", "", time.Now())
	require.Error(t, err)
}

func TestAppendRun(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, store.Save(ctx, []core.ComponentSpec{{ID: "m1", Type: "ridge_model"}}))

	run := core.ModelRun{ID: "r1", Score: 0.42, StartedAt: time.Now().UTC(), ArtifactPath: "/tmp/x"}
	require.NoError(t, store.AppendRun(ctx, "m1", run))
	require.NoError(t, store.AppendRun(ctx, "m1", core.ModelRun{ID: "r2", Score: 0.1, StartedAt: time.Now().UTC()}))

	got, err := store.Snapshot(ctx)
	require.NoError(t, err)
	require.Len(t, got[0].Runs, 2)
	assert.Equal(t, "r1", got[0].Runs[0].ID)
}
