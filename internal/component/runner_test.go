package component

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smart-resource-management-trier/phorecast/internal/core"
)

// fakeComponent records phase invocations and fails on demand.
type fakeComponent struct {
	preErr  error
	execErr error
	postErr error
	panicIn string

	preCalled  bool
	execCalled bool
	postCalled bool
}

func (f *fakeComponent) PreExecute(_ context.Context) error {
	f.preCalled = true
	if f.panicIn == "pre" {
		panic("boom")
	}
	return f.preErr
}

func (f *fakeComponent) Execute(_ context.Context) error {
	f.execCalled = true
	if f.panicIn == "execute" {
		panic("boom")
	}
	return f.execErr
}

func (f *fakeComponent) PostExecute(_ context.Context) error {
	f.postCalled = true
	return f.postErr
}

func testSpec() core.ComponentSpec {
	return core.ComponentSpec{ID: "c1", Name: "test loader", Type: "dummy_target_loader"}
}

func TestRunnerSuccess(t *testing.T) {
	comp := &fakeComponent{}
	r := NewRunner(testSpec(), core.CategoryTargetLoader, comp)
	cycleStart := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	result := r.Run(context.Background(), cycleStart)

	require.Equal(t, StatusSucceeded, result.Status)
	assert.True(t, comp.preCalled)
	assert.True(t, comp.execCalled)
	assert.True(t, comp.postCalled)

	status := r.Status()
	assert.Equal(t, "ok", status.Status)
	assert.Empty(t, status.Error)
	require.NotNil(t, status.LastExecution)
	assert.Equal(t, cycleStart, *status.LastExecution)
}

func TestRunnerExecuteFailure(t *testing.T) {
	comp := &fakeComponent{execErr: errors.New("fetch failed")}
	prev := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	spec := testSpec()
	spec.LastExecution = &prev

	r := NewRunner(spec, core.CategoryTargetLoader, comp)
	result := r.Run(context.Background(), time.Now())

	require.True(t, result.Failed())
	assert.Contains(t, result.Error, "fetch failed")
	assert.True(t, comp.postCalled, "post_execute must run after an execute failure")

	status := r.Status()
	assert.Equal(t, "error", status.Status)
	assert.NotEmpty(t, status.Error)
	require.NotNil(t, status.LastExecution)
	assert.Equal(t, prev, *status.LastExecution, "last execution must stay untouched on failure")
}

func TestRunnerPreFailureSkipsExecute(t *testing.T) {
	comp := &fakeComponent{preErr: NewError(KindConnectivity, nil, "store unreachable")}
	r := NewRunner(testSpec(), core.CategoryTargetLoader, comp)

	result := r.Run(context.Background(), time.Now())

	require.True(t, result.Failed())
	assert.False(t, comp.execCalled, "execute must not run after a pre_execute failure")
	assert.True(t, comp.postCalled, "post_execute is best-effort cleanup")
	assert.Contains(t, result.Error, "ConnectivityError")
}

func TestRunnerPostFailureFailsAttempt(t *testing.T) {
	comp := &fakeComponent{postErr: errors.New("logout failed")}
	r := NewRunner(testSpec(), core.CategoryTargetLoader, comp)

	result := r.Run(context.Background(), time.Now())

	require.True(t, result.Failed())
	assert.Contains(t, result.Error, "logout failed")
	require.Nil(t, r.Status().LastExecution)
}

func TestRunnerRecoversPanic(t *testing.T) {
	comp := &fakeComponent{panicIn: "execute"}
	r := NewRunner(testSpec(), core.CategoryTargetLoader, comp)

	require.NotPanics(t, func() {
		result := r.Run(context.Background(), time.Now())
		require.True(t, result.Failed())
		assert.Contains(t, result.Error, "panic")
	})
	assert.True(t, comp.postCalled)
}

func TestRunnerErrorReplacedNotAppended(t *testing.T) {
	comp := &fakeComponent{execErr: errors.New("first failure")}
	r := NewRunner(testSpec(), core.CategoryTargetLoader, comp)
	_ = r.Run(context.Background(), time.Now())
	first := r.Status().Error

	comp.execErr = errors.New("second failure")
	_ = r.Run(context.Background(), time.Now())
	second := r.Status().Error

	assert.Contains(t, second, "second failure")
	assert.NotContains(t, second, "first failure")
	assert.NotEqual(t, first, second)
}

func TestRunnerErrorClearedOnSuccess(t *testing.T) {
	spec := testSpec()
	spec.Error = "ConnectivityError: previous failure"
	comp := &fakeComponent{}
	r := NewRunner(spec, core.CategoryTargetLoader, comp)
	require.Equal(t, "ConnectivityError: previous failure", r.Status().Error)

	_ = r.Run(context.Background(), time.Now())
	assert.Empty(t, r.Status().Error)
}

func TestRegistryUnknownType(t *testing.T) {
	_, _, err := Build(core.ComponentSpec{Type: "no_such_type"}, Deps{})
	require.Error(t, err)
	var cerr *Error
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, KindConfiguration, cerr.Kind)
}
