package component

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/smart-resource-management-trier/phorecast/internal/core"
	"github.com/smart-resource-management-trier/phorecast/internal/logger"
)

// Result is the outcome of one execution attempt. A Runner never returns
// an error: a failed attempt is a normal result, not a propagated fault.
type Result struct {
	ComponentID string
	Status      Status
	Error       string
	FinishedAt  time.Time
}

// Failed reports whether the attempt failed.
func (r Result) Failed() bool {
	return r.Status == StatusFailed
}

// Runner executes a component's three phases in order within a single
// failure-isolating boundary. Any error or panic raised in any phase is
// captured, converted into a human-readable message and recorded on the
// runner; it never aborts sibling components.
type Runner struct {
	spec     core.ComponentSpec
	category core.Category
	comp     Component

	mu            sync.Mutex
	status        Status
	errMsg        string
	lastExecution *time.Time
}

// NewRunner wraps a built component. The error message and
// last-execution timestamp are seeded from the configuration snapshot so
// status reads before the first attempt reflect the persisted state.
func NewRunner(spec core.ComponentSpec, category core.Category, comp Component) *Runner {
	return &Runner{
		spec:          spec,
		category:      category,
		comp:          comp,
		status:        StatusIdle,
		errMsg:        spec.Error,
		lastExecution: spec.LastExecution,
	}
}

// Spec returns the configuration snapshot the runner was built from.
func (r *Runner) Spec() core.ComponentSpec {
	return r.spec
}

// Category returns the scheduling category of the component.
func (r *Runner) Category() core.Category {
	return r.category
}

// Status returns the current status transfer object.
func (r *Runner) Status() core.ComponentStatus {
	r.mu.Lock()
	defer r.mu.Unlock()
	return core.ComponentStatus{
		ID:            r.spec.ID,
		Name:          r.spec.Name,
		Type:          r.spec.Type,
		Category:      r.category,
		Status:        r.status.String(),
		Error:         r.errMsg,
		LastExecution: r.lastExecution,
	}
}

// Run executes pre_execute, execute and post_execute in order.
// post_execute is attempted even when an earlier phase failed. On
// success the error is cleared and the last execution is set to the
// cycle's start time; on failure the error is replaced and the last
// execution stays untouched.
func (r *Runner) Run(ctx context.Context, cycleStart time.Time) Result {
	logger.Info(ctx, "Component execution started",
		"component", r.spec.Name, "type", r.spec.Type)

	r.setStatus(StatusPreExecuting)
	err := r.phase(ctx, "pre_execute", r.comp.PreExecute)

	if err == nil {
		r.setStatus(StatusExecuting)
		err = r.phase(ctx, "execute", r.comp.Execute)
	}

	// Best-effort teardown regardless of the earlier outcome.
	r.setStatus(StatusPostExecuting)
	if postErr := r.phase(ctx, "post_execute", r.comp.PostExecute); postErr != nil && err == nil {
		err = postErr
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if err != nil {
		r.status = StatusFailed
		r.errMsg = errorMessage(err)
		logger.Error(ctx, "Component execution failed",
			"component", r.spec.Name, "type", r.spec.Type, "err", err)
		return Result{
			ComponentID: r.spec.ID,
			Status:      StatusFailed,
			Error:       r.errMsg,
			FinishedAt:  time.Now(),
		}
	}

	r.status = StatusSucceeded
	r.errMsg = ""
	start := cycleStart
	r.lastExecution = &start
	logger.Info(ctx, "Component execution finished",
		"component", r.spec.Name, "type", r.spec.Type)
	return Result{
		ComponentID: r.spec.ID,
		Status:      StatusSucceeded,
		FinishedAt:  time.Now(),
	}
}

func (r *Runner) phase(ctx context.Context, name string, fn func(context.Context) error) (err error) {
	defer func() {
		if panicObj := recover(); panicObj != nil {
			stack := string(debug.Stack())
			err = fmt.Errorf("panic in %s: %v", name, panicObj)
			logger.Error(ctx, "Panic recovered in component phase",
				"component", r.spec.Name, "phase", name, "stack", stack)
		}
	}()
	if err := fn(ctx); err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	return nil
}

func (r *Runner) setStatus(s Status) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.status = s
}

// errorMessage converts a captured failure into the human-readable string
// stored on the component. Classified errors keep their kind prefix.
func errorMessage(err error) string {
	var cerr *Error
	if errors.As(err, &cerr) {
		return cerr.Error()
	}
	return err.Error()
}
