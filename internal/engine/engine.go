// Package engine drives the forecast cycle: snapshot the configured
// components, run the loader categories to completion, then run the
// models, persisting every attempt's outcome. A failing component is a
// recorded result, never a reason to abort its siblings.
package engine

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/smart-resource-management-trier/phorecast/internal/component"
	"github.com/smart-resource-management-trier/phorecast/internal/core"
	"github.com/smart-resource-management-trier/phorecast/internal/logger"
	"github.com/smart-resource-management-trier/phorecast/internal/metrics"
	"github.com/smart-resource-management-trier/phorecast/internal/persistence"
)

// ErrCycleRunning is returned when a cycle is requested while another
// one is still in flight.
var ErrCycleRunning = errors.New("a forecast cycle is already running")

// Config tunes the engine.
type Config struct {
	// Interval between automatic cycles. Ignored when Schedule is set.
	Interval time.Duration

	// Schedule is an optional cron expression taking precedence over
	// Interval.
	Schedule string

	// MaxActiveRuns bounds concurrent component executions per category.
	// Zero disables the bound.
	MaxActiveRuns int
}

// Engine owns the cycle lifecycle and the live status view.
type Engine struct {
	cfg     Config
	sched   cron.Schedule
	series  persistence.SeriesStore
	meta    persistence.MetadataStore
	arts    persistence.ArtifactStore
	metrics *metrics.Metrics

	cycleRunning atomic.Bool
	stopChan     chan struct{}
	running      atomic.Bool

	mu      sync.RWMutex
	runners map[string]*component.Runner

	// unbuildable holds the status of components whose construction
	// failed in the most recent cycle, so they stay visible.
	unbuildable map[string]core.ComponentStatus
}

// New creates an engine over the given stores.
func New(cfg Config, series persistence.SeriesStore, meta persistence.MetadataStore,
	arts persistence.ArtifactStore, m *metrics.Metrics) (*Engine, error) {
	if cfg.Interval <= 0 {
		cfg.Interval = time.Hour
	}

	var sched cron.Schedule
	if cfg.Schedule != "" {
		var err error
		sched, err = cron.ParseStandard(cfg.Schedule)
		if err != nil {
			return nil, fmt.Errorf("invalid cycle schedule %q: %w", cfg.Schedule, err)
		}
	}

	return &Engine{
		cfg:      cfg,
		sched:    sched,
		series:   series,
		meta:     meta,
		arts:     arts,
		metrics:  m,
		stopChan: make(chan struct{}),
		runners:  make(map[string]*component.Runner),
	}, nil
}

// RunCycle executes one full forecast cycle. It returns ErrCycleRunning
// when called re-entrantly and a fatal error when the component snapshot
// cannot be read; individual component failures are recorded, not
// returned.
func (e *Engine) RunCycle(ctx context.Context) error {
	if !e.cycleRunning.CompareAndSwap(false, true) {
		return ErrCycleRunning
	}
	defer e.cycleRunning.Store(false)

	cycleStart := now()
	if e.metrics != nil {
		e.metrics.CyclesStarted.Inc()
	}
	logger.Info(ctx, "Forecast cycle started", "cycleStart", cycleStart)

	specs, err := e.meta.Snapshot(ctx)
	if err != nil {
		return fmt.Errorf("component snapshot failed, no component attempted: %w", err)
	}

	lookup := make(map[string]core.ComponentSpec, len(specs))
	for _, spec := range specs {
		lookup[spec.ID] = spec
	}
	deps := component.Deps{
		Series:    e.series,
		Meta:      e.meta,
		Artifacts: e.arts,
		Lookup: func(id string) (core.ComponentSpec, bool) {
			spec, ok := lookup[id]
			return spec, ok
		},
	}

	var loaders, models []*component.Runner
	fresh := make(map[string]*component.Runner, len(specs))
	unbuildable := make(map[string]core.ComponentStatus)
	for _, spec := range specs {
		comp, category, err := component.Build(spec, deps)
		if err != nil {
			// A component that cannot even be built gets the failure
			// recorded like any other attempt and stays visible in the
			// status view.
			e.recordAttempt(ctx, spec.ID, category, component.Result{
				ComponentID: spec.ID,
				Status:      component.StatusFailed,
				Error:       err.Error(),
			}, cycleStart)
			unbuildable[spec.ID] = core.ComponentStatus{
				ID:            spec.ID,
				Name:          spec.Name,
				Type:          spec.Type,
				Category:      category,
				Status:        component.StatusFailed.String(),
				Error:         err.Error(),
				LastExecution: spec.LastExecution,
			}
			continue
		}
		runner := component.NewRunner(spec, category, comp)
		fresh[spec.ID] = runner
		if category.IsLoader() {
			loaders = append(loaders, runner)
		} else {
			models = append(models, runner)
		}
	}

	e.mu.Lock()
	e.runners = fresh
	e.unbuildable = unbuildable
	e.mu.Unlock()

	// Loaders form one barrier: no model starts before every loader
	// attempt, failed or not, has finished.
	e.runCategory(ctx, loaders, cycleStart)
	e.runCategory(ctx, models, cycleStart)

	if e.metrics != nil {
		e.metrics.CyclesCompleted.Inc()
		e.metrics.LastCycleSeconds.Set(time.Since(cycleStart).Seconds())
	}
	logger.Info(ctx, "Forecast cycle finished", "elapsed", time.Since(cycleStart))
	return nil
}

// runCategory executes the runners with bounded concurrency and waits
// for all of them.
func (e *Engine) runCategory(ctx context.Context, runners []*component.Runner, cycleStart time.Time) {
	var sem chan struct{}
	if e.cfg.MaxActiveRuns > 0 {
		sem = make(chan struct{}, e.cfg.MaxActiveRuns)
	}

	var wg sync.WaitGroup
	for _, runner := range runners {
		wg.Add(1)
		go func(runner *component.Runner) {
			defer wg.Done()
			if sem != nil {
				sem <- struct{}{}
				defer func() { <-sem }()
			}
			result := runner.Run(ctx, cycleStart)
			e.recordAttempt(ctx, runner.Spec().ID, runner.Category(), result, cycleStart)
		}(runner)
	}
	wg.Wait()
}

// recordAttempt persists one attempt outcome and counts it. Successful
// attempts stamp the cycle start as their last execution.
func (e *Engine) recordAttempt(ctx context.Context, componentID string, category core.Category, result component.Result, cycleStart time.Time) {
	lastExec := time.Time{}
	if !result.Failed() {
		lastExec = cycleStart
	}
	if err := e.meta.UpdateStatus(ctx, componentID, result.Error, lastExec); err != nil {
		logger.Error(ctx, "Failed to persist component status",
			"component", componentID, "err", err)
	}
	if e.metrics != nil {
		outcome := "success"
		if result.Failed() {
			outcome = "failure"
		}
		label := string(category)
		if label == "" {
			label = "unknown"
		}
		e.metrics.ComponentAttempts.WithLabelValues(label, outcome).Inc()
	}
}

// Trigger starts one cycle in the background. Returns ErrCycleRunning
// if one is already in flight.
func (e *Engine) Trigger(ctx context.Context) error {
	if e.cycleRunning.Load() {
		return ErrCycleRunning
	}
	go func() {
		if err := e.RunCycle(context.WithoutCancel(ctx)); err != nil &&
			!errors.Is(err, ErrCycleRunning) {
			logger.Error(ctx, "Triggered cycle failed", "err", err)
		}
	}()
	return nil
}

// Busy reports whether a cycle is currently in flight.
func (e *Engine) Busy() bool {
	return e.cycleRunning.Load()
}

// Statuses returns the live status of every component of the most recent
// cycle, sorted by id. Before the first cycle the persisted snapshot is
// served instead.
func (e *Engine) Statuses(ctx context.Context) ([]core.ComponentStatus, error) {
	e.mu.RLock()
	runners := make([]*component.Runner, 0, len(e.runners))
	for _, r := range e.runners {
		runners = append(runners, r)
	}
	unbuildable := make([]core.ComponentStatus, 0, len(e.unbuildable))
	for _, status := range e.unbuildable {
		unbuildable = append(unbuildable, status)
	}
	e.mu.RUnlock()

	if len(runners) == 0 && len(unbuildable) == 0 {
		specs, err := e.meta.Snapshot(ctx)
		if err != nil {
			return nil, err
		}
		statuses := make([]core.ComponentStatus, 0, len(specs))
		for _, spec := range specs {
			statuses = append(statuses, core.ComponentStatus{
				ID:            spec.ID,
				Name:          spec.Name,
				Type:          spec.Type,
				Status:        "idle",
				Error:         spec.Error,
				LastExecution: spec.LastExecution,
			})
		}
		sort.Slice(statuses, func(i, j int) bool { return statuses[i].ID < statuses[j].ID })
		return statuses, nil
	}

	statuses := make([]core.ComponentStatus, 0, len(runners)+len(unbuildable))
	for _, runner := range runners {
		statuses = append(statuses, runner.Status())
	}
	statuses = append(statuses, unbuildable...)
	sort.Slice(statuses, func(i, j int) bool { return statuses[i].ID < statuses[j].ID })
	return statuses, nil
}

// nextDelay returns how long to sleep before the next cycle.
func (e *Engine) nextDelay(from time.Time) time.Duration {
	if e.sched != nil {
		return e.sched.Next(from).Sub(from)
	}
	return e.cfg.Interval
}

// Start runs cycles until Stop is called or the context is canceled.
// In interval mode the first cycle fires immediately; a cron schedule
// waits for its first slot.
func (e *Engine) Start(ctx context.Context) {
	initial := time.Duration(0)
	if e.sched != nil {
		initial = e.nextDelay(now())
	}
	timer := time.NewTimer(initial)
	e.running.Store(true)
	logger.Info(ctx, "Engine started",
		"interval", e.cfg.Interval, "schedule", e.cfg.Schedule)

	for {
		select {
		case <-timer.C:
			if err := e.RunCycle(ctx); err != nil && !errors.Is(err, ErrCycleRunning) {
				logger.Error(ctx, "Forecast cycle failed", "err", err)
			}
			_ = timer.Stop()
			timer.Reset(e.nextDelay(now()))

		case <-ctx.Done():
			_ = timer.Stop()
			e.running.Store(false)
			return

		case <-e.stopChan:
			if !timer.Stop() {
				<-timer.C
			}
			return
		}
	}
}

// Stop terminates the Start loop. A cycle in flight finishes normally.
// Repeated or concurrent calls are no-ops.
func (e *Engine) Stop(ctx context.Context) {
	if !e.running.CompareAndSwap(true, false) {
		return
	}
	close(e.stopChan)
	logger.Info(ctx, "Engine stopped")
}

var (
	// fixedTime is the fixed time used for testing.
	fixedTime     time.Time
	fixedTimeLock sync.RWMutex
)

// setFixedTime sets the fixed time for testing.
func setFixedTime(t time.Time) {
	fixedTimeLock.Lock()
	defer fixedTimeLock.Unlock()
	fixedTime = t
}

// now returns the current time.
func now() time.Time {
	fixedTimeLock.RLock()
	defer fixedTimeLock.RUnlock()
	if fixedTime.IsZero() {
		return time.Now().UTC()
	}
	return fixedTime
}
