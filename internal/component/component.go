// Package component defines the three-phase execution capability shared
// by every loader and model, the lifecycle runner that provides failure
// isolation, and the type registry for the configurable variants.
package component

import "context"

// Component is the capability contract every configurable component
// implements. The engine never calls the phases directly; it goes through
// a Runner, which owns ordering, error capture and status bookkeeping.
type Component interface {
	// PreExecute performs connectivity and precondition checks, e.g.
	// confirming the store is reachable or authenticating to an
	// external source.
	PreExecute(ctx context.Context) error

	// Execute performs the component-specific work: fetch, transform,
	// align and persist for loaders; train-then-predict for models.
	Execute(ctx context.Context) error

	// PostExecute performs teardown such as closing connections. It is
	// attempted even when an earlier phase failed.
	PostExecute(ctx context.Context) error
}

// Status is the lifecycle state of a component within one execution
// attempt. Succeeded and Failed are terminal for the attempt; the
// component returns to Idle before the next cycle.
type Status int

const (
	StatusIdle Status = iota
	StatusPreExecuting
	StatusExecuting
	StatusPostExecuting
	StatusSucceeded
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusPreExecuting, StatusExecuting, StatusPostExecuting:
		return "running"
	case StatusSucceeded:
		return "ok"
	case StatusFailed:
		return "error"
	default:
		return "idle"
	}
}
