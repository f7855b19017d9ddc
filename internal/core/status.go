package core

import "time"

// ComponentStatus is the transfer object exposed to external collaborators
// for display. Status reflects the current lifecycle state, Error the
// outcome of the most recent failed attempt.
type ComponentStatus struct {
	ID            string     `json:"id"`
	Name          string     `json:"name"`
	Type          string     `json:"type"`
	Category      Category   `json:"category"`
	Status        string     `json:"status"`
	Error         string     `json:"error,omitempty"`
	LastExecution *time.Time `json:"lastExecution,omitempty"`
}
