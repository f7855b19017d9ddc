package component

import "fmt"

// Kind classifies component failures for the human-readable error string
// stored on the component.
type Kind string

const (
	// KindConnectivity marks an unreachable external source or store.
	KindConnectivity Kind = "ConnectivityError"

	// KindDataIntegrity marks malformed or missing expected fields in
	// fetched data.
	KindDataIntegrity Kind = "DataIntegrityError"

	// KindTraining marks a failed numeric fit or an invalid score.
	KindTraining Kind = "TrainingError"

	// KindConfiguration marks component parameters referencing missing
	// fields or cells.
	KindConfiguration Kind = "ConfigurationError"
)

// Error is a classified component failure. It is caught at the lifecycle
// boundary and converted into the component's error message; it never
// propagates past a single component's run.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

// NewError creates a classified component error wrapping an optional
// cause.
func NewError(kind Kind, err error, format string, v ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, v...), Err: err}
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}
