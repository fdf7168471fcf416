// Package supervisor restarts a failed subsystem with exponential backoff.
package supervisor

// State represents the current state of the supervised subsystem.
type State int

const (
	// StateCreated is the initial state before the subsystem has started.
	StateCreated State = iota

	// StateStarting indicates the subsystem is being built and started.
	StateStarting

	// StateRunning indicates the subsystem is active.
	StateRunning

	// StateBackoff indicates a restart is pending after a failure.
	StateBackoff

	// StateStopped indicates the subsystem has been permanently stopped.
	StateStopped
)

// String returns a human-readable name for the state.
func (s State) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateStarting:
		return "starting"
	case StateRunning:
		return "running"
	case StateBackoff:
		return "backoff"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// IsActive returns true if the state represents a live subsystem
// (running or in the process of starting/restarting).
func (s State) IsActive() bool {
	return s == StateStarting || s == StateRunning || s == StateBackoff
}

// IsTerminal returns true if the state is a terminal state (stopped).
func (s State) IsTerminal() bool {
	return s == StateStopped
}
