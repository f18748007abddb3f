package plugin

// State represents the lifecycle state of a plugin instance.
type State int

const (
	StateConstructed State = iota // Factory returned, Start not yet called
	StateStarted                  // Start() succeeded, running
	StateStopped                  // Stop() called
	StateFailed                   // Start() returned an error
	StateDestroyed                // Destroy() released the instance
	StateStarting                 // Start() in progress
	StateStopping                 // Stop() in progress
)

// String returns a human-readable state name.
func (s State) String() string {
	switch s {
	case StateConstructed:
		return "constructed"
	case StateStarted:
		return "started"
	case StateStopped:
		return "stopped"
	case StateFailed:
		return "failed"
	case StateDestroyed:
		return "destroyed"
	case StateStarting:
		return "starting"
	case StateStopping:
		return "stopping"
	default:
		return "unknown"
	}
}

// IsTerminal returns true if the state cannot transition further in normal flow.
func (s State) IsTerminal() bool {
	return s == StateDestroyed
}

// CanDestroy reports whether an instance in this state may be released.
// Running instances and those between transitions are refused.
func (s State) CanDestroy() bool {
	switch s {
	case StateStarted, StateStarting, StateStopping:
		return false
	}
	return true
}
