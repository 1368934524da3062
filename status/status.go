// Package status carries asynchronous health signals from the persistence
// and realtime layers to the interaction surface.
//
// Edits always appear to succeed instantly; only these background signals
// reflect persistence and sync health. They are reported over a channel,
// never as errors, because by the time a flush or reconnect resolves the
// caller has long moved on.
package status

import "time"

// Component identifies which background subsystem a status refers to.
type Component string

const (
	// ComponentPersistence is the debounced backend-write path.
	ComponentPersistence Component = "persistence"

	// ComponentRealtime is the pub/sub sync channel.
	ComponentRealtime Component = "realtime"
)

// Persistence states.
const (
	// StateSaved indicates every local mutation has reached the backend.
	StateSaved = "saved"

	// StateSaving indicates a flush is in progress or pending in the
	// debounce window.
	StateSaving = "saving"

	// StateUnsaved indicates a write failed after the retry budget was
	// exhausted. Local state is retained, not rolled back; this is the
	// "unsaved changes" indicator, not an error.
	StateUnsaved = "unsaved"
)

// Realtime states.
const (
	// StateConnected indicates the sync channel is live.
	StateConnected = "connected"

	// StateConnecting indicates a connection or reconnection attempt is
	// in flight.
	StateConnecting = "connecting"

	// StateDisconnected indicates the channel is down. Local editing
	// continues in single-player mode.
	StateDisconnected = "disconnected"
)

// Status is one report from a background subsystem.
type Status struct {
	// Component identifies the reporting subsystem.
	Component Component `json:"component"`

	// State is one of the state constants above.
	State string `json:"state"`

	// Message is a human-readable description of the state.
	Message string `json:"message,omitempty"`

	// Details carries additional diagnostic context, e.g. the failing
	// node id or the disconnect duration.
	Details map[string]any `json:"details,omitempty"`

	// Time is when the report was produced.
	Time time.Time `json:"time"`
}

// IsHealthy reports whether the status describes a fully working state.
func (s Status) IsHealthy() bool {
	return s.State == StateSaved || s.State == StateConnected
}

// NewSaved creates a persistence report for a completed flush.
func NewSaved(message string) Status {
	return Status{Component: ComponentPersistence, State: StateSaved, Message: message, Time: time.Now()}
}

// NewSaving creates a persistence report for an in-flight or pending flush.
func NewSaving(message string) Status {
	return Status{Component: ComponentPersistence, State: StateSaving, Message: message, Time: time.Now()}
}

// NewUnsaved creates a persistence report for a write that failed after
// the retry budget was exhausted.
func NewUnsaved(message string, details map[string]any) Status {
	return Status{Component: ComponentPersistence, State: StateUnsaved, Message: message, Details: details, Time: time.Now()}
}

// NewSync creates a realtime report in the given connection state.
func NewSync(state, message string, details map[string]any) Status {
	return Status{Component: ComponentRealtime, State: state, Message: message, Details: details, Time: time.Now()}
}
