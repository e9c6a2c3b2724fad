package device

// EventKind identifies a hub event type. The names follow the hub's own
// event vocabulary as delivered on its event stream.
type EventKind string

// Hub event kinds interpreted by the coordinator.
const (
	// EventExecutionRegistered announces that the hub accepted an
	// execution. It carries the execution ID but not the device URL, which
	// is why dispatches record a local tracking entry first.
	EventExecutionRegistered EventKind = "ExecutionRegisteredEvent"

	// EventExecutionStateChanged reports execution progress by execution
	// ID only.
	EventExecutionStateChanged EventKind = "ExecutionStateChangedEvent"

	// EventDeviceStateChanged reports that a device's states changed on
	// the hub side.
	EventDeviceStateChanged EventKind = "DeviceStateChangedEvent"
)

// Execution progress states reported by the hub.
const (
	ExecutionStateInitialized = "INITIALIZED"
	ExecutionStateInProgress  = "IN_PROGRESS"
	ExecutionStateCompleted   = "COMPLETED"
	ExecutionStateFailed      = "FAILED"
)

// Event is a single entry from the hub's event stream.
//
// Fields are populated according to Kind: execution events carry ExecID,
// NewState and FailureType; device events carry DeviceURL and States.
type Event struct {
	Kind        EventKind `json:"name"`
	ExecID      string    `json:"exec_id,omitempty"`
	DeviceURL   string    `json:"device_url,omitempty"`
	NewState    string    `json:"new_state,omitempty"`
	FailureType string    `json:"failure_type,omitempty"`
	States      []State   `json:"device_states,omitempty"`
}

// IsTerminal reports whether an execution state ends the execution's
// lifecycle on the hub.
func IsTerminal(executionState string) bool {
	return executionState == ExecutionStateCompleted || executionState == ExecutionStateFailed
}
