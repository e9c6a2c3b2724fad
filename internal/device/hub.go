package device

import "context"

// Command is a named hub command with positional arguments.
//
// A command is only meaningful for a device whose capability set contains
// its name; the hub validates this on submission.
type Command struct {
	Name       string `json:"name"`
	Parameters []any  `json:"parameters,omitempty"`
}

// NewCommand builds a Command from a name and positional arguments.
func NewCommand(name string, args ...any) Command {
	return Command{Name: name, Parameters: args}
}

// HubClient is the hub connectivity collaborator consumed by the
// coordinator and facades. The concrete implementation lives in
// internal/hub; tests substitute fakes.
//
// All operations are blocking and honour context cancellation. Transport
// details (reconnection, authentication) are the implementation's concern.
type HubClient interface {
	// ExecuteCommand submits a command for a device and returns the
	// hub-issued execution identifier that correlates later progress
	// events to this dispatch.
	ExecuteCommand(ctx context.Context, deviceURL string, cmd Command, originator string) (string, error)

	// CancelCommand cancels a previously dispatched execution. The hub
	// reports an error if the identifier is unknown or already completed.
	CancelCommand(ctx context.Context, execID string) error

	// FetchDevices retrieves a fresh snapshot of every device the hub
	// knows about.
	FetchDevices(ctx context.Context) ([]Snapshot, error)
}
