package device

import (
	"context"
	"fmt"
	"strings"
)

// EntityResolver looks up the original display name registered for a
// stable entity identifier. The sqlite-backed EntityRegistry satisfies
// this; it is injected explicitly to keep facades testable.
type EntityResolver interface {
	FindByStableID(id string) (string, bool)
}

// GroupingInfo is the device-registry tuple derived for a facade: the
// physical-device grouping key plus presentation metadata.
type GroupingInfo struct {
	// Identifier is the grouping key: the device URL up to the first '#'.
	// All sub-devices of one physical housing share it.
	Identifier   string `json:"identifier"`
	Name         string `json:"name,omitempty"`
	Manufacturer string `json:"manufacturer"`
	Model        string `json:"model"`
	SWVersion    string `json:"sw_version"`
}

// Facade is the per-device object exposed to the presentation layer.
//
// A facade is bound to exactly one device URL and one coordinator. It
// copies nothing: every accessor re-reads the latest snapshot from the
// coordinator, so results always reflect the most recent refresh. Facades
// are cheap to construct and safe to discard.
type Facade struct {
	deviceURL string
	coord     *Coordinator
	entities  EntityResolver
	logger    Logger
}

// NewFacade binds a facade to a device URL. The resolver may be nil when
// no entity registry is available; sub-device name resolution then always
// degrades to an empty name.
func NewFacade(deviceURL string, coord *Coordinator, entities EntityResolver) *Facade {
	return &Facade{
		deviceURL: deviceURL,
		coord:     coord,
		entities:  entities,
		logger:    noopLogger{},
	}
}

// SetLogger sets the logger for the facade.
func (f *Facade) SetLogger(logger Logger) {
	f.logger = logger
}

// UniqueID returns the device URL, the stable unique identifier for this
// facade.
func (f *Facade) UniqueID() string {
	return f.deviceURL
}

// CurrentSnapshot returns the snapshot currently stored for this device.
// Returns ErrDeviceNotFound once the hub has deregistered the device;
// callers treat that as "entity unavailable", not a failure.
func (f *Facade) CurrentSnapshot() (*Snapshot, error) {
	return f.coord.Snapshot(f.deviceURL)
}

// DisplayName returns the snapshot's label, or "" when the device is gone.
func (f *Facade) DisplayName() string {
	snap, err := f.CurrentSnapshot()
	if err != nil {
		return ""
	}
	return snap.Label
}

// IsAvailable returns the snapshot's availability flag.
func (f *Facade) IsAvailable() bool {
	snap, err := f.CurrentSnapshot()
	if err != nil {
		return false
	}
	return snap.Available
}

// HasAssumedState reports whether the device has no directly observable
// state: true iff the state list is empty or absent.
func (f *Facade) HasAssumedState() bool {
	snap, err := f.CurrentSnapshot()
	if err != nil {
		return true
	}
	return len(snap.States) == 0
}

// SelectCommand returns the first candidate present in the device's
// capability set. Candidate order is the caller's preference order:
// different firmware and widget versions expose different command names
// for the same logical action, so callers list aliases best-first.
func (f *Facade) SelectCommand(candidates ...string) (string, bool) {
	snap, err := f.CurrentSnapshot()
	if err != nil {
		return "", false
	}
	for _, name := range candidates {
		if snap.SupportsCommand(name) {
			return name, true
		}
	}
	return "", false
}

// HasCommand reports whether any candidate command is supported.
func (f *Facade) HasCommand(candidates ...string) bool {
	_, ok := f.SelectCommand(candidates...)
	return ok
}

// SelectState returns the value of the first state in the device's state
// list whose name is among the candidates. The state list is scanned in
// its stored order: if the list holds state B before state A and both are
// candidates, B wins. Returns false if no candidate is present or the
// device has no states.
func (f *Facade) SelectState(candidates ...string) (any, bool) {
	snap, err := f.CurrentSnapshot()
	if err != nil {
		return nil, false
	}
	for _, st := range snap.States {
		for _, name := range candidates {
			if st.Name == name {
				return st.Value, true
			}
		}
	}
	return nil, false
}

// HasState reports whether any candidate state is present.
func (f *Facade) HasState(candidates ...string) bool {
	_, ok := f.SelectState(candidates...)
	return ok
}

// Attributes builds the display/diagnostic attribute map for this device.
//
// Merge order: ui class, widget and controllable name first, then the RSSI
// level if reported, then every static attribute, then every state whose
// name contains "State". Name collisions resolve last-write-wins in that
// order.
func (f *Facade) Attributes() map[string]any {
	attrs := map[string]any{}
	snap, err := f.CurrentSnapshot()
	if err != nil {
		return attrs
	}

	attrs["ui_class"] = snap.UIClass
	attrs["widget"] = snap.Widget
	attrs["controllable_name"] = snap.ControllableName

	if rssi, ok := f.SelectState(StateRSSILevel); ok {
		attrs[AttrRSSILevel] = rssi
	}

	for _, a := range snap.Attributes {
		attrs[a.Name] = a.Value
	}

	for _, st := range snap.States {
		if strings.Contains(st.Name, "State") {
			attrs[st.Name] = st.Value
		}
	}

	return attrs
}

// GroupingInfo derives the device-registry tuple for this facade.
//
// Manufacturer falls back to DefaultManufacturer and model to the widget
// type when the corresponding states are absent. For a sub-device the
// grouping name comes from the entity registered under "<base>#1", the
// canonical sub-device of the housing; a missing registration yields an
// empty name, which is degraded but not an error.
func (f *Facade) GroupingInfo() GroupingInfo {
	info := GroupingInfo{Identifier: BaseDeviceURL(f.deviceURL)}

	snap, err := f.CurrentSnapshot()
	if err != nil {
		return info
	}

	info.Manufacturer = DefaultManufacturer
	if m, ok := f.SelectState(StateManufacturerName); ok {
		if s, isStr := m.(string); isStr && s != "" {
			info.Manufacturer = s
		}
	}

	info.Model = snap.Widget
	if m, ok := f.SelectState(StateModel); ok {
		if s, isStr := m.(string); isStr && s != "" {
			info.Model = s
		}
	}

	info.SWVersion = snap.ControllableName

	if !snap.IsSubDevice() {
		info.Name = snap.Label
		return info
	}

	if f.entities == nil {
		return info
	}
	name, ok := f.entities.FindByStableID(CanonicalSubDeviceURL(f.deviceURL))
	if !ok {
		f.logger.Debug("no canonical entity for sub-device group",
			"device_url", f.deviceURL,
		)
		return info
	}
	info.Name = name
	return info
}

// ExecuteCommand dispatches a command to the hub and returns the hub-issued
// execution identifier.
//
// On acceptance the tracking entry is recorded under the identifier before
// the forced refresh runs, so event correlation can never observe the
// identifier without the entry. The refresh is awaited: when the returned
// error is nil, subsequent accessor calls reflect the post-dispatch hub
// state (best effort; the hub may not have applied the command yet).
//
// A hub rejection or transport failure returns an error wrapping
// ErrDispatchFailed. Commands are optimistic: callers may log and ignore
// it, since the next refresh surfaces the unchanged state anyway.
func (f *Facade) ExecuteCommand(ctx context.Context, name string, args ...any) (string, error) {
	execID, err := f.coord.hub.ExecuteCommand(ctx, f.deviceURL, NewCommand(name, args...), f.coord.originator)
	if err != nil {
		f.coord.metrics.RecordDispatch(f.deviceURL, name, false)
		f.logger.Error("command dispatch failed",
			"device_url", f.deviceURL,
			"command", name,
			"error", err,
		)
		return "", fmt.Errorf("%w: %q on %s: %w", ErrDispatchFailed, name, f.deviceURL, err)
	}

	// The hub's ExecutionRegisteredEvent does not carry the device URL, so
	// the mapping must be recorded here before anything can observe events
	// for this identifier.
	f.coord.RegisterExecution(execID, Execution{
		DeviceURL: f.deviceURL,
		Command:   name,
	})
	f.coord.metrics.RecordDispatch(f.deviceURL, name, true)

	if err := f.coord.ForceRefresh(ctx); err != nil {
		f.logger.Warn("refresh after dispatch failed",
			"device_url", f.deviceURL,
			"exec_id", execID,
			"error", err,
		)
		return execID, fmt.Errorf("refreshing after dispatch of %q: %w", name, err)
	}
	return execID, nil
}

// CancelCommand forwards a cancellation for an execution identifier to the
// hub. Errors propagate unchanged: cancellation is an explicit user action
// expected to surface its own failure.
func (f *Facade) CancelCommand(ctx context.Context, execID string) error {
	return f.coord.hub.CancelCommand(ctx, execID)
}
