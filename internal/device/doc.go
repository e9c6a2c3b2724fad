// Package device models hub devices and the asynchronous command
// execution protocol for TaHoma Bridge.
//
// A hub device has no fixed state schema: each refresh delivers an ordered
// list of loosely-typed name/value states plus a capability list of
// supported command names. This package provides safe, typed access over
// that shape and correlates fire-and-forget command dispatches back to
// hub-issued execution identifiers.
//
// # Key Types
//
//   - Snapshot: immutable point-in-time record of one device (identity,
//     capabilities, states, availability)
//   - Coordinator: shared snapshot store + execution tracking table,
//     refreshed wholesale from the hub on a poll cycle
//   - Facade: per-device accessor surface and command dispatch, reading
//     through the coordinator on every call
//   - EntityRegistry: stable-ID → display-name registrations, sqlite-backed,
//     used to name composite (sub-device) groups
//   - HubClient: the hub connectivity collaborator (implemented in
//     internal/hub, faked in tests)
//
// # Command Execution
//
// Dispatch is asynchronous at the wire level: the hub acknowledges a
// command with an execution identifier and reports progress later on its
// event stream, by identifier only. The facade therefore records a local
// {device URL, command} tracking entry under the identifier before
// triggering the awaited post-dispatch refresh; the entry must exist
// before any event for that identifier can be observed.
//
// # Usage
//
//	coordinator := device.NewCoordinator(hubClient, 30*time.Second, "Home Assistant")
//	coordinator.SetLogger(log)
//	go coordinator.Run(ctx)
//
//	facade := device.NewFacade(deviceURL, coordinator, entityRegistry)
//	if cmd, ok := facade.SelectCommand("close", "down"); ok {
//	    if execID, err := facade.ExecuteCommand(ctx, cmd); err != nil {
//	        log.Warn("command failed", "error", err) // best-effort
//	    } else {
//	        log.Info("command dispatched", "exec_id", execID)
//	    }
//	}
//
// # Thread Safety
//
// The Coordinator and EntityRegistry are safe for concurrent use by many
// facades. Snapshots are never mutated after creation; the snapshot store
// is only written by refresh cycles, always as a wholesale replacement.
package device
