package device

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

// Logger defines the logging interface used by this package.
// This allows different logging implementations to be used.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// NopLogger returns a Logger that discards everything.
func NopLogger() Logger { return noopLogger{} }

// Metrics receives telemetry from the coordinator and facades.
// The InfluxDB client satisfies this; the default is a no-op.
type Metrics interface {
	RecordRefresh(duration time.Duration, deviceCount int)
	RecordDispatch(deviceURL, command string, ok bool)
	RecordStateValue(deviceURL, stateName string, value float64)
}

// noopMetrics discards all telemetry.
type noopMetrics struct{}

func (noopMetrics) RecordRefresh(time.Duration, int)         {}
func (noopMetrics) RecordDispatch(string, string, bool)      {}
func (noopMetrics) RecordStateValue(string, string, float64) {}

// Execution is a local tracking entry for a dispatched command.
//
// The hub's event stream reports execution progress by execution ID only,
// without repeating the device URL; this entry is the only place the
// mapping exists.
type Execution struct {
	DeviceURL string `json:"device_url"`
	Command   string `json:"command"`
}

// Notification channels broadcast to listeners.
const (
	ChannelExecutionStateChanged = "execution.state_changed"
	ChannelDeviceStateChanged    = "device.state_changed"
)

// Listener receives coordinator notifications. Listeners are invoked
// synchronously on the event path and must not block.
type Listener func(channel string, payload map[string]any)

// Coordinator owns the shared device snapshot store and the execution
// tracking table.
//
// The snapshot store maps device URL to the latest Snapshot. Writes are
// wholesale replacements performed only by the refresh cycle; reads may
// come from many facades concurrently. The tracking table is written on
// every successful dispatch and consumed by hub event correlation.
//
// All public methods are thread-safe.
type Coordinator struct {
	hub        HubClient
	interval   time.Duration
	originator string
	logger     Logger
	metrics    Metrics

	snapMu      sync.RWMutex
	snapshots   map[string]*Snapshot
	lastRefresh time.Time

	execMu     sync.RWMutex
	executions map[string]Execution

	listenerMu sync.RWMutex
	listeners  []Listener

	// refreshMu serialises refresh cycles so a forced refresh cannot
	// interleave with the periodic one.
	refreshMu sync.Mutex
}

// NewCoordinator creates a coordinator polling the hub at the given
// interval. The originator label tags every command submitted through
// facades bound to this coordinator.
func NewCoordinator(hub HubClient, interval time.Duration, originator string) *Coordinator {
	if originator == "" {
		originator = DefaultOriginator
	}
	return &Coordinator{
		hub:        hub,
		interval:   interval,
		originator: originator,
		logger:     noopLogger{},
		metrics:    noopMetrics{},
		snapshots:  make(map[string]*Snapshot),
		executions: make(map[string]Execution),
	}
}

// DefaultOriginator is the originator label sent with commands when none
// is configured.
const DefaultOriginator = "Home Assistant"

// SetLogger sets the logger for the coordinator.
func (c *Coordinator) SetLogger(logger Logger) {
	c.logger = logger
}

// SetMetrics sets the telemetry sink for refresh and dispatch events.
func (c *Coordinator) SetMetrics(metrics Metrics) {
	c.metrics = metrics
}

// AddListener registers a notification listener.
func (c *Coordinator) AddListener(l Listener) {
	c.listenerMu.Lock()
	c.listeners = append(c.listeners, l)
	c.listenerMu.Unlock()
}

// Run performs an initial refresh and then polls the hub on the configured
// interval until the context is cancelled. It blocks; run it in a
// goroutine.
func (c *Coordinator) Run(ctx context.Context) {
	if err := c.ForceRefresh(ctx); err != nil {
		c.logger.Warn("initial refresh failed", "error", err)
	}

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := c.ForceRefresh(ctx); err != nil {
				c.logger.Warn("periodic refresh failed", "error", err)
			}
		}
	}
}

// ForceRefresh fetches a fresh device list from the hub and replaces the
// snapshot store wholesale. It blocks until the new snapshots have landed,
// giving callers a read-your-writes view of hub-side effects.
func (c *Coordinator) ForceRefresh(ctx context.Context) error {
	c.refreshMu.Lock()
	defer c.refreshMu.Unlock()

	start := time.Now()
	devices, err := c.hub.FetchDevices(ctx)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrRefreshFailed, err)
	}

	fresh := make(map[string]*Snapshot, len(devices))
	for i := range devices {
		snap := devices[i]
		fresh[snap.DeviceURL] = &snap
	}

	c.snapMu.Lock()
	c.snapshots = fresh
	c.lastRefresh = time.Now().UTC()
	c.snapMu.Unlock()

	c.recordStateTelemetry(devices)
	c.metrics.RecordRefresh(time.Since(start), len(devices))
	c.logger.Debug("snapshot store refreshed",
		"devices", len(devices),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return nil
}

// recordStateTelemetry exports numeric state values from a refresh batch.
func (c *Coordinator) recordStateTelemetry(devices []Snapshot) {
	for i := range devices {
		for _, st := range devices[i].States {
			switch v := st.Value.(type) {
			case float64:
				c.metrics.RecordStateValue(devices[i].DeviceURL, st.Name, v)
			case int:
				c.metrics.RecordStateValue(devices[i].DeviceURL, st.Name, float64(v))
			}
		}
	}
}

// Snapshot returns the current snapshot for a device URL.
// Returns ErrDeviceNotFound if the device has been removed from the store.
func (c *Coordinator) Snapshot(deviceURL string) (*Snapshot, error) {
	c.snapMu.RLock()
	defer c.snapMu.RUnlock()

	snap, ok := c.snapshots[deviceURL]
	if !ok {
		return nil, ErrDeviceNotFound
	}
	return snap, nil
}

// Snapshots returns all current snapshots, ordered by device URL.
func (c *Coordinator) Snapshots() []Snapshot {
	c.snapMu.RLock()
	defer c.snapMu.RUnlock()

	out := make([]Snapshot, 0, len(c.snapshots))
	for _, snap := range c.snapshots {
		out = append(out, *snap)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DeviceURL < out[j].DeviceURL })
	return out
}

// DeviceCount returns the number of devices in the snapshot store.
func (c *Coordinator) DeviceCount() int {
	c.snapMu.RLock()
	defer c.snapMu.RUnlock()
	return len(c.snapshots)
}

// RegisterExecution records a tracking entry under a hub-issued execution
// identifier. Re-registering the same identifier overwrites the entry.
func (c *Coordinator) RegisterExecution(execID string, exec Execution) {
	c.execMu.Lock()
	c.executions[execID] = exec
	c.execMu.Unlock()
	c.logger.Debug("execution registered",
		"exec_id", execID,
		"device_url", exec.DeviceURL,
		"command", exec.Command,
	)
}

// Execution looks up the tracking entry for an execution identifier.
func (c *Coordinator) Execution(execID string) (Execution, bool) {
	c.execMu.RLock()
	defer c.execMu.RUnlock()
	exec, ok := c.executions[execID]
	return exec, ok
}

// ExecutionCount returns the number of tracked executions.
func (c *Coordinator) ExecutionCount() int {
	c.execMu.RLock()
	defer c.execMu.RUnlock()
	return len(c.executions)
}

// HandleEvent processes one entry from the hub's event stream.
//
// Execution events are resolved against the tracking table; entries are
// removed once the execution reaches a terminal state. Device state events
// are fanned out to listeners as-is; the snapshot store itself is only
// ever written by refresh cycles.
func (c *Coordinator) HandleEvent(ev Event) {
	switch ev.Kind {
	case EventExecutionRegistered:
		// The tracking entry was recorded at dispatch time; the event
		// carries no device URL so there is nothing to add here.
		c.logger.Debug("execution registered by hub", "exec_id", ev.ExecID)

	case EventExecutionStateChanged:
		exec, ok := c.Execution(ev.ExecID)
		if !ok {
			// Execution dispatched by another hub client; not ours to report.
			c.logger.Debug("event for untracked execution", "exec_id", ev.ExecID)
			return
		}
		c.broadcast(ChannelExecutionStateChanged, map[string]any{
			"exec_id":      ev.ExecID,
			"device_url":   exec.DeviceURL,
			"command":      exec.Command,
			"new_state":    ev.NewState,
			"failure_type": ev.FailureType,
		})
		if IsTerminal(ev.NewState) {
			c.execMu.Lock()
			delete(c.executions, ev.ExecID)
			c.execMu.Unlock()
			c.logger.Debug("execution finished",
				"exec_id", ev.ExecID,
				"state", ev.NewState,
			)
		}

	case EventDeviceStateChanged:
		c.broadcast(ChannelDeviceStateChanged, map[string]any{
			"device_url": ev.DeviceURL,
			"states":     ev.States,
		})

	default:
		c.logger.Debug("unhandled hub event", "kind", ev.Kind)
	}
}

// broadcast delivers a notification to every registered listener.
func (c *Coordinator) broadcast(channel string, payload map[string]any) {
	c.listenerMu.RLock()
	listeners := make([]Listener, len(c.listeners))
	copy(listeners, c.listeners)
	c.listenerMu.RUnlock()

	for _, l := range listeners {
		l(channel, payload)
	}
}

// Stats returns coordinator statistics for monitoring.
type Stats struct {
	Devices           int       `json:"devices"`
	TrackedExecutions int       `json:"tracked_executions"`
	LastRefresh       time.Time `json:"last_refresh"`
}

// GetStats returns current coordinator statistics.
func (c *Coordinator) GetStats() Stats {
	c.snapMu.RLock()
	devices := len(c.snapshots)
	last := c.lastRefresh
	c.snapMu.RUnlock()

	return Stats{
		Devices:           devices,
		TrackedExecutions: c.ExecutionCount(),
		LastRefresh:       last,
	}
}
