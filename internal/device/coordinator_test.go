package device

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func TestForceRefresh_ReplacesWholesale(t *testing.T) {
	hub := &fakeHub{devices: []Snapshot{
		shutterSnapshot("io://1/1"),
		shutterSnapshot("io://1/2"),
	}}
	coord := NewCoordinator(hub, time.Hour, "")

	if err := coord.ForceRefresh(context.Background()); err != nil {
		t.Fatalf("ForceRefresh() error = %v", err)
	}
	if coord.DeviceCount() != 2 {
		t.Fatalf("DeviceCount() = %d, want 2", coord.DeviceCount())
	}

	// Hub now reports a single, different device. The old entries must be
	// gone, not merged.
	hub.mu.Lock()
	hub.devices = []Snapshot{shutterSnapshot("io://1/3")}
	hub.mu.Unlock()
	if err := coord.ForceRefresh(context.Background()); err != nil {
		t.Fatalf("ForceRefresh() error = %v", err)
	}

	if coord.DeviceCount() != 1 {
		t.Errorf("DeviceCount() = %d, want 1", coord.DeviceCount())
	}
	if _, err := coord.Snapshot("io://1/1"); !errors.Is(err, ErrDeviceNotFound) {
		t.Errorf("Snapshot(io://1/1) error = %v, want ErrDeviceNotFound", err)
	}
	if _, err := coord.Snapshot("io://1/3"); err != nil {
		t.Errorf("Snapshot(io://1/3) error = %v", err)
	}
}

func TestForceRefresh_HubError(t *testing.T) {
	hub := &fakeHub{devices: []Snapshot{shutterSnapshot("io://1/1")}}
	coord := NewCoordinator(hub, time.Hour, "")
	if err := coord.ForceRefresh(context.Background()); err != nil {
		t.Fatalf("ForceRefresh() error = %v", err)
	}

	// A failed fetch keeps the previous snapshots intact.
	brokenHub := &failingFetchHub{}
	broken := NewCoordinator(brokenHub, time.Hour, "")
	if err := broken.ForceRefresh(context.Background()); !errors.Is(err, ErrRefreshFailed) {
		t.Errorf("ForceRefresh() error = %v, want ErrRefreshFailed", err)
	}

	if coord.DeviceCount() != 1 {
		t.Errorf("DeviceCount() = %d after unrelated failure, want 1", coord.DeviceCount())
	}
}

type failingFetchHub struct{ fakeHub }

func (h *failingFetchHub) FetchDevices(context.Context) ([]Snapshot, error) {
	return nil, errors.New("gateway unreachable")
}

func TestSnapshots_Sorted(t *testing.T) {
	hub := &fakeHub{devices: []Snapshot{
		shutterSnapshot("io://1/9"),
		shutterSnapshot("io://1/1"),
		shutterSnapshot("io://1/5"),
	}}
	coord := NewCoordinator(hub, time.Hour, "")
	if err := coord.ForceRefresh(context.Background()); err != nil {
		t.Fatalf("ForceRefresh() error = %v", err)
	}

	snaps := coord.Snapshots()
	want := []string{"io://1/1", "io://1/5", "io://1/9"}
	if len(snaps) != len(want) {
		t.Fatalf("Snapshots() returned %d devices, want %d", len(snaps), len(want))
	}
	for i, url := range want {
		if snaps[i].DeviceURL != url {
			t.Errorf("Snapshots()[%d].DeviceURL = %q, want %q", i, snaps[i].DeviceURL, url)
		}
	}
}

func TestRegisterExecution(t *testing.T) {
	coord := NewCoordinator(&fakeHub{}, time.Hour, "")

	coord.RegisterExecution("E1", Execution{DeviceURL: "io://1/1", Command: "open"})
	coord.RegisterExecution("E2", Execution{DeviceURL: "io://1/2", Command: "close"})

	if coord.ExecutionCount() != 2 {
		t.Errorf("ExecutionCount() = %d, want 2", coord.ExecutionCount())
	}

	// Re-registering the same ID overwrites rather than erroring.
	coord.RegisterExecution("E1", Execution{DeviceURL: "io://1/1", Command: "stop"})
	exec, ok := coord.Execution("E1")
	if !ok || exec.Command != "stop" {
		t.Errorf("Execution(E1) = %+v, %v, want Command stop", exec, ok)
	}
	if coord.ExecutionCount() != 2 {
		t.Errorf("ExecutionCount() = %d after overwrite, want 2", coord.ExecutionCount())
	}
}

// recordingListener collects broadcast payloads for assertions.
type recordingListener struct {
	mu       sync.Mutex
	channels []string
	payloads []map[string]any
}

func (l *recordingListener) listen(channel string, payload map[string]any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.channels = append(l.channels, channel)
	l.payloads = append(l.payloads, payload)
}

func (l *recordingListener) count() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.payloads)
}

func (l *recordingListener) last() (string, map[string]any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.payloads) == 0 {
		return "", nil
	}
	return l.channels[len(l.channels)-1], l.payloads[len(l.payloads)-1]
}

func TestHandleEvent_ExecutionLifecycle(t *testing.T) {
	coord := NewCoordinator(&fakeHub{}, time.Hour, "")
	listener := &recordingListener{}
	coord.AddListener(listener.listen)

	coord.RegisterExecution("E1", Execution{DeviceURL: "io://1/1", Command: "close"})

	coord.HandleEvent(Event{Kind: EventExecutionStateChanged, ExecID: "E1", NewState: ExecutionStateInProgress})

	channel, payload := listener.last()
	if channel != ChannelExecutionStateChanged {
		t.Errorf("channel = %q, want %q", channel, ChannelExecutionStateChanged)
	}
	if payload["device_url"] != "io://1/1" || payload["command"] != "close" {
		t.Errorf("payload = %v, want correlated device and command", payload)
	}
	if payload["new_state"] != ExecutionStateInProgress {
		t.Errorf("payload new_state = %v, want %q", payload["new_state"], ExecutionStateInProgress)
	}
	if _, ok := coord.Execution("E1"); !ok {
		t.Error("non-terminal event removed the tracking entry")
	}

	coord.HandleEvent(Event{Kind: EventExecutionStateChanged, ExecID: "E1", NewState: ExecutionStateCompleted})
	if _, ok := coord.Execution("E1"); ok {
		t.Error("terminal event left the tracking entry behind")
	}
	if listener.count() != 2 {
		t.Errorf("listener saw %d events, want 2", listener.count())
	}
}

func TestHandleEvent_FailedExecution(t *testing.T) {
	coord := NewCoordinator(&fakeHub{}, time.Hour, "")
	listener := &recordingListener{}
	coord.AddListener(listener.listen)

	coord.RegisterExecution("E1", Execution{DeviceURL: "io://1/1", Command: "open"})
	coord.HandleEvent(Event{
		Kind:        EventExecutionStateChanged,
		ExecID:      "E1",
		NewState:    ExecutionStateFailed,
		FailureType: "CMDTIMEOUT",
	})

	if _, ok := coord.Execution("E1"); ok {
		t.Error("FAILED did not remove the tracking entry")
	}
	_, payload := listener.last()
	if payload["failure_type"] != "CMDTIMEOUT" {
		t.Errorf("payload failure_type = %v, want CMDTIMEOUT", payload["failure_type"])
	}
}

func TestHandleEvent_UntrackedExecution(t *testing.T) {
	coord := NewCoordinator(&fakeHub{}, time.Hour, "")
	listener := &recordingListener{}
	coord.AddListener(listener.listen)

	// Executions started by other controllers share the event stream but
	// have no local tracking entry. They are ignored without error.
	coord.HandleEvent(Event{Kind: EventExecutionStateChanged, ExecID: "E9", NewState: ExecutionStateCompleted})

	if listener.count() != 0 {
		t.Errorf("listener saw %d events for an untracked execution, want 0", listener.count())
	}
}

func TestHandleEvent_DeviceStateChanged(t *testing.T) {
	hub := &fakeHub{devices: []Snapshot{shutterSnapshot("io://1/1")}}
	coord := NewCoordinator(hub, time.Hour, "")
	if err := coord.ForceRefresh(context.Background()); err != nil {
		t.Fatalf("ForceRefresh() error = %v", err)
	}
	listener := &recordingListener{}
	coord.AddListener(listener.listen)

	coord.HandleEvent(Event{
		Kind:      EventDeviceStateChanged,
		DeviceURL: "io://1/1",
		States:    []State{{Name: "core:ClosureState", Value: float64(100)}},
	})

	channel, payload := listener.last()
	if channel != ChannelDeviceStateChanged {
		t.Errorf("channel = %q, want %q", channel, ChannelDeviceStateChanged)
	}
	if payload["device_url"] != "io://1/1" {
		t.Errorf("payload = %v, want device_url io://1/1", payload)
	}

	// Events never patch the snapshot store; only refreshes write to it.
	snap, err := coord.Snapshot("io://1/1")
	if err != nil {
		t.Fatalf("Snapshot() error = %v", err)
	}
	if snap.States[0].Value != float64(50) {
		t.Errorf("snapshot state = %v, want unchanged 50", snap.States[0].Value)
	}
}

func TestGetStats(t *testing.T) {
	hub := &fakeHub{devices: []Snapshot{shutterSnapshot("io://1/1")}}
	coord := NewCoordinator(hub, time.Hour, "")
	if err := coord.ForceRefresh(context.Background()); err != nil {
		t.Fatalf("ForceRefresh() error = %v", err)
	}
	coord.RegisterExecution("E1", Execution{DeviceURL: "io://1/1", Command: "open"})

	stats := coord.GetStats()
	if stats.Devices != 1 {
		t.Errorf("stats.Devices = %d, want 1", stats.Devices)
	}
	if stats.TrackedExecutions != 1 {
		t.Errorf("stats.TrackedExecutions = %d, want 1", stats.TrackedExecutions)
	}
	if stats.LastRefresh.IsZero() {
		t.Error("stats.LastRefresh is zero after a refresh")
	}
}

func TestCoordinator_ConcurrentAccess(t *testing.T) {
	hub := &fakeHub{devices: []Snapshot{shutterSnapshot("io://1/1")}}
	coord := NewCoordinator(hub, time.Hour, "")
	if err := coord.ForceRefresh(context.Background()); err != nil {
		t.Fatalf("ForceRefresh() error = %v", err)
	}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				_ = coord.ForceRefresh(context.Background())
				_, _ = coord.Snapshot("io://1/1")
				coord.RegisterExecution("E1", Execution{DeviceURL: "io://1/1", Command: "open"})
				coord.HandleEvent(Event{Kind: EventExecutionStateChanged, ExecID: "E1", NewState: ExecutionStateCompleted})
			}
		}(i)
	}
	wg.Wait()
}
