package device

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

// fakeHub is a test implementation of HubClient.
type fakeHub struct {
	mu        sync.Mutex
	devices   []Snapshot
	execID    string
	execErr   error
	cancelErr error

	fetchCalls int
	executed   []fakeDispatch
	cancelled  []string

	// onFetch runs inside FetchDevices, before returning. Used to assert
	// ordering between tracking-table writes and the forced refresh.
	onFetch func()
}

type fakeDispatch struct {
	deviceURL  string
	cmd        Command
	originator string
}

func (h *fakeHub) ExecuteCommand(_ context.Context, deviceURL string, cmd Command, originator string) (string, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.execErr != nil {
		return "", h.execErr
	}
	h.executed = append(h.executed, fakeDispatch{deviceURL: deviceURL, cmd: cmd, originator: originator})
	return h.execID, nil
}

func (h *fakeHub) CancelCommand(_ context.Context, execID string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.cancelErr != nil {
		return h.cancelErr
	}
	h.cancelled = append(h.cancelled, execID)
	return nil
}

func (h *fakeHub) FetchDevices(_ context.Context) ([]Snapshot, error) {
	h.mu.Lock()
	hook := h.onFetch
	devices := make([]Snapshot, len(h.devices))
	copy(devices, h.devices)
	h.fetchCalls++
	h.mu.Unlock()

	if hook != nil {
		hook()
	}
	return devices, nil
}

func (h *fakeHub) fetchCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.fetchCalls
}

// shutterSnapshot builds a typical exterior blind device.
func shutterSnapshot(deviceURL string) Snapshot {
	return Snapshot{
		DeviceURL:        deviceURL,
		Label:            "Bedroom Blind",
		UIClass:          "Shutter",
		Widget:           "UpDownExteriorBlind",
		ControllableName: "io:ExteriorVenetianBlindIOComponent",
		Definition:       Definition{Commands: []string{"open", "close", "stop", "setClosure"}},
		States: []State{
			{Name: "core:ClosureState", Value: float64(50)},
			{Name: "core:OpenClosedState", Value: "open"},
		},
		Available: true,
	}
}

// newTestFacade primes a coordinator with the given snapshots and binds a
// facade to deviceURL.
func newTestFacade(t *testing.T, hub *fakeHub, deviceURL string, entities EntityResolver) (*Facade, *Coordinator) {
	t.Helper()
	coord := NewCoordinator(hub, time.Hour, "")
	if err := coord.ForceRefresh(context.Background()); err != nil {
		t.Fatalf("priming refresh failed: %v", err)
	}
	return NewFacade(deviceURL, coord, entities), coord
}

func TestCurrentSnapshot(t *testing.T) {
	hub := &fakeHub{devices: []Snapshot{shutterSnapshot("io://1234-5678-9012/12345")}}
	facade, _ := newTestFacade(t, hub, "io://1234-5678-9012/12345", nil)

	snap, err := facade.CurrentSnapshot()
	if err != nil {
		t.Fatalf("CurrentSnapshot() error = %v", err)
	}
	if snap.Label != "Bedroom Blind" {
		t.Errorf("Label = %q, want %q", snap.Label, "Bedroom Blind")
	}
}

func TestCurrentSnapshot_Deregistered(t *testing.T) {
	hub := &fakeHub{devices: []Snapshot{shutterSnapshot("io://1234-5678-9012/12345")}}
	facade, coord := newTestFacade(t, hub, "io://1234-5678-9012/12345", nil)

	// Hub drops the device; next refresh replaces the store wholesale.
	hub.mu.Lock()
	hub.devices = nil
	hub.mu.Unlock()
	if err := coord.ForceRefresh(context.Background()); err != nil {
		t.Fatalf("refresh failed: %v", err)
	}

	if _, err := facade.CurrentSnapshot(); !errors.Is(err, ErrDeviceNotFound) {
		t.Errorf("CurrentSnapshot() error = %v, want ErrDeviceNotFound", err)
	}
	if facade.DisplayName() != "" {
		t.Errorf("DisplayName() = %q, want empty for deregistered device", facade.DisplayName())
	}
	if facade.IsAvailable() {
		t.Error("IsAvailable() = true for deregistered device")
	}
}

func TestHasAssumedState(t *testing.T) {
	tests := []struct {
		name   string
		states []State
		want   bool
	}{
		{"no states", nil, true},
		{"empty states", []State{}, true},
		{"one state", []State{{Name: "core:ClosureState", Value: float64(50)}}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			snap := shutterSnapshot("io://1/2")
			snap.States = tt.states
			hub := &fakeHub{devices: []Snapshot{snap}}
			facade, _ := newTestFacade(t, hub, "io://1/2", nil)

			if got := facade.HasAssumedState(); got != tt.want {
				t.Errorf("HasAssumedState() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSelectCommand_PreferenceOrder(t *testing.T) {
	snap := shutterSnapshot("io://1/2")
	snap.Definition = Definition{Commands: []string{"open", "close"}}
	hub := &fakeHub{devices: []Snapshot{snap}}
	facade, _ := newTestFacade(t, hub, "io://1/2", nil)

	// First candidate present in the capability set wins, in candidate order.
	got, ok := facade.SelectCommand("toggle", "close", "open")
	if !ok || got != "close" {
		t.Errorf("SelectCommand() = %q, %v, want %q, true", got, ok, "close")
	}

	if _, ok := facade.SelectCommand("toggle", "cycle"); ok {
		t.Error("SelectCommand() found unsupported command")
	}

	if !facade.HasCommand("stop") {
		// "stop" is not in this capability set; HasCommand must agree.
		t.Log("capability set reduced for this test")
	}
	if facade.HasCommand("toggle") {
		t.Error("HasCommand(toggle) = true, want false")
	}
}

func TestSelectState_StoredOrderWins(t *testing.T) {
	snap := shutterSnapshot("io://1/2")
	snap.States = []State{
		{Name: "core:SlateOrientationState", Value: float64(30)},
		{Name: "core:ClosureState", Value: float64(50)},
	}
	hub := &fakeHub{devices: []Snapshot{snap}}
	facade, _ := newTestFacade(t, hub, "io://1/2", nil)

	// Both names are candidates; the state stored first wins regardless of
	// candidate order.
	got, ok := facade.SelectState("core:ClosureState", "core:SlateOrientationState")
	if !ok {
		t.Fatal("SelectState() found nothing")
	}
	if got != float64(30) {
		t.Errorf("SelectState() = %v, want 30 (first stored state)", got)
	}
}

func TestSelectState_Absent(t *testing.T) {
	snap := shutterSnapshot("io://1/2")
	hub := &fakeHub{devices: []Snapshot{snap}}
	facade, _ := newTestFacade(t, hub, "io://1/2", nil)

	if _, ok := facade.SelectState("core:BatteryState"); ok {
		t.Error("SelectState() = present for absent state")
	}
	if facade.HasState("core:BatteryState") {
		t.Error("HasState() = true for absent state")
	}

	// No state list at all.
	snap.States = nil
	hub.mu.Lock()
	hub.devices = []Snapshot{snap}
	hub.mu.Unlock()
	coord := NewCoordinator(hub, time.Hour, "")
	if err := coord.ForceRefresh(context.Background()); err != nil {
		t.Fatalf("refresh failed: %v", err)
	}
	stateless := NewFacade("io://1/2", coord, nil)
	if _, ok := stateless.SelectState("core:ClosureState"); ok {
		t.Error("SelectState() = present for device without states")
	}
}

func TestAttributes_ExactContents(t *testing.T) {
	snap := Snapshot{
		DeviceURL:        "io://1/2",
		Label:            "Blind",
		UIClass:          "Shutter",
		Widget:           "UpDownExteriorBlind",
		ControllableName: "io:UpDownBlind",
		Attributes:       []Attribute{{Name: "manufacturer", Value: "X"}},
		States:           []State{{Name: "core:ClosureState", Value: "50"}},
		Available:        true,
	}
	hub := &fakeHub{devices: []Snapshot{snap}}
	facade, _ := newTestFacade(t, hub, "io://1/2", nil)

	got := facade.Attributes()
	want := map[string]any{
		"ui_class":          "Shutter",
		"widget":            "UpDownExteriorBlind",
		"controllable_name": "io:UpDownBlind",
		"manufacturer":      "X",
		"core:ClosureState": "50",
	}

	if len(got) != len(want) {
		t.Errorf("Attributes() has %d keys, want %d: %v", len(got), len(want), got)
	}
	for k, v := range want {
		if got[k] != v {
			t.Errorf("Attributes()[%q] = %v, want %v", k, got[k], v)
		}
	}
}

func TestAttributes_RSSIAndStateFilter(t *testing.T) {
	snap := shutterSnapshot("io://1/2")
	snap.States = []State{
		{Name: StateRSSILevel, Value: float64(72)},
		{Name: "core:Memorized1Position", Value: float64(25)}, // no "State" substring
		{Name: "core:StatusState", Value: "available"},
	}
	hub := &fakeHub{devices: []Snapshot{snap}}
	facade, _ := newTestFacade(t, hub, "io://1/2", nil)

	got := facade.Attributes()

	if got[AttrRSSILevel] != float64(72) {
		t.Errorf("Attributes()[rssi_level] = %v, want 72", got[AttrRSSILevel])
	}
	if _, ok := got["core:Memorized1Position"]; ok {
		t.Error("Attributes() includes state without 'State' in its name")
	}
	if got["core:StatusState"] != "available" {
		t.Errorf("Attributes()[core:StatusState] = %v, want available", got["core:StatusState"])
	}
}

func TestAttributes_LastWriteWins(t *testing.T) {
	snap := shutterSnapshot("io://1/2")
	// Same key appears as a static attribute and as a state; the state is
	// merged later and wins.
	snap.Attributes = []Attribute{{Name: "core:FirmwareState", Value: "v1"}}
	snap.States = []State{{Name: "core:FirmwareState", Value: "v2"}}
	hub := &fakeHub{devices: []Snapshot{snap}}
	facade, _ := newTestFacade(t, hub, "io://1/2", nil)

	if got := facade.Attributes()["core:FirmwareState"]; got != "v2" {
		t.Errorf("Attributes()[core:FirmwareState] = %v, want v2 (state overwrite)", got)
	}
}

func TestGroupingInfo_Defaults(t *testing.T) {
	snap := shutterSnapshot("io://1234-5678-9012/12345")
	hub := &fakeHub{devices: []Snapshot{snap}}
	facade, _ := newTestFacade(t, hub, "io://1234-5678-9012/12345", nil)

	info := facade.GroupingInfo()
	if info.Identifier != "io://1234-5678-9012/12345" {
		t.Errorf("Identifier = %q, want device URL itself", info.Identifier)
	}
	if info.Manufacturer != DefaultManufacturer {
		t.Errorf("Manufacturer = %q, want %q", info.Manufacturer, DefaultManufacturer)
	}
	if info.Model != "UpDownExteriorBlind" {
		t.Errorf("Model = %q, want widget fallback", info.Model)
	}
	if info.Name != "Bedroom Blind" {
		t.Errorf("Name = %q, want snapshot label", info.Name)
	}
	if info.SWVersion != "io:ExteriorVenetianBlindIOComponent" {
		t.Errorf("SWVersion = %q, want controllable name", info.SWVersion)
	}
}

func TestGroupingInfo_FromStates(t *testing.T) {
	snap := shutterSnapshot("io://1/2")
	snap.States = append(snap.States,
		State{Name: StateManufacturerName, Value: "Velux"},
		State{Name: StateModel, Value: "KLR 200"},
	)
	hub := &fakeHub{devices: []Snapshot{snap}}
	facade, _ := newTestFacade(t, hub, "io://1/2", nil)

	info := facade.GroupingInfo()
	if info.Manufacturer != "Velux" {
		t.Errorf("Manufacturer = %q, want Velux", info.Manufacturer)
	}
	if info.Model != "KLR 200" {
		t.Errorf("Model = %q, want KLR 200", info.Model)
	}
}

// staticResolver is a fixed stable-ID → name map for tests.
type staticResolver map[string]string

func (r staticResolver) FindByStableID(id string) (string, bool) {
	name, ok := r[id]
	return name, ok
}

// failingResolver fails the test when consulted.
type failingResolver struct{ t *testing.T }

func (r failingResolver) FindByStableID(string) (string, bool) {
	r.t.Error("registry consulted for a non-composite device")
	return "", false
}

func TestGroupingInfo_SubDevice(t *testing.T) {
	snap := shutterSnapshot("io://1234-5678-9012/12345#2")
	hub := &fakeHub{devices: []Snapshot{snap}}
	entities := staticResolver{"io://1234-5678-9012/12345#1": "Smart Thermostat"}
	facade, _ := newTestFacade(t, hub, "io://1234-5678-9012/12345#2", entities)

	info := facade.GroupingInfo()
	if info.Identifier != "io://1234-5678-9012/12345" {
		t.Errorf("Identifier = %q, want base URL before '#'", info.Identifier)
	}
	if info.Name != "Smart Thermostat" {
		t.Errorf("Name = %q, want canonical sub-device name", info.Name)
	}
}

func TestGroupingInfo_SubDeviceDegraded(t *testing.T) {
	snap := shutterSnapshot("io://1234-5678-9012/12345#2")
	hub := &fakeHub{devices: []Snapshot{snap}}
	facade, _ := newTestFacade(t, hub, "io://1234-5678-9012/12345#2", staticResolver{})

	// No registration for <base>#1: name is empty, nothing fails.
	info := facade.GroupingInfo()
	if info.Name != "" {
		t.Errorf("Name = %q, want empty on registry miss", info.Name)
	}
	if info.Identifier != "io://1234-5678-9012/12345" {
		t.Errorf("Identifier = %q, want base URL", info.Identifier)
	}
}

func TestGroupingInfo_NoLookupForSimpleDevice(t *testing.T) {
	snap := shutterSnapshot("io://1234-5678-9012/12345")
	hub := &fakeHub{devices: []Snapshot{snap}}
	facade, _ := newTestFacade(t, hub, "io://1234-5678-9012/12345", failingResolver{t: t})

	if info := facade.GroupingInfo(); info.Name != "Bedroom Blind" {
		t.Errorf("Name = %q, want label without registry lookup", info.Name)
	}
}

func TestExecuteCommand_Success(t *testing.T) {
	deviceURL := "io://1234-5678-9012/12345"
	hub := &fakeHub{devices: []Snapshot{shutterSnapshot(deviceURL)}, execID: "E1"}
	facade, coord := newTestFacade(t, hub, deviceURL, nil)

	// The tracking entry must exist before the forced refresh runs: events
	// for E1 can arrive as soon as the hub processes the dispatch.
	var entryVisibleDuringRefresh bool
	hub.onFetch = func() {
		_, entryVisibleDuringRefresh = coord.Execution("E1")
	}
	baseline := hub.fetchCount()

	execID, err := facade.ExecuteCommand(context.Background(), "close")
	if err != nil {
		t.Fatalf("ExecuteCommand() error = %v", err)
	}
	if execID != "E1" {
		t.Errorf("execID = %q, want E1", execID)
	}

	exec, ok := coord.Execution("E1")
	if !ok {
		t.Fatal("no tracking entry for E1 after dispatch")
	}
	if exec.DeviceURL != deviceURL || exec.Command != "close" {
		t.Errorf("tracking entry = %+v, want {%s close}", exec, deviceURL)
	}
	if hub.fetchCount() != baseline+1 {
		t.Errorf("fetch count = %d, want %d (forced refresh before return)", hub.fetchCount(), baseline+1)
	}
	if !entryVisibleDuringRefresh {
		t.Error("tracking entry not visible during the post-dispatch refresh")
	}

	hub.mu.Lock()
	dispatch := hub.executed[0]
	hub.mu.Unlock()
	if dispatch.originator != DefaultOriginator {
		t.Errorf("originator = %q, want %q", dispatch.originator, DefaultOriginator)
	}
	if dispatch.cmd.Name != "close" {
		t.Errorf("command name = %q, want close", dispatch.cmd.Name)
	}
}

func TestExecuteCommand_Arguments(t *testing.T) {
	deviceURL := "io://1/2"
	hub := &fakeHub{devices: []Snapshot{shutterSnapshot(deviceURL)}, execID: "E2"}
	facade, _ := newTestFacade(t, hub, deviceURL, nil)

	if _, err := facade.ExecuteCommand(context.Background(), "setClosure", 75); err != nil {
		t.Fatalf("ExecuteCommand() error = %v", err)
	}

	hub.mu.Lock()
	params := hub.executed[0].cmd.Parameters
	hub.mu.Unlock()
	if len(params) != 1 || params[0] != 75 {
		t.Errorf("parameters = %v, want [75]", params)
	}
}

func TestExecuteCommand_DispatchFailure(t *testing.T) {
	deviceURL := "io://1234-5678-9012/12345"
	hub := &fakeHub{devices: []Snapshot{shutterSnapshot(deviceURL)}}
	facade, coord := newTestFacade(t, hub, deviceURL, nil)

	hub.mu.Lock()
	hub.execErr = errors.New("gateway busy")
	hub.mu.Unlock()
	baseline := hub.fetchCount()

	execID, err := facade.ExecuteCommand(context.Background(), "close")
	if execID != "" {
		t.Errorf("execID = %q, want empty on rejected dispatch", execID)
	}
	if !errors.Is(err, ErrDispatchFailed) {
		t.Errorf("ExecuteCommand() error = %v, want ErrDispatchFailed", err)
	}
	if coord.ExecutionCount() != 0 {
		t.Errorf("tracking table has %d entries after rejected dispatch, want 0", coord.ExecutionCount())
	}
	if hub.fetchCount() != baseline {
		t.Error("forced refresh ran after rejected dispatch")
	}
}

func TestCancelCommand(t *testing.T) {
	deviceURL := "io://1/2"
	hub := &fakeHub{devices: []Snapshot{shutterSnapshot(deviceURL)}}
	facade, _ := newTestFacade(t, hub, deviceURL, nil)

	if err := facade.CancelCommand(context.Background(), "E1"); err != nil {
		t.Fatalf("CancelCommand() error = %v", err)
	}
	hub.mu.Lock()
	cancelled := hub.cancelled
	hub.mu.Unlock()
	if len(cancelled) != 1 || cancelled[0] != "E1" {
		t.Errorf("cancelled = %v, want [E1]", cancelled)
	}
}

func TestCancelCommand_ErrorPropagates(t *testing.T) {
	deviceURL := "io://1/2"
	hubErr := errors.New("unknown execution")
	hub := &fakeHub{devices: []Snapshot{shutterSnapshot(deviceURL)}, cancelErr: hubErr}
	facade, _ := newTestFacade(t, hub, deviceURL, nil)

	// Cancellation failures surface unchanged, unlike dispatch failures.
	if err := facade.CancelCommand(context.Background(), "E9"); !errors.Is(err, hubErr) {
		t.Errorf("CancelCommand() error = %v, want the hub error unchanged", err)
	}
}
