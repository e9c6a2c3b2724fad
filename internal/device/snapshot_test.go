package device

import "testing"

func TestBaseDeviceURL(t *testing.T) {
	tests := []struct {
		name string
		url  string
		want string
	}{
		{"simple device", "io://1234-5678-9012/12345", "io://1234-5678-9012/12345"},
		{"first sub-device", "io://1234-5678-9012/12345#1", "io://1234-5678-9012/12345"},
		{"second sub-device", "io://1234-5678-9012/12345#2", "io://1234-5678-9012/12345"},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := BaseDeviceURL(tt.url); got != tt.want {
				t.Errorf("BaseDeviceURL(%q) = %q, want %q", tt.url, got, tt.want)
			}
		})
	}
}

func TestCanonicalSubDeviceURL(t *testing.T) {
	if got := CanonicalSubDeviceURL("io://1234-5678-9012/12345#2"); got != "io://1234-5678-9012/12345#1" {
		t.Errorf("CanonicalSubDeviceURL() = %q, want base#1", got)
	}
	if got := CanonicalSubDeviceURL("io://1234-5678-9012/12345"); got != "io://1234-5678-9012/12345#1" {
		t.Errorf("CanonicalSubDeviceURL() = %q, want base#1 even for simple URLs", got)
	}
}

func TestSnapshot_IsSubDevice(t *testing.T) {
	simple := Snapshot{DeviceURL: "io://1/2"}
	if simple.IsSubDevice() {
		t.Error("IsSubDevice() = true for simple device")
	}
	sub := Snapshot{DeviceURL: "io://1/2#1"}
	if !sub.IsSubDevice() {
		t.Error("IsSubDevice() = false for sub-device")
	}
}

func TestSnapshot_SupportsCommand(t *testing.T) {
	snap := Snapshot{Definition: Definition{Commands: []string{"open", "close"}}}
	if !snap.SupportsCommand("open") {
		t.Error("SupportsCommand(open) = false")
	}
	if snap.SupportsCommand("toggle") {
		t.Error("SupportsCommand(toggle) = true")
	}

	empty := Snapshot{}
	if empty.SupportsCommand("open") {
		t.Error("SupportsCommand() = true on empty definition")
	}
}
