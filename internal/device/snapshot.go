package device

import "strings"

// State is a single named state value reported by the hub.
//
// State names are namespaced strings (e.g. "core:BatteryState") and values
// are dynamically typed: the hub defines the shape, not this bridge. The
// state list for a device has no fixed schema; lookups scan it in stored
// order.
type State struct {
	Name  string `json:"name"`
	Value any    `json:"value"`
}

// Attribute is a static name/value metadata entry from the device definition.
type Attribute struct {
	Name  string `json:"name"`
	Value any    `json:"value"`
}

// Definition describes what a device's firmware advertises it can do.
type Definition struct {
	// Commands is the capability set: the command names this device accepts.
	Commands []string `json:"commands"`
}

// Snapshot is a point-in-time record of one hub device: identity,
// capabilities, and current state.
//
// Snapshots are produced wholesale by each refresh cycle and replace the
// previous snapshot for the same device URL. They are never mutated after
// creation; every consumer treats them as read-only.
type Snapshot struct {
	// DeviceURL is the opaque unique identifier assigned by the hub.
	// Sub-devices sharing one physical housing carry a "#<n>" suffix.
	DeviceURL        string      `json:"device_url"`
	Label            string      `json:"label"`
	UIClass          string      `json:"ui_class"`
	Widget           string      `json:"widget"`
	ControllableName string      `json:"controllable_name"`
	Definition       Definition  `json:"definition"`
	Attributes       []Attribute `json:"attributes,omitempty"`
	States           []State     `json:"states,omitempty"`
	Available        bool        `json:"available"`
}

// BaseURL returns the physical-device grouping key: the device URL up to
// the first '#'. For devices without a sub-device suffix this is the device
// URL itself.
func (s *Snapshot) BaseURL() string {
	return BaseDeviceURL(s.DeviceURL)
}

// IsSubDevice reports whether this snapshot describes one of several logical
// sub-devices sharing a single physical housing.
func (s *Snapshot) IsSubDevice() bool {
	return strings.Contains(s.DeviceURL, subDeviceSeparator)
}

// SupportsCommand reports whether the command name appears in the device's
// capability set.
func (s *Snapshot) SupportsCommand(name string) bool {
	for _, c := range s.Definition.Commands {
		if c == name {
			return true
		}
	}
	return false
}

// subDeviceSeparator splits a device URL from its logical sub-device index.
const subDeviceSeparator = "#"

// BaseDeviceURL returns the portion of a device URL before the first '#'.
func BaseDeviceURL(deviceURL string) string {
	base, _, _ := strings.Cut(deviceURL, subDeviceSeparator)
	return base
}

// CanonicalSubDeviceURL returns the stable identifier of the canonical
// sub-device for a group: "<base>#1". Sub-device 1 is the name source for
// every entity in the same physical housing.
func CanonicalSubDeviceURL(deviceURL string) string {
	return BaseDeviceURL(deviceURL) + subDeviceSeparator + "1"
}
