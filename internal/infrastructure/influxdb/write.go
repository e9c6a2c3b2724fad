package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// RecordStateValue writes a numeric device state observation.
//
// Called for each numeric state in a refresh batch, so every refresh cycle
// produces a time series per device state. The write is non-blocking; data
// is batched and sent asynchronously.
//
// Parameters:
//   - deviceURL: The device the state belongs to
//   - stateName: The state's name (e.g., "core:ClosureState")
//   - value: The numeric state value
//
// Example:
//
//	client.RecordStateValue("io://1234-5678-9012/12345", "core:ClosureState", 50)
func (c *Client) RecordStateValue(deviceURL, stateName string, value float64) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		"device_state",
		map[string]string{
			"device_url": deviceURL,
			"state":      stateName,
		},
		map[string]interface{}{
			"value": value,
		},
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}

// RecordRefresh writes a refresh cycle measurement.
//
// Tracks how long a device list refresh took and how many devices it
// returned, for monitoring hub responsiveness over time.
func (c *Client) RecordRefresh(duration time.Duration, deviceCount int) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		"refresh",
		nil,
		map[string]interface{}{
			"duration_ms": duration.Milliseconds(),
			"devices":     deviceCount,
		},
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}

// RecordDispatch writes a command dispatch outcome.
//
// Parameters:
//   - deviceURL: The target device
//   - command: The command name
//   - ok: Whether the hub accepted the dispatch
func (c *Client) RecordDispatch(deviceURL, command string, ok bool) {
	if !c.IsConnected() {
		return
	}

	result := "accepted"
	if !ok {
		result = "rejected"
	}

	point := write.NewPoint(
		"dispatch",
		map[string]string{
			"device_url": deviceURL,
			"command":    command,
			"result":     result,
		},
		map[string]interface{}{
			"count": 1,
		},
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}
