package mqtt

import "fmt"

// Topic prefixes for the TaHoma bridge.
//
// The hub gateway is reached over a request/response scheme: the bridge
// publishes to a request topic and awaits a reply on a per-request response
// topic. The gateway pushes its event stream on a single events topic.
const (
	// TopicPrefix is the base for all bridge topics.
	TopicPrefix = "tahoma"

	// TopicPrefixRequest is the base for requests to the hub gateway.
	TopicPrefixRequest = "tahoma/request"

	// TopicPrefixResponse is the base for responses from the hub gateway.
	TopicPrefixResponse = "tahoma/response"
)

// Topics provides builders for TaHoma bridge MQTT topics.
// Using these helpers ensures consistent topic naming across the codebase.
//
//	topics := mqtt.Topics{}
//	execTopic := topics.ExecuteRequest()
//	// Returns: "tahoma/request/exec"
type Topics struct{}

// ExecuteRequest returns the topic for command dispatch requests.
//
// Example: tahoma/request/exec
func (Topics) ExecuteRequest() string {
	return fmt.Sprintf("%s/exec", TopicPrefixRequest)
}

// CancelRequest returns the topic for execution cancellation requests.
//
// Example: tahoma/request/cancel
func (Topics) CancelRequest() string {
	return fmt.Sprintf("%s/cancel", TopicPrefixRequest)
}

// DevicesRequest returns the topic for device list requests.
//
// Example: tahoma/request/devices
func (Topics) DevicesRequest() string {
	return fmt.Sprintf("%s/devices", TopicPrefixRequest)
}

// Response returns the per-request response topic for a request ID.
//
// Example: tahoma/response/req-abc123
func (Topics) Response(requestID string) string {
	return fmt.Sprintf("%s/%s", TopicPrefixResponse, requestID)
}

// Events returns the topic carrying the hub's event stream.
//
// Example: tahoma/events
func (Topics) Events() string {
	return fmt.Sprintf("%s/events", TopicPrefix)
}

// BridgeStatus returns the bridge's own availability topic. Used for the
// broker will message and the online announcement.
//
// Example: tahoma/bridge/status
func (Topics) BridgeStatus() string {
	return fmt.Sprintf("%s/bridge/status", TopicPrefix)
}

// AllResponses returns a pattern matching every response topic.
// The bridge subscribes once and demultiplexes by request ID.
//
// Pattern: tahoma/response/+
func (Topics) AllResponses() string {
	return fmt.Sprintf("%s/+", TopicPrefixResponse)
}

// AllTopics returns a pattern matching all bridge topics.
// Use with caution; this receives ALL traffic.
//
// Pattern: tahoma/#
func (Topics) AllTopics() string {
	return "tahoma/#"
}
