package hub

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/greyfold/tahoma-bridge/internal/device"
	"github.com/greyfold/tahoma-bridge/internal/infrastructure/mqtt"
)

// MQTTClient is the subset of the MQTT client used by the hub client.
// Satisfied by *mqtt.Client; tests substitute a fake.
type MQTTClient interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
}

// Client talks to the TaHoma hub gateway over MQTT.
//
// Requests carry a generated request ID and are published to well-known
// request topics; the gateway replies on tahoma/response/<request_id>. The
// client holds one subscription on the response wildcard and demultiplexes
// replies to the goroutine that is waiting for them.
//
// Implements device.HubClient.
type Client struct {
	mqtt    MQTTClient
	topics  mqtt.Topics
	qos     byte
	timeout time.Duration
	logger  device.Logger

	// pendingMu guards both the pending map and the started flag.
	pendingMu sync.Mutex
	pending   map[string]chan response
	started   bool
}

// request is the envelope published to the gateway's request topics.
type request struct {
	RequestID  string          `json:"request_id"`
	DeviceURL  string          `json:"device_url,omitempty"`
	Command    *device.Command `json:"command,omitempty"`
	Originator string          `json:"originator,omitempty"`
	ExecID     string          `json:"exec_id,omitempty"`
}

// response is the envelope received on tahoma/response/<request_id>.
type response struct {
	RequestID string            `json:"request_id"`
	Success   bool              `json:"success"`
	Error     string            `json:"error,omitempty"`
	ExecID    string            `json:"exec_id,omitempty"`
	Devices   []device.Snapshot `json:"devices,omitempty"`
}

// New creates a hub client using the given MQTT connection.
//
// Parameters:
//   - client: Connected MQTT client
//   - qos: QoS level for requests and subscriptions
//   - timeout: How long to wait for a gateway response
func New(client MQTTClient, qos byte, timeout time.Duration) *Client {
	return &Client{
		mqtt:    client,
		qos:     qos,
		timeout: timeout,
		logger:  device.NopLogger(),
		pending: make(map[string]chan response),
	}
}

// SetLogger sets the logger for the hub client.
func (c *Client) SetLogger(logger device.Logger) {
	c.logger = logger
}

// Start subscribes to the response topics. Must be called once before any
// request is issued.
func (c *Client) Start() error {
	if err := c.mqtt.Subscribe(c.topics.AllResponses(), c.qos, c.handleResponse); err != nil {
		return fmt.Errorf("subscribing to hub responses: %w", err)
	}
	c.pendingMu.Lock()
	c.started = true
	c.pendingMu.Unlock()
	return nil
}

// ExecuteCommand asks the gateway to run a command on a device.
// On success it returns the hub-issued execution identifier.
func (c *Client) ExecuteCommand(ctx context.Context, deviceURL string, cmd device.Command, originator string) (string, error) {
	resp, err := c.roundTrip(ctx, c.topics.ExecuteRequest(), request{
		DeviceURL:  deviceURL,
		Command:    &cmd,
		Originator: originator,
	})
	if err != nil {
		return "", err
	}
	if !resp.Success {
		return "", fmt.Errorf("%w: %s", ErrRejected, resp.Error)
	}
	if resp.ExecID == "" {
		return "", fmt.Errorf("%w: response carries no execution id", ErrBadResponse)
	}
	return resp.ExecID, nil
}

// CancelCommand asks the gateway to stop a running execution.
func (c *Client) CancelCommand(ctx context.Context, execID string) error {
	resp, err := c.roundTrip(ctx, c.topics.CancelRequest(), request{ExecID: execID})
	if err != nil {
		return err
	}
	if !resp.Success {
		return fmt.Errorf("%w: %s", ErrRejected, resp.Error)
	}
	return nil
}

// FetchDevices retrieves the full device list from the gateway.
func (c *Client) FetchDevices(ctx context.Context) ([]device.Snapshot, error) {
	resp, err := c.roundTrip(ctx, c.topics.DevicesRequest(), request{})
	if err != nil {
		return nil, err
	}
	if !resp.Success {
		return nil, fmt.Errorf("%w: %s", ErrRejected, resp.Error)
	}
	return resp.Devices, nil
}

// SubscribeEvents registers a handler for the gateway's event stream.
//
// The gateway publishes batches of events as JSON arrays; single-object
// payloads are accepted as well. The handler is invoked once per event.
func (c *Client) SubscribeEvents(handler func(device.Event)) error {
	return c.mqtt.Subscribe(c.topics.Events(), c.qos, func(topic string, payload []byte) error {
		events, err := decodeEvents(payload)
		if err != nil {
			return fmt.Errorf("decoding event payload on %s: %w", topic, err)
		}
		for _, ev := range events {
			handler(ev)
		}
		return nil
	})
}

// decodeEvents parses an event stream payload, which is either a JSON array
// of events or one bare event object.
func decodeEvents(payload []byte) ([]device.Event, error) {
	trimmed := strings.TrimSpace(string(payload))
	if strings.HasPrefix(trimmed, "[") {
		var events []device.Event
		if err := json.Unmarshal(payload, &events); err != nil {
			return nil, err
		}
		return events, nil
	}

	var ev device.Event
	if err := json.Unmarshal(payload, &ev); err != nil {
		return nil, err
	}
	return []device.Event{ev}, nil
}

// roundTrip publishes one request and blocks until its response arrives,
// the context is cancelled, or the configured timeout elapses.
func (c *Client) roundTrip(ctx context.Context, topic string, req request) (response, error) {
	req.RequestID = uuid.NewString()

	ch := make(chan response, 1)
	c.pendingMu.Lock()
	if !c.started {
		c.pendingMu.Unlock()
		return response{}, ErrNotStarted
	}
	c.pending[req.RequestID] = ch
	c.pendingMu.Unlock()
	defer func() {
		c.pendingMu.Lock()
		delete(c.pending, req.RequestID)
		c.pendingMu.Unlock()
	}()

	payload, err := json.Marshal(req)
	if err != nil {
		return response{}, fmt.Errorf("encoding hub request: %w", err)
	}

	if err := c.mqtt.Publish(topic, payload, c.qos, false); err != nil {
		return response{}, fmt.Errorf("publishing hub request: %w", err)
	}

	select {
	case resp := <-ch:
		return resp, nil
	case <-ctx.Done():
		return response{}, fmt.Errorf("awaiting hub response: %w", ctx.Err())
	case <-time.After(c.timeout):
		return response{}, fmt.Errorf("%w after %v", ErrTimeout, c.timeout)
	}
}

// handleResponse routes a response payload to the waiting request, keyed by
// the request ID in the topic's last segment.
func (c *Client) handleResponse(topic string, payload []byte) error {
	idx := strings.LastIndex(topic, "/")
	if idx < 0 || idx == len(topic)-1 {
		return fmt.Errorf("%w: malformed response topic %q", ErrBadResponse, topic)
	}
	requestID := topic[idx+1:]

	c.pendingMu.Lock()
	ch, ok := c.pending[requestID]
	c.pendingMu.Unlock()
	if !ok {
		// Late response after timeout, or another bridge instance's request.
		c.logger.Debug("response for unknown request", "request_id", requestID)
		return nil
	}

	var resp response
	if err := json.Unmarshal(payload, &resp); err != nil {
		return fmt.Errorf("decoding hub response: %w", err)
	}

	select {
	case ch <- resp:
	default:
		// Duplicate response; the first one already won.
	}
	return nil
}
