package mqtt

import (
	"fmt"
)

// maxPayloadSize caps outbound payloads at 1MB. Device snapshot lists are
// the largest payloads the bridge moves and stay well under this; anything
// bigger indicates a bug, not a bigger device estate.
const maxPayloadSize = 1 << 20

// Publish sends a payload to a hub-link topic.
//
// Inputs are validated before the connection state is consulted, so an
// empty topic or out-of-range QoS fails the same way on a disconnected
// client. The call blocks until the broker acknowledges the message or the
// publish timeout elapses.
//
// Retained should be true only for status topics where a late subscriber
// needs the last value; requests and events are never retained.
func (c *Client) Publish(topic string, payload []byte, qos byte, retained bool) error {
	if topic == "" {
		return ErrInvalidTopic
	}
	if qos > maxQoS {
		return ErrInvalidQoS
	}
	if len(payload) > maxPayloadSize {
		return fmt.Errorf("%w: payload size %d exceeds maximum %d bytes", ErrPublishFailed, len(payload), maxPayloadSize)
	}

	if !c.IsConnected() {
		return ErrNotConnected
	}

	token := c.client.Publish(topic, qos, retained, payload)
	if !token.WaitTimeout(defaultPublishTimeout) {
		return fmt.Errorf("%w: timeout after %v", ErrPublishFailed, defaultPublishTimeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("%w: %w", ErrPublishFailed, err)
	}

	return nil
}

// PublishRetained publishes a retained message at the configured QoS.
// Used for the bridge status topic, where the broker must hand the current
// value to anyone who subscribes after the fact.
func (c *Client) PublishRetained(topic string, payload []byte) error {
	return c.Publish(topic, payload, byte(c.cfg.QoS), true)
}
