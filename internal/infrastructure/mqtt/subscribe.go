package mqtt

import (
	"fmt"
)

// Subscribe registers a handler for a topic pattern.
//
// The bridge holds two long-lived subscriptions, the response wildcard
// ("tahoma/response/+") and the event topic, and nothing else, so there is
// no unsubscribe path. Wildcards follow MQTT rules: '+' matches one level,
// '#' the rest of the tree.
//
// Each message invokes the handler on a paho goroutine; handlers that
// block stall the broker's delivery to this client. A returned error is
// logged, not redelivered. Subscriptions are tracked and silently restored
// when the auto-reconnect logic re-establishes the connection.
func (c *Client) Subscribe(topic string, qos byte, handler MessageHandler) error {
	if topic == "" {
		return ErrInvalidTopic
	}
	if qos > maxQoS {
		return ErrInvalidQoS
	}
	if handler == nil {
		return fmt.Errorf("%w: handler cannot be nil", ErrSubscribeFailed)
	}

	if !c.IsConnected() {
		return ErrNotConnected
	}

	// Track first so a reconnect racing this call still restores it.
	c.subMu.Lock()
	c.subscriptions[topic] = subscription{
		topic:   topic,
		qos:     qos,
		handler: handler,
	}
	c.subMu.Unlock()

	token := c.client.Subscribe(topic, qos, c.wrapHandler(handler))
	if !token.WaitTimeout(defaultPublishTimeout) {
		c.forgetSubscription(topic)
		return fmt.Errorf("%w: timeout after %v", ErrSubscribeFailed, defaultPublishTimeout)
	}
	if err := token.Error(); err != nil {
		c.forgetSubscription(topic)
		return fmt.Errorf("%w: %w", ErrSubscribeFailed, err)
	}

	return nil
}

// forgetSubscription drops a tracked subscription after a failed grant.
func (c *Client) forgetSubscription(topic string) {
	c.subMu.Lock()
	delete(c.subscriptions, topic)
	c.subMu.Unlock()
}
