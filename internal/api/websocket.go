package api

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/greyfold/tahoma-bridge/internal/infrastructure/config"
	"github.com/greyfold/tahoma-bridge/internal/infrastructure/logging"
)

// WebSocket message types.
const (
	WSTypeSubscribe   = "subscribe"
	WSTypeUnsubscribe = "unsubscribe"
	WSTypePing        = "ping"
	WSTypePong        = "pong"
	WSTypeEvent       = "event"
	WSTypeResponse    = "response"
	WSTypeError       = "error"

	// wsSendBufferSize is the per-client outbound buffer. A full buffer
	// means a slow consumer; the bridge drops that client's events
	// rather than stalling the broadcast.
	wsSendBufferSize = 256
)

// WSMessage is the frame exchanged with WebSocket clients.
type WSMessage struct {
	Type      string `json:"type"`
	ID        string `json:"id,omitempty"`
	EventType string `json:"event_type,omitempty"`
	Timestamp string `json:"timestamp,omitempty"`
	Payload   any    `json:"payload,omitempty"`
}

// WSSubscribePayload names the channels a client wants to follow.
type WSSubscribePayload struct {
	Channels []string `json:"channels"`
}

// Hub fans coordinator notifications out to WebSocket clients.
//
// Clients subscribe to the coordinator's channels
// ("execution.state_changed", "device.state_changed") and receive every
// payload broadcast on those channels while connected.
type Hub struct {
	cfg     config.WebSocketConfig
	logger  *logging.Logger
	clients map[*WSClient]struct{}
	mu      sync.RWMutex
}

// WSClient is one connected WebSocket peer.
type WSClient struct {
	hub           *Hub
	conn          *websocket.Conn
	send          chan []byte
	subscriptions map[string]struct{}
	mu            sync.RWMutex
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(_ *http.Request) bool {
		// Origin checking is handled by CORS middleware
		return true
	},
}

// NewHub creates an empty hub.
func NewHub(cfg config.WebSocketConfig, logger *logging.Logger) *Hub {
	return &Hub{
		cfg:     cfg,
		logger:  logger,
		clients: make(map[*WSClient]struct{}),
	}
}

// Run blocks until the context is cancelled, then disconnects everyone.
func (h *Hub) Run(ctx context.Context) {
	<-ctx.Done()
	h.closeAll()
}

// Register adds a client to the hub.
func (h *Hub) Register(cl *WSClient) {
	h.mu.Lock()
	h.clients[cl] = struct{}{}
	h.mu.Unlock()
	h.logger.Debug("ws client joined", "clients", h.ClientCount())
}

// Unregister removes a client. Only the goroutine that actually removes
// the client from the map closes its send channel, so a disconnect
// racing shutdown cannot double-close.
func (h *Hub) Unregister(cl *WSClient) {
	h.mu.Lock()
	_, existed := h.clients[cl]
	delete(h.clients, cl)
	h.mu.Unlock()

	if existed {
		close(cl.send)
	}
	h.logger.Debug("ws client left", "clients", h.ClientCount())
}

// Broadcast delivers a payload to every client subscribed to channel.
// The client list is snapshotted under the hub lock and released before
// any per-client work; hub and client locks are never held together.
func (h *Hub) Broadcast(channel string, payload any) {
	frame := WSMessage{
		Type:      WSTypeEvent,
		EventType: channel,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Payload:   payload,
	}

	raw, err := json.Marshal(frame)
	if err != nil {
		h.logger.Error("marshal of broadcast frame failed", "error", err)
		return
	}

	h.mu.RLock()
	targets := make([]*WSClient, 0, len(h.clients))
	for cl := range h.clients {
		targets = append(targets, cl)
	}
	h.mu.RUnlock()

	delivered := 0
	for _, cl := range targets {
		if cl.isSubscribed(channel) {
			cl.trySend(raw)
			delivered++
		}
	}
	if delivered > 0 {
		h.logger.Debug("event broadcast", "channel", channel, "recipients", delivered)
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// closeAll drops every client so their writePump goroutines exit.
func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for cl := range h.clients {
		close(cl.send)
		if cl.conn != nil {
			cl.conn.Close()
		}
		delete(h.clients, cl)
	}
}

// handleWebSocket upgrades the connection and starts the client pumps.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("websocket upgrade failed", "error", err)
		return
	}

	cl := &WSClient{
		hub:           s.hub,
		conn:          conn,
		send:          make(chan []byte, wsSendBufferSize),
		subscriptions: make(map[string]struct{}),
	}

	s.hub.Register(cl)

	go cl.writePump(s.wsCfg)
	go cl.readPump(s.wsCfg)
}

// readPump consumes frames from the peer until the connection dies.
func (c *WSClient) readPump(cfg config.WebSocketConfig) {
	defer func() {
		c.hub.Unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(int64(cfg.MaxMessageSize))

	liveness := time.Duration(cfg.PingInterval+cfg.PongTimeout) * time.Second
	//nolint:errcheck // Best-effort deadline on connection setup
	c.conn.SetReadDeadline(time.Now().Add(liveness))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(liveness))
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.hub.logger.Warn("ws read error", "error", err)
			} else {
				c.hub.logger.Debug("ws closed", "error", err)
			}
			return
		}
		// Any inbound frame counts as liveness, even from clients that
		// ignore protocol-level pings.
		//nolint:errcheck // Best-effort deadline reset
		c.conn.SetReadDeadline(time.Now().Add(liveness))
		c.handleFrame(raw)
	}
}

// writePump drains the send channel to the peer and keeps it alive with
// periodic pings.
func (c *WSClient) writePump(cfg config.WebSocketConfig) {
	ticker := time.NewTicker(time.Duration(cfg.PingInterval) * time.Second)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	writeWait := time.Duration(cfg.PongTimeout) * time.Second

	for {
		select {
		case raw, ok := <-c.send:
			if !ok {
				// Hub closed the channel
				//nolint:errcheck // Best-effort close message
				c.conn.WriteMessage(websocket.CloseMessage, nil)
				return
			}
			//nolint:errcheck // Best-effort deadline; write error caught below
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, raw); err != nil {
				return
			}
		case <-ticker.C:
			//nolint:errcheck // Best-effort deadline; ping error caught below
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// handleFrame dispatches one inbound frame.
func (c *WSClient) handleFrame(raw []byte) {
	var frame WSMessage
	if err := json.Unmarshal(raw, &frame); err != nil {
		c.sendError("", "invalid JSON message")
		return
	}

	switch frame.Type {
	case WSTypeSubscribe:
		c.updateSubscriptions(frame, true)
	case WSTypeUnsubscribe:
		c.updateSubscriptions(frame, false)
	case WSTypePing:
		c.sendResponse(frame.ID, WSTypePong, nil)
	default:
		c.sendError(frame.ID, "unknown message type: "+frame.Type)
	}
}

// updateSubscriptions applies a subscribe or unsubscribe request and
// acknowledges it.
func (c *WSClient) updateSubscriptions(frame WSMessage, add bool) {
	payloadBytes, err := json.Marshal(frame.Payload)
	if err != nil {
		c.sendError(frame.ID, "invalid payload")
		return
	}

	var sub WSSubscribePayload
	if err := json.Unmarshal(payloadBytes, &sub); err != nil {
		c.sendError(frame.ID, "invalid subscribe payload")
		return
	}

	c.mu.Lock()
	for _, ch := range sub.Channels {
		if add {
			c.subscriptions[ch] = struct{}{}
		} else {
			delete(c.subscriptions, ch)
		}
	}
	c.mu.Unlock()

	if add {
		c.hub.logger.Info("ws client subscribed", "channels", sub.Channels)
		c.sendResponse(frame.ID, WSTypeResponse, map[string]any{"subscribed": sub.Channels})
		return
	}
	c.sendResponse(frame.ID, WSTypeResponse, map[string]any{"unsubscribed": sub.Channels})
}

// trySend queues data for the client without blocking. A closed channel
// (client disconnected mid-broadcast) or a full buffer drops the frame.
func (c *WSClient) trySend(raw []byte) {
	defer func() {
		recover() //nolint:errcheck // Absorb send-on-closed-channel panic
	}()

	select {
	case c.send <- raw:
	default:
		// Slow client, drop
	}
}

// isSubscribed checks if the client is subscribed to a channel.
func (c *WSClient) isSubscribed(channel string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.subscriptions[channel]
	return ok
}

// sendResponse marshals and queues a reply frame. Goes through trySend
// so shutdown races stay harmless.
func (c *WSClient) sendResponse(id, msgType string, payload any) {
	frame := WSMessage{
		Type:      msgType,
		ID:        id,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Payload:   payload,
	}
	raw, err := json.Marshal(frame)
	if err != nil {
		return
	}
	c.trySend(raw)
}

// sendError queues an error frame.
func (c *WSClient) sendError(id, message string) {
	c.sendResponse(id, WSTypeError, map[string]string{"message": message})
}
