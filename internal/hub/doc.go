// Package hub implements the MQTT transport to the TaHoma hub gateway.
//
// The gateway exposes three request topics (device list, command dispatch,
// cancellation) and answers every request on a per-request response topic:
//
//	bridge                          gateway
//	  │  tahoma/request/exec          │
//	  ├──────────────────────────────▶│
//	  │  tahoma/response/<request_id> │
//	  │◀──────────────────────────────┤
//	  │                               │
//	  │  tahoma/events (stream)       │
//	  │◀──────────────────────────────┤
//
// Request IDs are generated per call; a single wildcard subscription on
// tahoma/response/+ demultiplexes responses back to the calling goroutine.
// Responses arriving after the caller gave up are discarded.
//
// The event stream carries execution progress and device state changes. It
// is decoded into device.Event values and handed to the registered handler;
// correlation against dispatched commands happens in the device package.
package hub
