// Package api implements the agent's local HTTP and WebSocket surface.
//
// This package provides:
//   - GET /api/v1/health: version, session status and component checks
//   - GET /api/v1/status: the session snapshot
//   - GET /api/v1/pins and /api/v1/pins/{name}: configured pins
//   - GET /api/v1/metrics: runtime, hub and traffic counters
//   - GET /api/v1/events: the session journal, when the database is enabled
//   - GET /api/v1/ws: a WebSocket feed of session events
//
// The API is read-only. Pins are configured by the broker, never over HTTP.
//
// # WebSocket
//
// Clients send {"type":"subscribe","payload":{"channels":[...]}} and then
// receive events on the subscribed channels. The session publishes on
// "status.changed" and "pin.event".
package api
