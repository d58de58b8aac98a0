// Package session runs the device's broker session.
//
// A Session owns everything with per-session state: the connection state
// machine, the topic set, the registration handshake, the single-slot inbox
// and the run loop that ties them to the pin dispatcher.
//
// # Lifecycle
//
//	Start  → wait for network and broker, subscribe, register, restore pins
//	Run    → repeat Step until the context ends or a fatal error occurs
//	Halt   → terminal failure: report Failed until the context ends
//
// Each Step performs, in order: network check, broker check and keepalive,
// a bounded wait for one inbound message, decode and dispatch of that
// message, then polling of due input pins.
//
// # Concurrency
//
// Start, Step, Run and Halt must be called from one goroutine. Message
// delivery from the transport happens on other goroutines and is handed
// over through the Inbox. Snapshot and the Pins accessor are safe to call
// concurrently, for example from the HTTP API.
//
// # Time
//
// All waits go through a Clock, so tests drive backoff and timeouts with a
// fake clock instead of real time.
package session
