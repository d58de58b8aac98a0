// Package mqtt provides the broker transport for the Snapper device agent.
//
// This package manages:
//   - One-shot connection attempts that surface the broker's CONNACK code
//   - Message publishing with QoS guarantees
//   - Topic subscriptions, restored after every successful reconnect
//   - Connection health checks
//
// # Architecture
//
// The device talks to a single cloud broker. Reconnect policy (throttling,
// permanent versus transient failures, keepalive backoff) lives in the
// session package, so paho's own auto-reconnect is switched off here.
//
//	session.ConnectionManager → mqtt.Client → paho → broker
//
// # Security Considerations
//
//   - TLS (ssl://, TLS 1.2 minimum) is the default; plain tcp:// connections
//     are reported by the session as insecure
//   - The account key is passed as the MQTT password
//
// # Usage
//
//	client, err := mqtt.New(cfg.MQTT)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	code, err := client.Connect(ctx)
//	if err != nil {
//	    log.Printf("connect refused with code %d: %v", code, err)
//	}
package mqtt
