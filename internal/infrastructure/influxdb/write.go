package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// Measurement names.
const (
	measurementPinEvent = "pin_event"
	measurementStatus   = "session_status"
)

// Pin event directions, used as the "direction" tag.
const (
	DirectionInbound  = "inbound"  // broker → device (pin write)
	DirectionOutbound = "outbound" // device → broker (pin read)
)

// WritePinEvent records one digital pin value.
//
//	client.WritePinEvent("D5", influxdb.DirectionOutbound, 1, time.Now())
func (c *Client) WritePinEvent(pinName, direction string, value int, at time.Time) {
	if !c.IsConnected() {
		return
	}
	c.writeAPI.WritePoint(pinEventPoint(pinName, direction, value, at))
}

// WriteStatus records a connection or board status transition.
func (c *Client) WriteStatus(sessionID, code string, fatal bool, at time.Time) {
	if !c.IsConnected() {
		return
	}
	c.writeAPI.WritePoint(statusPoint(sessionID, code, fatal, at))
}

func pinEventPoint(pinName, direction string, value int, at time.Time) *write.Point {
	return write.NewPoint(
		measurementPinEvent,
		map[string]string{
			"pin":       pinName,
			"direction": direction,
		},
		map[string]interface{}{
			"value": int64(value),
		},
		at,
	)
}

func statusPoint(sessionID, code string, fatal bool, at time.Time) *write.Point {
	return write.NewPoint(
		measurementStatus,
		map[string]string{
			"status": code,
		},
		map[string]interface{}{
			"session_id": sessionID,
			"fatal":      fatal,
		},
		at,
	)
}
