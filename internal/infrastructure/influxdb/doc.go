// Package influxdb provides optional InfluxDB telemetry for the device agent.
//
// It wraps the official influxdb-client-go v2 library. When enabled, the
// session records every pin value it writes or reports and every status
// transition, so pin activity can be graphed alongside broker traffic.
// Points are tagged with the device's client id once, at Connect.
//
// # Usage
//
//	client, err := influxdb.Connect(cfg.InfluxDB, id.ClientID)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	client.WritePinEvent("D5", influxdb.DirectionOutbound, 1, time.Now())
//
// # Thread Safety
//
// All methods are safe for concurrent use from multiple goroutines.
// Writes are non-blocking and batched (batch_size, flush_interval); batch
// errors are delivered to the SetOnError callback.
package influxdb
