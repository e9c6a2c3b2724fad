// Package influxdb provides InfluxDB connectivity for the TaHoma bridge.
//
// It wraps the official influxdb-client-go v2 library with bridge-specific
// write helpers for device state telemetry, refresh timing and command
// dispatch outcomes.
//
// Writes are non-blocking: points are batched and flushed on an interval,
// with asynchronous errors surfaced through an error callback.
//
// # Usage
//
//	client, err := influxdb.Connect(ctx, config.InfluxDBConfig{
//	    Enabled: true,
//	    URL:     "http://localhost:8086",
//	    Token:   token,
//	    Org:     "home",
//	    Bucket:  "tahoma",
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	client.RecordStateValue("io://1234-5678-9012/12345", "core:ClosureState", 50)
//
// The client satisfies the coordinator's telemetry interface, so it can be
// plugged in directly where telemetry is optional.
package influxdb
