// Package influxdb writes projected entity states to InfluxDB.
//
// It wraps the official influxdb-client-go v2 library with connection
// management, batched non-blocking writes and health monitoring. Sink plugs
// the client into the bridge as a state sink.
//
// # Usage
//
//	client, err := influxdb.Connect(cfg.InfluxDB)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	sinks = append(sinks, influxdb.NewSink(client))
//
// # Data Layout
//
// Every state is one point in the entity_state measurement, tagged with
// device_id, key, kind, brand and type. Numbers and booleans go to the
// float "value" field, strings to "state"; "available" is always set.
//
// # Error Handling
//
// Write operations are non-blocking and batch errors are delivered to the
// SetOnError callback. Connection and health check errors are returned
// directly.
package influxdb
