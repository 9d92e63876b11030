// Package influxdb provides InfluxDB connectivity for the operator.
//
// It wraps the official influxdb-client-go v2 library and writes three kinds
// of time series:
//   - sensor_readings: metrics sensed by the auto controller each cycle
//   - point_values and category_averages: bulk reader snapshots
//   - operator_actions: one point per operation attempt (via actionlog.InfluxLog)
//
// # Usage
//
//	client, err := influxdb.Connect(ctx, cfg.InfluxDB)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	client.WriteReading("relative_humidity", 63.5, time.Now())
//
// Writes are non-blocking and batched according to batch_size and
// flush_interval; async write errors are delivered to SetOnError.
package influxdb
