package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// Measurements written by the operator.
const (
	MeasurementSensorReadings   = "sensor_readings"
	MeasurementPointValues      = "point_values"
	MeasurementCategoryAverages = "category_averages"
)

// WriteReading records one sensor metric seen by the auto controller.
func (c *Client) WriteReading(metric string, value float64, ts time.Time) {
	c.WritePointWithTime(MeasurementSensorReadings,
		map[string]string{"metric": metric},
		map[string]interface{}{"value": value},
		ts,
	)
}

// WritePointValue records a value read from a console point by the bulk reader.
func (c *Client) WritePointValue(point, category, unit string, value float64, ts time.Time) {
	tags := map[string]string{"point": point}
	if category != "" {
		tags["category"] = category
	}
	if unit != "" {
		tags["unit"] = unit
	}
	c.WritePointWithTime(MeasurementPointValues, tags, map[string]interface{}{"value": value}, ts)
}

// WriteCategoryAverage records the mean of one category in a bulk snapshot.
func (c *Client) WriteCategoryAverage(category string, average float64, samples int, ts time.Time) {
	c.WritePointWithTime(MeasurementCategoryAverages,
		map[string]string{"category": category},
		map[string]interface{}{"average": average, "samples": samples},
		ts,
	)
}

// WritePointWithTime writes a custom point with an explicit timestamp. The
// write is dropped silently when the client is not connected.
func (c *Client) WritePointWithTime(measurement string, tags map[string]string, fields map[string]interface{}, ts time.Time) {
	if !c.IsConnected() {
		return
	}
	c.writeAPI.WritePoint(write.NewPoint(measurement, tags, fields, ts))
}
