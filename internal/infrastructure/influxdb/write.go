package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// WriteDispenseResult records the outcome of one drug line.
//
// The write is non-blocking; data is batched and sent asynchronously.
func (c *Client) WriteDispenseResult(identity, drugCode, outcome string, volumeML, attempts int) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		"dispense",
		map[string]string{
			"identity":  identity,
			"drug_code": drugCode,
			"outcome":   outcome,
		},
		map[string]interface{}{
			"volume_ml": volumeML,
			"attempts":  attempts,
		},
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}

// WriteDeviceStatus records a device reachability transition.
func (c *Client) WriteDeviceStatus(identity, status string) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		"device_status",
		map[string]string{
			"identity": identity,
			"status":   status,
		},
		map[string]interface{}{
			"value": 1,
		},
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}

// WriteScanStats records the result of one discovery scan cycle.
func (c *Client) WriteScanStats(prefix string, found int, duration time.Duration) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		"scan",
		map[string]string{
			"prefix": prefix,
		},
		map[string]interface{}{
			"found":       found,
			"duration_ms": duration.Milliseconds(),
		},
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}

// WritePoint writes a custom point for measurements that don't fit the
// helpers.
func (c *Client) WritePoint(measurement string, tags map[string]string, fields map[string]interface{}) {
	if !c.IsConnected() {
		return
	}

	c.writeAPI.WritePoint(write.NewPoint(measurement, tags, fields, time.Now()))
}
