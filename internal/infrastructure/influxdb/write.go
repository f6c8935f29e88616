package influxdb

import (
	"context"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
)

// telemetryMeasurement is the measurement name for device telemetry points.
const telemetryMeasurement = "am43_telemetry"

// Record writes a single telemetry reading as a point.
//
// Writes are buffered and batched by the underlying write API; failures are
// delivered asynchronously via the SetOnError callback. The context is
// accepted for interface compatibility with the sqlite history store; the
// non-blocking write itself cannot be cancelled.
//
// Parameters:
//   - ctx: Unused (non-blocking write)
//   - device: Device identifier, stored as a tag
//   - metric: Metric name (position, battery, light, rssi), stored as a tag
//   - value: Reading value, stored as the "value" field
//
// Returns:
//   - error: Always nil; async write errors go to the error callback
func (c *Client) Record(_ context.Context, device, metric string, value int) error {
	if !c.IsConnected() {
		return ErrNotConnected
	}

	point := influxdb2.NewPoint(
		telemetryMeasurement,
		map[string]string{
			"device": device,
			"metric": metric,
		},
		map[string]any{
			"value": value,
		},
		time.Now().UTC(),
	)

	c.writeAPI.WritePoint(point)
	return nil
}
