package bridge

import "fmt"

// Topic verbs and reserved targets in the <prefix>/<target>/<verb> scheme.
const (
	verbSet         = "set"
	verbSetPosition = "set_position"
	verbAvailable   = "available"

	targetAll     = "all"
	targetRestart = "restart"
)

// Availability payloads.
const (
	availabilityOnline  = "online"
	availabilityOffline = "offline"
)

// Topics builds the bridge's MQTT topic strings from a configured prefix.
//
// Published:
//   - <prefix>/<id>/available   online|offline (retained)
//   - <prefix>/<id>/position    0-100 (non-retained)
//   - <prefix>/<id>/battery     0-100 (non-retained)
//   - <prefix>/<id>/light       0-255 (non-retained)
//   - <prefix>/<id>/rssi        signed dBm (non-retained)
//
// Subscribed:
//   - <prefix>/<id-or-all>/set           open|close|stop
//   - <prefix>/<id-or-all>/set_position  integer string
//   - <prefix>/restart                   payload ignored
type Topics struct {
	Prefix string
}

// Availability returns the retained online/offline topic for a device.
func (t Topics) Availability(id string) string {
	return fmt.Sprintf("%s/%s/%s", t.Prefix, id, verbAvailable)
}

// Metric returns the telemetry topic for a device and metric.
func (t Topics) Metric(id string, m Metric) string {
	return fmt.Sprintf("%s/%s/%s", t.Prefix, id, m)
}

// Set returns a device's movement-command topic.
func (t Topics) Set(id string) string {
	return fmt.Sprintf("%s/%s/%s", t.Prefix, id, verbSet)
}

// SetPosition returns a device's position-command topic.
func (t Topics) SetPosition(id string) string {
	return fmt.Sprintf("%s/%s/%s", t.Prefix, id, verbSetPosition)
}

// AllSet returns the broadcast movement-command topic.
func (t Topics) AllSet() string {
	return t.Set(targetAll)
}

// AllSetPosition returns the broadcast position-command topic.
func (t Topics) AllSetPosition() string {
	return t.SetPosition(targetAll)
}

// Restart returns the process-restart command topic.
func (t Topics) Restart() string {
	return fmt.Sprintf("%s/%s", t.Prefix, targetRestart)
}
