// Package history persists device telemetry readings to SQLite.
//
// It mirrors what the bridge publishes to MQTT so recent position, battery
// and light values remain queryable locally after a restart or when the
// broker is unreachable. Rows older than the retention window are pruned
// periodically by the bridge driver.
package history
