// Package influxdb provides an optional time-series sink for device telemetry.
//
// When enabled, every telemetry reading the bridge publishes to MQTT is also
// written to InfluxDB as an am43_telemetry point tagged by device and metric.
// Writes are batched and non-blocking so a slow or unreachable InfluxDB never
// stalls the driver loop; write failures surface through the SetOnError
// callback and are logged.
//
// The sink satisfies the same Recorder interface as the SQLite history store,
// so the telemetry publisher fans out to both without knowing either.
package influxdb
