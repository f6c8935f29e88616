// Package config provides configuration loading for the AM43 bridge.
//
// Configuration is read from a YAML file, merged over hardcoded defaults,
// and finally overridden by AM43_* environment variables. The loaded
// configuration is validated before use so startup fails fast on
// misconfiguration rather than misbehaving later.
//
// # Sections
//
//   - mqtt:     broker connection, credentials, QoS, topic prefix
//   - ble:      scan cadence, driver loop tick, device allow-list
//   - database: SQLite telemetry history store
//   - influxdb: optional time-series telemetry sink
//   - logging:  level, format, output
//
// # Usage
//
//	cfg, err := config.Load("configs/config.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
package config
