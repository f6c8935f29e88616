// Package mqtt provides MQTT client connectivity for the AM43 bridge.
//
// This package manages:
//   - Connection to the broker with auto-reconnect
//   - Message publishing with QoS guarantees
//   - Topic subscriptions with wildcard support
//   - Last Will and Testament on <prefix>/LWT for offline detection
//   - Connection health monitoring
//
// # Architecture
//
// The bridge uses MQTT as its northbound interface: device telemetry is
// published to per-device topics and device commands arrive as subscribed
// messages. The broker decouples the bridge from its consumers
// (typically Home Assistant or similar).
//
//	AM43 devices ↔ BLE ↔ bridge ↔ MQTT broker ↔ consumers
//
// Topic construction and parsing live in the bridge package (they are part
// of the addressing scheme, not of broker connectivity).
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	err = client.Subscribe("am43/+/set", 1,
//	    func(topic string, payload []byte) error {
//	        log.Printf("Received: %s = %s", topic, payload)
//	        return nil
//	    })
package mqtt
