// Package bridge implements the AM43 device core: registry, connection
// state machine, discovery cadence, command routing and telemetry
// publishing.
//
// The design centers on a single cooperative driver loop (Manager.tick)
// plus two asynchronous callback contexts: scan results and session
// notifications. The device registry is the only shared mutable state;
// every access from any context goes through its mutex, and critical
// sections cover map bookkeeping only, never a blocking session or bus
// call. Callbacks carry device identifiers rather than record pointers and
// re-resolve through the registry at use time, so concurrent removal can
// never leave a dangling reference.
//
// Transport and bus concerns stay behind small interfaces (Session,
// Scanner, Publisher); internal/ble and the MQTT adapter in cmd/am43bridge
// provide the production implementations.
package bridge
