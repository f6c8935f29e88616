package bridge

import "context"

// State represents a device record's position in the connection lifecycle.
//
// Transitions are monotonic within a record's lifetime:
// Discovered -> Connecting -> Connected -> Disconnected -> removed,
// with the single exception Connecting -> Discovered on a failed attempt.
// A removed device that reappears gets a fresh record.
type State int

// Device lifecycle states.
const (
	// StateDiscovered means the device was seen by a scan sweep and is
	// waiting for a connection attempt.
	StateDiscovered State = iota

	// StateConnecting means a session-establishment attempt is in flight.
	StateConnecting

	// StateConnected means the session is live, its command topics are
	// subscribed and telemetry is flowing.
	StateConnected

	// StateDisconnected means the session reported transport loss; the
	// record is removed on the next driver tick.
	StateDisconnected
)

// String returns a human-readable state name for logging.
func (s State) String() string {
	switch s {
	case StateDiscovered:
		return "discovered"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateDisconnected:
		return "disconnected"
	default:
		return "unknown"
	}
}

// Metric identifies a telemetry reading type. Metric names double as the
// final topic segment for per-device telemetry publishes.
type Metric string

// Telemetry metrics reported by AM43 devices.
const (
	MetricPosition Metric = "position"
	MetricBattery  Metric = "battery"
	MetricLight    Metric = "light"
	MetricRSSI     Metric = "rssi"
)

// Telemetry holds the last known readings for a device. Each field is nil
// until the device first reports that metric.
type Telemetry struct {
	Position *int
	Battery  *int
	Light    *int
}

// TelemetryEvent is a single reading delivered by a device session's
// notification callback. It carries only the device identifier, never a
// record pointer, so handlers must re-resolve the record through the
// registry (the record may have been removed concurrently).
type TelemetryEvent struct {
	Device string
	Metric Metric
	Value  int
}

// Advertisement is a single scan result.
type Advertisement struct {
	// Identifier is the stable device identifier (hardware address).
	Identifier string

	// Name is the advertised local name, if any.
	Name string

	// RSSI is the received signal strength in dBm.
	RSSI int
}

// Session is the transport-facing handle for a single device. The registry
// record exclusively owns its session; no other component keeps a long-lived
// reference.
//
// Connect may block for several seconds. Poll, the Send methods and
// Disconnect must be cheap enough to call from the driver tick.
// Implementations must tolerate Disconnect being called more than once.
type Session interface {
	// Connect establishes the transport session and enables notifications.
	Connect(ctx context.Context) error

	// Disconnect tears the session down. Idempotent.
	Disconnect()

	// Poll services the session once per driver tick (keep-alive reads,
	// pending notification processing).
	Poll()

	// RSSI returns the most recent signal-strength reading in dBm.
	RSSI() int

	// IsDisconnected reports whether the transport has been lost since
	// Connect succeeded.
	IsDisconnected() bool

	// SendOpen commands the cover to fully open.
	SendOpen() error

	// SendClose commands the cover to fully close.
	SendClose() error

	// SendStop halts any movement in progress.
	SendStop() error

	// SendSetPosition moves the cover to a target percentage (0 open,
	// 100 closed). Values outside 0-100 are clamped by the session.
	SendSetPosition(position int) error

	// SetOnTelemetry registers the notification callback. Must be called
	// before Connect.
	SetOnTelemetry(fn func(TelemetryEvent))
}

// Scanner abstracts the discovery sweep.
type Scanner interface {
	// Scan runs a discovery sweep, invoking onFound for each advertisement
	// seen. It returns when the context expires or Stop is called.
	Scan(ctx context.Context, onFound func(Advertisement)) error

	// Stop aborts an in-progress sweep. Best-effort; safe when idle.
	Stop()
}

// Publisher is the message-bus surface the bridge needs. Satisfied by a
// thin adapter over the MQTT client (see cmd/am43bridge).
type Publisher interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
	Subscribe(topic string, qos byte, handler func(topic string, payload []byte) error) error
	Unsubscribe(topic string) error
	IsConnected() bool
}

// Recorder receives every published telemetry reading for persistence.
// Implemented by the SQLite history store and the InfluxDB sink.
type Recorder interface {
	Record(ctx context.Context, device, metric string, value int) error
}

// Logger interface for optional logging support.
// Compatible with logging.Logger and slog.Logger.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger discards all log output. Used when no logger is configured.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}
