package ble

import (
	"context"
	"fmt"
	"sync"
	"time"

	"tinygo.org/x/bluetooth"

	"github.com/adotagarwal/am43/internal/bridge"
)

// queryInterval is how often Poll sends the next status query. The motor
// pushes movement updates on its own; periodic queries keep battery and
// light fresh and double as a keep-alive.
const queryInterval = 15 * time.Second

// queryRotation is the order status queries cycle through.
var queryRotation = []byte{cmdPosition, cmdBattery, cmdLight}

// Session is the transport handle for one AM43 motor. It implements
// bridge.Session.
//
// A session is created at discovery, connected by the driver loop and
// released exactly once at removal. All methods are safe for concurrent
// use; the write path never holds the session lock across a GATT call.
type Session struct {
	central *Central
	id      string

	mu           sync.Mutex
	device       bluetooth.Device
	control      bluetooth.DeviceCharacteristic
	connected    bool
	disconnected bool
	released     bool
	onTelemetry  func(bridge.TelemetryEvent)
	lastQuery    time.Time
	queryIndex   int
}

// SetOnTelemetry registers the notification callback. Must be called
// before Connect.
func (s *Session) SetOnTelemetry(fn func(bridge.TelemetryEvent)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onTelemetry = fn
}

// Connect establishes the GATT session: connect by the last advertised
// address, resolve the control service and characteristic, enable
// notifications and issue the initial status queries.
//
// The underlying stack manages its own connection timeout; the context is
// checked for cancellation before the attempt starts.
//
// Returns:
//   - error: ErrAddressUnknown, ErrServiceNotFound,
//     ErrCharacteristicNotFound, or a transport error
func (s *Session) Connect(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	addr, ok := s.central.addressFor(s.id)
	if !ok {
		return fmt.Errorf("%w: %s", ErrAddressUnknown, s.id)
	}

	device, err := s.central.adapter.Connect(addr, bluetooth.ConnectionParams{})
	if err != nil {
		return fmt.Errorf("connecting to %s: %w", s.id, err)
	}

	services, err := device.DiscoverServices([]bluetooth.UUID{serviceUUID})
	if err != nil || len(services) == 0 {
		device.Disconnect() //nolint:errcheck // Best effort cleanup on error path
		if err != nil {
			return fmt.Errorf("discovering services on %s: %w", s.id, err)
		}
		return fmt.Errorf("%w: %s", ErrServiceNotFound, s.id)
	}

	chars, err := services[0].DiscoverCharacteristics([]bluetooth.UUID{characteristicUUID})
	if err != nil || len(chars) == 0 {
		device.Disconnect() //nolint:errcheck // Best effort cleanup on error path
		if err != nil {
			return fmt.Errorf("discovering characteristics on %s: %w", s.id, err)
		}
		return fmt.Errorf("%w: %s", ErrCharacteristicNotFound, s.id)
	}
	control := chars[0]

	if err := control.EnableNotifications(s.handleNotification); err != nil {
		device.Disconnect() //nolint:errcheck // Best effort cleanup on error path
		return fmt.Errorf("enabling notifications on %s: %w", s.id, err)
	}

	s.mu.Lock()
	s.device = device
	s.control = control
	s.connected = true
	s.disconnected = false
	s.lastQuery = time.Now()
	s.mu.Unlock()

	s.central.registerSession(s.id, s)

	// Prime the telemetry cache; responses arrive as notifications.
	for _, cmd := range queryRotation {
		if err := s.write(encodeQuery(cmd)); err != nil {
			return fmt.Errorf("initial status query on %s: %w", s.id, err)
		}
	}

	return nil
}

// Disconnect releases the session. Idempotent; the first call closes the
// transport and unregisters from the central, later calls are no-ops.
func (s *Session) Disconnect() {
	s.mu.Lock()
	if s.released {
		s.mu.Unlock()
		return
	}
	s.released = true
	wasConnected := s.connected
	s.connected = false
	s.disconnected = true
	device := s.device
	s.mu.Unlock()

	if wasConnected {
		device.Disconnect() //nolint:errcheck // Transport may already be gone
	}
	s.central.unregisterSession(s.id)
}

// Poll services the session once per driver tick. When the query interval
// has elapsed it sends the next status query in rotation; a write failure
// marks the session disconnected.
func (s *Session) Poll() {
	s.mu.Lock()
	if !s.connected || s.disconnected || time.Since(s.lastQuery) < queryInterval {
		s.mu.Unlock()
		return
	}
	cmd := queryRotation[s.queryIndex%len(queryRotation)]
	s.queryIndex++
	s.lastQuery = time.Now()
	s.mu.Unlock()

	// write handles the disconnect marking on failure.
	_ = s.write(encodeQuery(cmd)) //nolint:errcheck // Failure surfaces via IsDisconnected
}

// RSSI returns the last advertised signal strength in dBm.
func (s *Session) RSSI() int {
	return s.central.rssiFor(s.id)
}

// IsDisconnected reports whether the transport has been lost.
func (s *Session) IsDisconnected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.disconnected
}

// SendOpen commands the motor to fully open.
func (s *Session) SendOpen() error {
	return s.write(encodeMove(moveOpen))
}

// SendClose commands the motor to fully close.
func (s *Session) SendClose() error {
	return s.write(encodeMove(moveClose))
}

// SendStop halts any movement in progress.
func (s *Session) SendStop() error {
	return s.write(encodeMove(moveStop))
}

// SendSetPosition moves the motor to a target percentage (0 open, 100
// closed). Out-of-range values are clamped.
func (s *Session) SendSetPosition(position int) error {
	return s.write(encodeSetPosition(position))
}

// write sends one frame on the control characteristic. A transport error
// marks the session disconnected so the driver loop removes it.
func (s *Session) write(frame []byte) error {
	s.mu.Lock()
	if !s.connected || s.disconnected {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrNotConnected, s.id)
	}
	control := s.control
	s.mu.Unlock()

	if _, err := control.WriteWithoutResponse(frame); err != nil {
		s.markDisconnected()
		return fmt.Errorf("writing to %s: %w", s.id, err)
	}
	return nil
}

// handleNotification decodes a control-characteristic notification and
// forwards any status reading to the telemetry callback. Runs on the
// adapter's notification context; the callback carries only the device
// identifier.
func (s *Session) handleNotification(buf []byte) {
	cmd, value, ok := decodeNotification(buf)
	if !ok {
		return
	}

	var metric bridge.Metric
	switch cmd {
	case cmdBattery:
		metric = bridge.MetricBattery
	case cmdPosition:
		metric = bridge.MetricPosition
	case cmdLight:
		metric = bridge.MetricLight
	default:
		return
	}

	s.mu.Lock()
	callback := s.onTelemetry
	s.mu.Unlock()

	if callback != nil {
		callback(bridge.TelemetryEvent{
			Device: s.id,
			Metric: metric,
			Value:  value,
		})
	}
}

// markDisconnected records transport loss for the driver loop to observe.
func (s *Session) markDisconnected() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.connected = false
	s.disconnected = true
}
