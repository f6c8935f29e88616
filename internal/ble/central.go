package ble

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"tinygo.org/x/bluetooth"

	"github.com/adotagarwal/am43/internal/bridge"
)

// deviceNamePrefix matches motors advertising by name rather than by
// service UUID (older firmware omits the UUID from the advertisement).
const deviceNamePrefix = "AM43"

// Logger interface for optional logging support.
// Compatible with logging.Logger and slog.Logger.
type Logger interface {
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Central owns the host Bluetooth adapter. It implements the bridge's
// Scanner interface and acts as the session factory, keeping the
// advertisement bookkeeping (addresses, signal strength) that sessions
// need at connect time.
//
// The adapter-level disconnect handler routes transport-loss events to the
// affected session by address, so a dropped motor is noticed between polls.
type Central struct {
	adapter *bluetooth.Adapter
	logger  Logger

	mu        sync.Mutex
	addresses map[string]bluetooth.Address
	rssi      map[string]int
	sessions  map[string]*Session
}

// NewCentral enables the default host adapter and installs the disconnect
// handler.
//
// Parameters:
//   - logger: Optional logger; nil discards output
//
// Returns:
//   - *Central: Ready central
//   - error: ErrAdapterUnavailable if the adapter cannot be enabled
func NewCentral(logger Logger) (*Central, error) {
	if logger == nil {
		logger = noopLogger{}
	}

	adapter := bluetooth.DefaultAdapter
	if err := adapter.Enable(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrAdapterUnavailable, err)
	}

	c := &Central{
		adapter:   adapter,
		logger:    logger,
		addresses: make(map[string]bluetooth.Address),
		rssi:      make(map[string]int),
		sessions:  make(map[string]*Session),
	}

	adapter.SetConnectHandler(func(device bluetooth.Device, connected bool) {
		if connected {
			return
		}
		c.handleDisconnect(device.Address.String())
	})

	return c, nil
}

// Scan runs one discovery sweep, reporting every AM43 advertisement to
// onFound. It blocks until the context expires or Stop is called.
//
// Devices are matched by the advertised control service UUID or, for
// firmware that omits it, by the AM43 name prefix. Each sighting refreshes
// the cached address and signal strength for the identifier.
func (c *Central) Scan(ctx context.Context, onFound func(bridge.Advertisement)) error {
	stop := make(chan struct{})
	defer close(stop)

	go func() {
		select {
		case <-ctx.Done():
			c.Stop()
		case <-stop:
		}
	}()

	err := c.adapter.Scan(func(_ *bluetooth.Adapter, result bluetooth.ScanResult) {
		name := result.LocalName()
		if !result.HasServiceUUID(serviceUUID) && !strings.HasPrefix(name, deviceNamePrefix) {
			return
		}

		id := result.Address.String()
		rssi := int(result.RSSI)

		c.mu.Lock()
		c.addresses[id] = result.Address
		c.rssi[id] = rssi
		c.mu.Unlock()

		onFound(bridge.Advertisement{
			Identifier: id,
			Name:       name,
			RSSI:       rssi,
		})
	})
	if err != nil {
		return fmt.Errorf("ble scan: %w", err)
	}
	return nil
}

// Stop aborts an in-progress sweep. Safe to call when no sweep is running.
func (c *Central) Stop() {
	if err := c.adapter.StopScan(); err != nil {
		c.logger.Warn("stopping scan", "error", err)
	}
}

// NewSession creates the transport session for a discovered device.
// The returned session is idle until Connect is called.
func (c *Central) NewSession(adv bridge.Advertisement) bridge.Session {
	return &Session{
		central: c,
		id:      adv.Identifier,
	}
}

// addressFor resolves an identifier to its last advertised address.
func (c *Central) addressFor(id string) (bluetooth.Address, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	addr, ok := c.addresses[id]
	return addr, ok
}

// rssiFor returns the last advertised signal strength for an identifier.
func (c *Central) rssiFor(id string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.rssi[id]
}

// registerSession records a connected session so adapter disconnect events
// can reach it.
func (c *Central) registerSession(id string, s *Session) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sessions[id] = s
}

// unregisterSession forgets a released session.
func (c *Central) unregisterSession(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.sessions, id)
}

// handleDisconnect marks the session for an address as disconnected.
// Runs on the adapter's event context.
func (c *Central) handleDisconnect(id string) {
	c.mu.Lock()
	session := c.sessions[id]
	c.mu.Unlock()

	if session == nil {
		return
	}
	c.logger.Info("transport lost", "device", id)
	session.markDisconnected()
}
