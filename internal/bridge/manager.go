package bridge

import (
	"context"
	"sync"
	"time"
)

// Driver loop timing defaults.
const (
	// defaultTickInterval is the driver loop cadence.
	defaultTickInterval = 500 * time.Millisecond

	// defaultScanInterval is how often a discovery sweep starts.
	defaultScanInterval = 60 * time.Second

	// defaultScanDuration bounds a single discovery sweep.
	defaultScanDuration = 10 * time.Second

	// busRetryDelay gates sub-binding retries while the bus is down.
	busRetryDelay = 5 * time.Second
)

// Options configures a Manager.
type Options struct {
	// Bus is the message bus client.
	Bus Publisher

	// Scanner runs discovery sweeps.
	Scanner Scanner

	// NewSession creates the transport session for a discovered device.
	NewSession func(adv Advertisement) Session

	// AllowedDevices restricts registration to the listed identifiers.
	// Empty means every discovered device is registered.
	AllowedDevices []string

	// TickInterval is the driver loop cadence. Zero uses the default.
	TickInterval time.Duration

	// ScanInterval is the discovery sweep cadence. Zero uses the default.
	ScanInterval time.Duration

	// ScanDuration bounds one sweep. Zero uses the default.
	ScanDuration time.Duration

	// Topics supplies the configured topic prefix.
	Topics Topics

	// QoS is the bus QoS level for publishes and subscriptions.
	QoS byte

	// Recorders are optional telemetry history sinks.
	Recorders []Recorder

	// Logger is optional; nil discards output.
	Logger Logger
}

// Manager owns the bridge core: the device registry, the per-device
// connection state machine, the discovery scanner cadence, the command
// router and the telemetry publisher.
//
// All device work happens in a single cooperative driver loop at a fixed
// tick cadence. Per tick: maybe start a discovery sweep, move at most one
// Discovered device into Connecting (connecting is the slow operation and
// the shared radio handles one establishment at a time), poll every
// Connected session, then remove records observed Disconnected. Scan
// results and session notifications arrive on their own callback contexts
// and touch shared state only through the registry lock.
type Manager struct {
	opts      Options
	registry  *Registry
	telemetry *TelemetryPublisher
	router    *Router
	logger    Logger

	allowed map[string]struct{}

	// mu guards the scan bookkeeping below.
	mu           sync.Mutex
	scanning     bool
	lastScan     time.Time
	updateWindow bool

	restartCh chan struct{}

	started  bool
	stopOnce sync.Once
	done     chan struct{}
	wg       sync.WaitGroup
}

// NewManager creates a bridge manager from options. Call Start to begin
// the driver loop.
func NewManager(opts Options) *Manager {
	if opts.TickInterval <= 0 {
		opts.TickInterval = defaultTickInterval
	}
	if opts.ScanInterval <= 0 {
		opts.ScanInterval = defaultScanInterval
	}
	if opts.ScanDuration <= 0 {
		opts.ScanDuration = defaultScanDuration
	}
	logger := opts.Logger
	if logger == nil {
		logger = noopLogger{}
	}

	allowed := make(map[string]struct{}, len(opts.AllowedDevices))
	for _, id := range opts.AllowedDevices {
		allowed[id] = struct{}{}
	}

	registry := NewRegistry()
	telemetry := NewTelemetryPublisher(registry, opts.Bus, opts.Topics, opts.QoS, opts.Recorders, logger)

	m := &Manager{
		opts:      opts,
		registry:  registry,
		telemetry: telemetry,
		logger:    logger,
		allowed:   allowed,
		restartCh: make(chan struct{}, 1),
		done:      make(chan struct{}),
	}
	m.router = NewRouter(registry, opts.Topics, m.RequestRestart, logger)
	return m
}

// Registry exposes the device registry for inspection.
func (m *Manager) Registry() *Registry {
	return m.registry
}

// Restart returns a channel that receives one signal when the restart
// command has finished tearing devices down. The process is expected to
// exit and be restarted by its supervisor.
func (m *Manager) Restart() <-chan struct{} {
	return m.restartCh
}

// Start subscribes the broadcast and restart command topics and launches
// the driver loop.
//
// Parameters:
//   - ctx: Cancels in-flight connect attempts on shutdown
//
// Returns:
//   - error: ErrAlreadyStarted, or a subscribe failure
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.started {
		m.mu.Unlock()
		return ErrAlreadyStarted
	}
	m.started = true
	m.mu.Unlock()

	baseTopics := []string{
		m.opts.Topics.AllSet(),
		m.opts.Topics.AllSetPosition(),
		m.opts.Topics.Restart(),
	}
	for _, topic := range baseTopics {
		if err := m.opts.Bus.Subscribe(topic, m.opts.QoS, m.router.HandleMessage); err != nil {
			return err
		}
	}

	m.wg.Add(1)
	go m.run(ctx)

	m.logger.Info("bridge started",
		"tick_interval", m.opts.TickInterval,
		"scan_interval", m.opts.ScanInterval)
	return nil
}

// Stop halts the driver loop and tears down every registered device,
// publishing offline status and releasing each session. Idempotent.
func (m *Manager) Stop() {
	m.stopOnce.Do(func() {
		close(m.done)
		m.wg.Wait()
		m.teardownAll()
		m.logger.Info("bridge stopped")
	})
}

// RequestRestart tears down every device and signals the restart channel.
// Invoked by the router on the restart command; teardown failures are
// best-effort and never block the restart.
func (m *Manager) RequestRestart() {
	m.teardownAll()
	select {
	case m.restartCh <- struct{}{}:
	default:
	}
}

// SetUpdateWindow marks a firmware-update window active or ended. While
// active, new discovery sweeps are suppressed and any in-progress sweep is
// stopped, since scanning and firmware transfer share the radio.
func (m *Manager) SetUpdateWindow(active bool) {
	m.mu.Lock()
	m.updateWindow = active
	scanning := m.scanning
	m.mu.Unlock()

	if active && scanning {
		m.opts.Scanner.Stop()
	}
}

// run is the driver loop.
func (m *Manager) run(ctx context.Context) {
	defer m.wg.Done()

	ticker := time.NewTicker(m.opts.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-m.done:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.tick(ctx)
		}
	}
}

// tick runs one driver iteration: scan cadence, one connect, poll all,
// then the disconnect-removal batch.
func (m *Manager) tick(ctx context.Context) {
	m.maybeScan(ctx)
	m.connectNext(ctx)
	removals := m.pollConnected()
	for _, id := range removals {
		m.teardown(id)
	}
}

// maybeScan starts a discovery sweep when the interval has elapsed, no
// sweep is in progress and no firmware-update window is active. The sweep
// itself runs on its own goroutine so a slow scan never stalls the tick.
func (m *Manager) maybeScan(ctx context.Context) {
	m.mu.Lock()
	if m.scanning || m.updateWindow || time.Since(m.lastScan) < m.opts.ScanInterval {
		m.mu.Unlock()
		return
	}
	m.scanning = true
	m.lastScan = time.Now()
	m.mu.Unlock()

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()

		scanCtx, cancel := context.WithTimeout(ctx, m.opts.ScanDuration)
		defer cancel()

		if err := m.opts.Scanner.Scan(scanCtx, m.handleAdvertisement); err != nil {
			m.logger.Warn("discovery sweep failed", "error", err)
		}

		m.mu.Lock()
		m.scanning = false
		m.mu.Unlock()
	}()
}

// handleAdvertisement registers a newly sighted device. Runs on the scan
// subsystem's callback context.
func (m *Manager) handleAdvertisement(adv Advertisement) {
	if len(m.allowed) > 0 {
		if _, ok := m.allowed[adv.Identifier]; !ok {
			return
		}
	}

	session := m.opts.NewSession(adv)
	// The callback carries only the identifier; the telemetry publisher
	// re-resolves the record, so a removed device cannot be dereferenced.
	session.SetOnTelemetry(m.telemetry.HandleEvent)

	rec := &Record{
		Identifier: adv.Identifier,
		Session:    session,
		State:      StateDiscovered,
	}
	if !m.registry.Insert(rec) {
		// Already registered. Drop the duplicate sighting without
		// touching the existing record.
		return
	}

	m.logger.Info("device discovered",
		"device", adv.Identifier, "name", adv.Name, "rssi", adv.RSSI)
}

// connectNext moves at most one Discovered device into Connecting and
// attempts session establishment. One connect per tick bounds worst-case
// tick latency, since establishment is the slow operation.
func (m *Manager) connectNext(ctx context.Context) {
	var id string
	var session Session

	for _, candidate := range m.registry.Snapshot() {
		m.registry.WithRecord(candidate, func(rec *Record) {
			if rec.State == StateDiscovered {
				rec.State = StateConnecting
				id = rec.Identifier
				session = rec.Session
			}
		})
		if session != nil {
			break
		}
	}
	if session == nil {
		return
	}

	// The blocking connect runs without the registry lock so discovery
	// and notification callbacks proceed concurrently.
	err := session.Connect(ctx)

	if err != nil {
		m.logger.Warn("connect failed", "device", id, "error", err)
		m.registry.WithRecord(id, func(rec *Record) {
			rec.State = StateDiscovered
		})
		return
	}

	resolved := m.registry.WithRecord(id, func(rec *Record) {
		rec.State = StateConnected
	})
	if !resolved {
		// Record was removed while connecting; release the orphaned
		// session rather than leak it.
		session.Disconnect()
		return
	}

	m.logger.Info("device connected", "device", id)
	m.openBinding(id)
}

// openBinding subscribes a device's command topics and publishes its
// retained online status. On failure the binding stays inactive and is
// retried after the gate expires.
func (m *Manager) openBinding(id string) {
	err := m.opts.Bus.Subscribe(m.opts.Topics.Set(id), m.opts.QoS, m.router.HandleMessage)
	if err == nil {
		err = m.opts.Bus.Subscribe(m.opts.Topics.SetPosition(id), m.opts.QoS, m.router.HandleMessage)
	}
	if err == nil {
		err = m.telemetry.PublishAvailability(id, true)
	}

	if err != nil {
		m.logger.Warn("bus binding failed", "device", id, "error", err)
		m.registry.WithRecord(id, func(rec *Record) {
			rec.bindingActive = false
			rec.NextRetryAt = time.Now().Add(busRetryDelay)
		})
		return
	}

	m.registry.WithRecord(id, func(rec *Record) {
		rec.bindingActive = true
	})
}

// pollConnected services every Connected session: one Poll call, an
// unconditional RSSI publish, a binding retry when gated, and disconnect
// detection. Records observed Disconnected are returned for removal so
// structural mutation never happens during snapshot iteration.
func (m *Manager) pollConnected() []string {
	var removals []string

	for _, id := range m.registry.Snapshot() {
		var session Session
		var state State
		var bindingActive bool
		var retryAt time.Time

		exists := m.registry.WithRecord(id, func(rec *Record) {
			session = rec.Session
			state = rec.State
			bindingActive = rec.bindingActive
			retryAt = rec.NextRetryAt
		})
		if !exists {
			continue
		}

		switch state {
		case StateConnected:
			session.Poll()

			// Published every tick regardless of change; duplicate
			// values are expected by downstream consumers.
			m.telemetry.PublishRSSI(id, session.RSSI())

			if !bindingActive && time.Now().After(retryAt) {
				m.openBinding(id)
			}

			if session.IsDisconnected() {
				m.registry.WithRecord(id, func(rec *Record) {
					rec.State = StateDisconnected
				})
				removals = append(removals, id)
			}

		case StateDisconnected:
			// Marked by a notification callback between ticks.
			removals = append(removals, id)
		}
	}

	return removals
}

// teardown releases one device: retained offline publish (best-effort,
// skipped when the bus is down since the broker's last-will covers
// ungraceful loss), command-topic unsubscribe, session disconnect and
// registry removal. The released flag makes the whole path run exactly
// once even when the tick and a notification callback race.
func (m *Manager) teardown(id string) {
	var session Session
	var bindingActive bool
	alreadyReleased := true

	exists := m.registry.WithRecord(id, func(rec *Record) {
		if rec.released {
			return
		}
		rec.released = true
		rec.State = StateDisconnected
		alreadyReleased = false
		session = rec.Session
		bindingActive = rec.bindingActive
	})
	if !exists || alreadyReleased {
		return
	}

	if bindingActive && m.opts.Bus.IsConnected() {
		if err := m.telemetry.PublishAvailability(id, false); err != nil {
			m.logger.Debug("offline publish failed", "device", id, "error", err)
		}
	}
	if bindingActive {
		if err := m.opts.Bus.Unsubscribe(m.opts.Topics.Set(id)); err != nil {
			m.logger.Debug("unsubscribe failed", "device", id, "error", err)
		}
		if err := m.opts.Bus.Unsubscribe(m.opts.Topics.SetPosition(id)); err != nil {
			m.logger.Debug("unsubscribe failed", "device", id, "error", err)
		}
	}

	session.Disconnect()
	m.registry.Remove(id)

	m.logger.Info("device removed", "device", id)
}

// teardownAll releases every registered device.
func (m *Manager) teardownAll() {
	for _, id := range m.registry.Snapshot() {
		m.teardown(id)
	}
}
