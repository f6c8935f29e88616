package bridge

import (
	"context"
	"sync"
)

// MockBus implements Publisher for testing.
type MockBus struct {
	mu           sync.Mutex
	published    []mockPublish
	subscribed   []string
	unsubscribed []string
	handlers     map[string]func(topic string, payload []byte) error
	connected    bool
	publishErr   error
	subscribeErr error
}

type mockPublish struct {
	Topic    string
	Payload  string
	QoS      byte
	Retained bool
}

func NewMockBus() *MockBus {
	return &MockBus{
		connected: true,
		handlers:  make(map[string]func(topic string, payload []byte) error),
	}
}

func (m *MockBus) Publish(topic string, payload []byte, qos byte, retained bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.publishErr != nil {
		return m.publishErr
	}
	m.published = append(m.published, mockPublish{
		Topic:    topic,
		Payload:  string(payload),
		QoS:      qos,
		Retained: retained,
	})
	return nil
}

func (m *MockBus) Subscribe(topic string, qos byte, handler func(topic string, payload []byte) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.subscribeErr != nil {
		return m.subscribeErr
	}
	m.subscribed = append(m.subscribed, topic)
	m.handlers[topic] = handler
	return nil
}

func (m *MockBus) Unsubscribe(topic string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.unsubscribed = append(m.unsubscribed, topic)
	delete(m.handlers, topic)
	return nil
}

func (m *MockBus) IsConnected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.connected
}

func (m *MockBus) SetConnected(connected bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.connected = connected
}

func (m *MockBus) GetPublished() []mockPublish {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]mockPublish, len(m.published))
	copy(out, m.published)
	return out
}

// PublishedTo returns the publishes on one topic.
func (m *MockBus) PublishedTo(topic string) []mockPublish {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []mockPublish
	for _, p := range m.published {
		if p.Topic == topic {
			out = append(out, p)
		}
	}
	return out
}

func (m *MockBus) GetSubscribed() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.subscribed))
	copy(out, m.subscribed)
	return out
}

func (m *MockBus) ClearPublished() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.published = nil
}

// SimulateMessage delivers a message to the handler subscribed on topic.
func (m *MockBus) SimulateMessage(topic string, payload []byte) error {
	m.mu.Lock()
	handler, ok := m.handlers[topic]
	m.mu.Unlock()
	if !ok {
		return nil
	}
	return handler(topic, payload)
}

// MockSession implements Session for testing.
type MockSession struct {
	mu              sync.Mutex
	id              string
	connectErr      error
	connectCalls    int
	disconnectCalls int
	pollCalls       int
	rssi            int
	disconnected    bool
	opens           int
	closes          int
	stops           int
	positions       []int
	onTelemetry     func(TelemetryEvent)

	// connectStarted/connectRelease, when set, make Connect block until
	// released so tests can observe concurrency while a connect is in
	// flight.
	connectStarted chan struct{}
	connectRelease chan struct{}
}

func NewMockSession(id string) *MockSession {
	return &MockSession{id: id, rssi: -60}
}

func (s *MockSession) Connect(_ context.Context) error {
	s.mu.Lock()
	s.connectCalls++
	started := s.connectStarted
	release := s.connectRelease
	err := s.connectErr
	s.mu.Unlock()

	if started != nil {
		close(started)
	}
	if release != nil {
		<-release
	}
	return err
}

func (s *MockSession) Disconnect() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.disconnectCalls++
	s.disconnected = true
}

func (s *MockSession) Poll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pollCalls++
}

func (s *MockSession) RSSI() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rssi
}

func (s *MockSession) IsDisconnected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.disconnected
}

func (s *MockSession) SetDisconnected(disconnected bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.disconnected = disconnected
}

func (s *MockSession) SendOpen() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.opens++
	return nil
}

func (s *MockSession) SendClose() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closes++
	return nil
}

func (s *MockSession) SendStop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stops++
	return nil
}

func (s *MockSession) SendSetPosition(position int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.positions = append(s.positions, position)
	return nil
}

func (s *MockSession) SetOnTelemetry(fn func(TelemetryEvent)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onTelemetry = fn
}

// EmitTelemetry invokes the registered callback, simulating a device
// notification.
func (s *MockSession) EmitTelemetry(metric Metric, value int) {
	s.mu.Lock()
	callback := s.onTelemetry
	s.mu.Unlock()
	if callback != nil {
		callback(TelemetryEvent{Device: s.id, Metric: metric, Value: value})
	}
}

func (s *MockSession) Counts() (connects, disconnects, polls int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connectCalls, s.disconnectCalls, s.pollCalls
}

func (s *MockSession) Commands() (opens, closes, stops int, positions []int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.opens, s.closes, s.stops, append([]int(nil), s.positions...)
}

// MockScanner implements Scanner for testing.
type MockScanner struct {
	mu             sync.Mutex
	advertisements []Advertisement
	scanCalls      int
	stopCalls      int
}

func (m *MockScanner) Scan(_ context.Context, onFound func(Advertisement)) error {
	m.mu.Lock()
	m.scanCalls++
	advs := append([]Advertisement(nil), m.advertisements...)
	m.mu.Unlock()

	for _, adv := range advs {
		onFound(adv)
	}
	return nil
}

func (m *MockScanner) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stopCalls++
}

func (m *MockScanner) Calls() (scans, stops int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.scanCalls, m.stopCalls
}

// MockRecorder implements Recorder for testing.
type MockRecorder struct {
	mu       sync.Mutex
	recorded []mockRecording
}

type mockRecording struct {
	Device string
	Metric string
	Value  int
}

func (m *MockRecorder) Record(_ context.Context, device, metric string, value int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.recorded = append(m.recorded, mockRecording{Device: device, Metric: metric, Value: value})
	return nil
}

func (m *MockRecorder) GetRecorded() []mockRecording {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]mockRecording, len(m.recorded))
	copy(out, m.recorded)
	return out
}
