package bridge

import (
	"context"
	"strconv"
	"time"
)

// recorderTimeout bounds each history write so a slow store never stalls
// the notification context.
const recorderTimeout = 2 * time.Second

// TelemetryPublisher republishes device telemetry events onto the bus and
// fans them out to the configured history recorders.
//
// Events arrive from session notification callbacks carrying only the
// device identifier. The publisher re-resolves the record through the
// registry before publishing; events for a removed device are dropped.
type TelemetryPublisher struct {
	registry  *Registry
	bus       Publisher
	topics    Topics
	qos       byte
	recorders []Recorder
	logger    Logger
}

// NewTelemetryPublisher creates a telemetry publisher.
//
// Parameters:
//   - registry: Device registry for record resolution
//   - bus: Message bus for publishes
//   - topics: Topic builder
//   - qos: QoS level for telemetry publishes
//   - recorders: Optional history sinks (SQLite, InfluxDB); may be empty
//   - logger: Optional logger; nil discards output
func NewTelemetryPublisher(registry *Registry, bus Publisher, topics Topics, qos byte, recorders []Recorder, logger Logger) *TelemetryPublisher {
	if logger == nil {
		logger = noopLogger{}
	}
	return &TelemetryPublisher{
		registry:  registry,
		bus:       bus,
		topics:    topics,
		qos:       qos,
		recorders: recorders,
		logger:    logger,
	}
}

// HandleEvent processes one telemetry event: updates the record's cached
// readings, publishes the value immediately (no buffering or coalescing,
// non-retained) and appends it to the history recorders.
//
// Safe to call from any goroutine. Events for identifiers no longer in the
// registry are dropped silently.
func (p *TelemetryPublisher) HandleEvent(ev TelemetryEvent) {
	exists := p.registry.WithRecord(ev.Device, func(rec *Record) {
		v := ev.Value
		switch ev.Metric {
		case MetricPosition:
			rec.LastTelemetry.Position = &v
		case MetricBattery:
			rec.LastTelemetry.Battery = &v
		case MetricLight:
			rec.LastTelemetry.Light = &v
		}
	})
	if !exists {
		return
	}

	topic := p.topics.Metric(ev.Device, ev.Metric)
	payload := strconv.Itoa(ev.Value)
	if err := p.bus.Publish(topic, []byte(payload), p.qos, false); err != nil {
		p.logger.Warn("telemetry publish failed",
			"device", ev.Device, "metric", string(ev.Metric), "error", err)
	}

	p.record(ev.Device, string(ev.Metric), ev.Value)
}

// PublishRSSI publishes a device's signal strength. Called every driver
// tick for each connected device with no change-detection; duplicate
// values are published deliberately.
func (p *TelemetryPublisher) PublishRSSI(id string, rssi int) {
	topic := p.topics.Metric(id, MetricRSSI)
	if err := p.bus.Publish(topic, []byte(strconv.Itoa(rssi)), p.qos, false); err != nil {
		p.logger.Debug("rssi publish failed", "device", id, "error", err)
	}
}

// PublishAvailability publishes a device's retained online/offline status.
//
// Returns:
//   - error: If the bus publish fails (callers treat offline as best-effort)
func (p *TelemetryPublisher) PublishAvailability(id string, online bool) error {
	payload := availabilityOffline
	if online {
		payload = availabilityOnline
	}
	return p.bus.Publish(p.topics.Availability(id), []byte(payload), p.qos, true)
}

// record fans a reading out to every configured history recorder.
func (p *TelemetryPublisher) record(device, metric string, value int) {
	for _, rec := range p.recorders {
		ctx, cancel := context.WithTimeout(context.Background(), recorderTimeout)
		if err := rec.Record(ctx, device, metric, value); err != nil {
			p.logger.Warn("telemetry history write failed",
				"device", device, "metric", metric, "error", err)
		}
		cancel()
	}
}
