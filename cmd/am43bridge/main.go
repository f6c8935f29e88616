// AM43 Bridge - BLE blind motors on MQTT
//
// This is the main entry point for the AM43 bridge. It discovers AM43
// motorized window-covering controllers over Bluetooth Low Energy and
// exposes them on an MQTT broker: telemetry out (position, battery, light,
// RSSI, availability), commands in (open/close/stop, set position), with
// optional telemetry history in SQLite and InfluxDB.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/adotagarwal/am43/internal/ble"
	"github.com/adotagarwal/am43/internal/bridge"
	"github.com/adotagarwal/am43/internal/history"
	"github.com/adotagarwal/am43/internal/infrastructure/config"
	"github.com/adotagarwal/am43/internal/infrastructure/database"
	"github.com/adotagarwal/am43/internal/infrastructure/influxdb"
	"github.com/adotagarwal/am43/internal/infrastructure/logging"
	"github.com/adotagarwal/am43/internal/infrastructure/mqtt"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"     // Semantic version (e.g., "1.0.0")
	commit  = "unknown" // Git commit hash
	date    = "unknown" // Build date
)

// Default configuration file path
const defaultConfigPath = "configs/config.yaml"

// restartExitCode tells the process supervisor (systemd Restart=always,
// or the contrib service unit) that the exit was a requested restart.
const restartExitCode = 10

func main() {
	// Create a context that cancels on interrupt signals (Ctrl+C, SIGTERM)
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	restart, err := run(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if restart {
		os.Exit(restartExitCode)
	}
}

// run is the actual application logic, separated from main for testability.
//
// Parameters:
//   - ctx: Context for cancellation and shutdown signals
//
// Returns:
//   - bool: true when shutdown was triggered by the restart command
//   - error: nil on clean shutdown, or error describing failure
func run(ctx context.Context) (bool, error) {
	// Use default logger until config is loaded
	log := logging.Default()
	log.Info("starting AM43 bridge",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	// Load configuration
	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return false, fmt.Errorf("loading config: %w", err)
	}
	log.Info("configuration loaded", "path", configPath)

	// Reinitialise logger with config settings
	log = logging.New(cfg.Logging, version)
	log.Info("logger initialised",
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
	)

	// Telemetry recorders, filled in as sinks come up
	var recorders []bridge.Recorder

	// Open database and telemetry history store (optional)
	var db *database.DB
	if cfg.Database.Enabled {
		db, err = database.Open(database.Config{
			Path:        cfg.Database.Path,
			WALMode:     cfg.Database.WALMode,
			BusyTimeout: cfg.Database.BusyTimeout,
		})
		if err != nil {
			return false, fmt.Errorf("opening database: %w", err)
		}
		defer func() {
			log.Info("closing database")
			if closeErr := db.Close(); closeErr != nil {
				log.Error("error closing database", "error", closeErr)
			}
		}()
		log.Info("database connected", "path", cfg.Database.Path)

		store := history.NewStore(db.DB)
		if initErr := store.Init(ctx); initErr != nil {
			return false, fmt.Errorf("initialising telemetry history: %w", initErr)
		}
		recorders = append(recorders, store)
		go pruneHistory(ctx, store, log)
	} else {
		log.Info("database disabled")
	}

	// Connect to MQTT broker
	mqttClient, err := mqtt.Connect(cfg.MQTT)
	if err != nil {
		return false, fmt.Errorf("connecting to MQTT: %w", err)
	}
	defer func() {
		log.Info("disconnecting from MQTT")
		if closeErr := mqttClient.Close(); closeErr != nil {
			log.Error("error closing MQTT", "error", closeErr)
		}
	}()
	mqttClient.SetLogger(log)
	log.Info("MQTT connected",
		"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
		"client_id", cfg.MQTT.Broker.ClientID,
	)

	// Set up MQTT logging callbacks
	mqttClient.SetOnConnect(func() {
		log.Info("MQTT reconnected")
	})
	mqttClient.SetOnDisconnect(func(err error) {
		log.Warn("MQTT disconnected", "error", err)
	})

	// Connect to InfluxDB (optional)
	var influxClient *influxdb.Client
	if cfg.InfluxDB.Enabled {
		influxClient, err = influxdb.Connect(cfg.InfluxDB)
		if err != nil {
			return false, fmt.Errorf("connecting to InfluxDB: %w", err)
		}
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
		influxClient.SetOnError(func(err error) {
			log.Error("InfluxDB write error", "error", err)
		})
		recorders = append(recorders, influxClient)
		log.Info("InfluxDB connected",
			"url", cfg.InfluxDB.URL,
			"org", cfg.InfluxDB.Org,
			"bucket", cfg.InfluxDB.Bucket,
		)
	} else {
		log.Info("InfluxDB disabled")
	}

	// Enable the Bluetooth adapter
	central, err := ble.NewCentral(log)
	if err != nil {
		return false, fmt.Errorf("enabling bluetooth: %w", err)
	}
	log.Info("bluetooth adapter enabled")

	// Create and start the bridge core
	manager := bridge.NewManager(bridge.Options{
		Bus:            &mqttBusAdapter{client: mqttClient},
		Scanner:        central,
		NewSession:     central.NewSession,
		AllowedDevices: cfg.BLE.AllowedDevices,
		TickInterval:   cfg.GetTickInterval(),
		ScanInterval:   cfg.GetScanInterval(),
		ScanDuration:   cfg.GetScanDuration(),
		Topics:         bridge.Topics{Prefix: cfg.MQTT.TopicPrefix},
		QoS:            byte(cfg.MQTT.QoS), // #nosec G115 -- validated 0-2
		Recorders:      recorders,
		Logger:         log,
	})
	if err := manager.Start(ctx); err != nil {
		return false, fmt.Errorf("starting bridge: %w", err)
	}
	defer func() {
		log.Info("stopping bridge")
		manager.Stop()
	}()

	// Verify all connections are healthy
	if err := healthCheck(ctx, db, mqttClient, influxClient); err != nil {
		return false, fmt.Errorf("health check failed: %w", err)
	}
	log.Info("all health checks passed")

	log.Info("initialisation complete, waiting for shutdown signal",
		"topic_prefix", cfg.MQTT.TopicPrefix,
	)

	// Wait for shutdown signal or a restart command
	select {
	case <-ctx.Done():
		log.Info("shutdown signal received, cleaning up")
		return false, nil
	case <-manager.Restart():
		log.Info("restart requested, exiting for supervisor restart")
		return true, nil
	}
}

// pruneHistory removes telemetry rows older than the retention window,
// once a day, until the context is cancelled.
func pruneHistory(ctx context.Context, store *history.Store, log *logging.Logger) {
	ticker := time.NewTicker(24 * time.Hour)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			deleted, err := store.Prune(ctx, history.DefaultRetention)
			if err != nil {
				log.Warn("pruning telemetry history", "error", err)
				continue
			}
			if deleted > 0 {
				log.Info("telemetry history pruned", "rows", deleted)
			}
		}
	}
}

// getConfigPath returns the configuration file path.
// Uses AM43_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("AM43_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// healthCheck verifies all infrastructure connections are healthy.
//
// Parameters:
//   - ctx: Context for timeout/cancellation
//   - db: Database connection to check (may be nil if disabled)
//   - mqttClient: MQTT client to check
//   - influxClient: InfluxDB client to check (may be nil if disabled)
//
// Returns:
//   - error: First health check failure, or nil if all healthy
func healthCheck(ctx context.Context, db *database.DB, mqttClient *mqtt.Client, influxClient *influxdb.Client) error {
	if db != nil {
		if err := db.HealthCheck(ctx); err != nil {
			return fmt.Errorf("database: %w", err)
		}
	}

	if err := mqttClient.HealthCheck(ctx); err != nil {
		return fmt.Errorf("mqtt: %w", err)
	}

	if influxClient != nil {
		if err := influxClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("influxdb: %w", err)
		}
	}

	return nil
}

// mqttBusAdapter adapts the infrastructure MQTT client to the bridge's
// Publisher interface. The only difference is the Subscribe handler type:
// the bridge takes a plain func, the infrastructure client a named
// MessageHandler.
type mqttBusAdapter struct {
	client *mqtt.Client
}

// Publish implements bridge.Publisher.
func (a *mqttBusAdapter) Publish(topic string, payload []byte, qos byte, retained bool) error {
	return a.client.Publish(topic, payload, qos, retained)
}

// Subscribe implements bridge.Publisher.
func (a *mqttBusAdapter) Subscribe(topic string, qos byte, handler func(topic string, payload []byte) error) error {
	return a.client.Subscribe(topic, qos, handler)
}

// Unsubscribe implements bridge.Publisher.
func (a *mqttBusAdapter) Unsubscribe(topic string) error {
	return a.client.Unsubscribe(topic)
}

// IsConnected implements bridge.Publisher.
func (a *mqttBusAdapter) IsConnected() bool {
	return a.client.IsConnected()
}
