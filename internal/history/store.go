package history

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// Default retention and query limits.
const (
	// DefaultRetention is how long telemetry rows are kept before pruning.
	DefaultRetention = 30 * 24 * time.Hour

	// maxQueryLimit caps the number of rows returned by Recent.
	maxQueryLimit = 1000
)

// Entry is a single recorded telemetry reading.
type Entry struct {
	ID        int64
	Device    string
	Metric    string
	Value     int
	CreatedAt time.Time
}

// Store persists telemetry readings to SQLite.
//
// Every reading the bridge publishes to MQTT is also appended here, giving
// a local queryable history that survives restarts. The store owns its
// schema and creates it on Init.
//
// Thread Safety:
//   - All methods are safe for concurrent use; database/sql serialises
//     access to the single SQLite connection.
type Store struct {
	db *sql.DB
}

// NewStore creates a history store backed by the given database.
//
// Call Init before first use to ensure the schema exists.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// Init creates the telemetry_history table and its indexes if they do not
// already exist. Safe to call on every startup.
//
// Parameters:
//   - ctx: Context for timeout/cancellation
//
// Returns:
//   - error: If schema creation fails
func (s *Store) Init(ctx context.Context) error {
	schema := `
		CREATE TABLE IF NOT EXISTS telemetry_history (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			device TEXT NOT NULL,
			metric TEXT NOT NULL,
			value INTEGER NOT NULL,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
		CREATE INDEX IF NOT EXISTS idx_telemetry_device_metric
			ON telemetry_history(device, metric, created_at DESC);
		CREATE INDEX IF NOT EXISTS idx_telemetry_created
			ON telemetry_history(created_at);
	`
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("creating telemetry history schema: %w", err)
	}
	return nil
}

// Record appends a telemetry reading.
//
// Parameters:
//   - ctx: Context for timeout/cancellation
//   - device: Device identifier (BLE address or name)
//   - metric: Metric name (position, battery, light, rssi)
//   - value: Reading value
//
// Returns:
//   - error: If the insert fails
func (s *Store) Record(ctx context.Context, device, metric string, value int) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO telemetry_history (device, metric, value, created_at)
		 VALUES (?, ?, ?, ?)`,
		device, metric, value, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("recording telemetry for %s/%s: %w", device, metric, err)
	}
	return nil
}

// Recent returns the most recent readings for a device and metric,
// newest first.
//
// Parameters:
//   - ctx: Context for timeout/cancellation
//   - device: Device identifier
//   - metric: Metric name
//   - limit: Maximum rows to return (capped at 1000; <=0 uses the cap)
//
// Returns:
//   - []Entry: Matching readings, newest first
//   - error: If the query fails
func (s *Store) Recent(ctx context.Context, device, metric string, limit int) ([]Entry, error) {
	if limit <= 0 || limit > maxQueryLimit {
		limit = maxQueryLimit
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, device, metric, value, created_at
		 FROM telemetry_history
		 WHERE device = ? AND metric = ?
		 ORDER BY created_at DESC, id DESC
		 LIMIT ?`,
		device, metric, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("querying telemetry history: %w", err)
	}
	defer rows.Close() //nolint:errcheck // Read-only query cleanup

	var entries []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.ID, &e.Device, &e.Metric, &e.Value, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning telemetry row: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating telemetry rows: %w", err)
	}

	return entries, nil
}

// Latest returns the newest reading for a device and metric, or nil when
// no reading has been recorded.
func (s *Store) Latest(ctx context.Context, device, metric string) (*Entry, error) {
	entries, err := s.Recent(ctx, device, metric, 1)
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, nil
	}
	return &entries[0], nil
}

// Prune deletes readings older than the retention window.
//
// Parameters:
//   - ctx: Context for timeout/cancellation
//   - retention: Age threshold; rows older than now-retention are removed
//
// Returns:
//   - int64: Number of rows deleted
//   - error: If the delete fails
func (s *Store) Prune(ctx context.Context, retention time.Duration) (int64, error) {
	cutoff := time.Now().UTC().Add(-retention)
	result, err := s.db.ExecContext(ctx,
		`DELETE FROM telemetry_history WHERE created_at < ?`, cutoff,
	)
	if err != nil {
		return 0, fmt.Errorf("pruning telemetry history: %w", err)
	}
	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("counting pruned rows: %w", err)
	}
	return deleted, nil
}
