package bridge

import (
	"sync"
	"time"
)

// Record is a registry entry for one physical device.
//
// Fields are read and written only while the registry lock is held (via
// WithRecord); the lock is never held across a Session or bus call. The
// Session handle itself is exclusively owned by the record.
type Record struct {
	// Identifier is the registry key. Immutable once inserted.
	Identifier string

	// Session is the owned transport handle, created at discovery and
	// released at removal.
	Session Session

	// State is the record's lifecycle position.
	State State

	// LastTelemetry caches the most recent readings.
	LastTelemetry Telemetry

	// NextRetryAt gates bus sub-binding retries when the broker is
	// unreachable, preventing a tight retry loop.
	NextRetryAt time.Time

	// bindingActive reports whether the device's command subscriptions
	// and availability publish have been established.
	bindingActive bool

	// released marks that teardown has run. Checked under the lock so the
	// disconnect path executes exactly once even when the notification
	// context and the driver tick race to observe the same disconnect.
	released bool
}

// Registry is the single piece of shared mutable state in the bridge core.
//
// It maps device identifiers to records and preserves insertion order for
// deterministic iteration. Every access is serialized through one mutex,
// and critical sections cover only map bookkeeping, never a blocking call
// into a Session or the bus client.
//
// Concurrent callers: the discovery callback (Insert), the driver tick
// (Snapshot, WithRecord, Remove) and the command router (Snapshot,
// WithRecord).
type Registry struct {
	mu      sync.Mutex
	records map[string]*Record
	order   []string
}

// NewRegistry creates an empty device registry.
func NewRegistry() *Registry {
	return &Registry{
		records: make(map[string]*Record),
	}
}

// Insert registers a record under its identifier.
//
// Duplicate discovery is a no-op: if the identifier is already present the
// registry is unchanged and Insert returns false, so repeated sightings of
// a known device never reset its state.
//
// Parameters:
//   - rec: Record to insert; rec.Identifier is the key
//
// Returns:
//   - bool: true if inserted, false if the identifier was already present
func (r *Registry) Insert(rec *Record) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.records[rec.Identifier]; exists {
		return false
	}
	r.records[rec.Identifier] = rec
	r.order = append(r.order, rec.Identifier)
	return true
}

// Snapshot returns the registered identifiers in insertion order.
//
// It returns identifiers rather than record pointers: callers re-resolve
// each one through WithRecord at use time, so a record removed between the
// snapshot and the access is simply skipped instead of dereferenced after
// release.
func (r *Registry) Snapshot() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	ids := make([]string, len(r.order))
	copy(ids, r.order)
	return ids
}

// WithRecord applies fn to the record for id while holding the registry
// lock. fn must not call into the Session or the bus client.
//
// Returns:
//   - bool: true if the record existed and fn ran, false otherwise
func (r *Registry) WithRecord(id string, fn func(rec *Record)) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, exists := r.records[id]
	if !exists {
		return false
	}
	fn(rec)
	return true
}

// Remove deletes the record for id and returns it so the caller can
// release the session outside the lock. Returns nil if absent.
func (r *Registry) Remove(id string) *Record {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, exists := r.records[id]
	if !exists {
		return nil
	}
	delete(r.records, id)
	for i, oid := range r.order {
		if oid == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return rec
}

// Len returns the number of registered devices.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.records)
}
