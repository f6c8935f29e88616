// Package database provides SQLite connectivity for the AM43 bridge.
//
// The bridge keeps a small local database for telemetry history so the
// last reported position, battery and light readings survive restarts and
// remain queryable when the time-series sink is unavailable. SQLite suits
// the single-board deployment target: one file, no daemon, WAL mode for
// concurrent reads.
//
// Schema management lives with the history store (internal/history), which
// creates its own table on startup. This package only owns the connection.
package database
