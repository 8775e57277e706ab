// Package store provides durable storage for sync bookkeeping and read access
// to the relational source.
//
// Tables:
//   - sync_states: one row per sync run
//   - sync_entries: one row per record synchronized by a run
//   - retry_jobs: delayed partial-sync retries (the durable work queue)
//
// # Dialects
//
// Two database/sql drivers are supported: "sqlite3" (mattn/go-sqlite3, the
// default) and "pgx" (jackc/pgx/v5/stdlib). Queries are written with "?"
// placeholders and rebound for PostgreSQL. Timestamps are stored as
// fixed-width UTC RFC 3339 text so range comparisons behave identically in
// both.
//
// # SQLite Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce the sync_entries cascade
//
// # Atomicity
//
// RecordBatch writes a chunk's entries and the run's counters in one
// transaction. Terminal transitions are conditional on status='running', so a
// run completes or fails exactly once.
package store
