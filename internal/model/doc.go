// Package model provides the persisted data model shared by the sync engine,
// the state store and the retry queue.
//
// This package contains type definitions only. Other internal packages import
// model; model imports nothing internal.
//
// Key design constraints:
//   - A SyncState moves running → completed|failed exactly once
//   - CompletedAt is set iff the state is terminal
//   - TotalProcessed never decreases within a run
//   - All JSON tags use snake_case
package model
