// Package engine implements the sheetsync run lifecycle.
//
// A run moves one record type's rows from the source database into its
// sheet. SyncManager is the entry point: it resolves the record type,
// opens a SyncState through StateManager, hands the work to BatchProcessor
// and, on failure, asks ErrorHandler whether to schedule a retry.
//
// Run flow:
//  1. SyncManager resolves the sync mode (option, then type, then default)
//  2. StateManager creates the running SyncState, with the resume point
//     of an unfinished full run
//  3. BatchProcessor walks the eligible rows in primary key order, one
//     chunk at a time: transform, reconcile against the sheet, write,
//     then record the chunk's entries and counters in one transaction
//  4. On success the state is completed; on failure ErrorHandler counts
//     the record type's failures in the last hour and either enqueues a
//     delayed partial sync of the unconfirmed ids or gives up
//  5. The triggering error is returned to the caller after bookkeeping
//
// Chunks are strictly sequential. Retries run later on a queue.Worker and
// are never awaited by the run that scheduled them.
package engine
