package store

import (
	"context"
	"fmt"
	"time"

	"github.com/roach88/sheetsync/internal/model"
)

// CreateSyncState inserts a new run. The state must be running.
func (s *Store) CreateSyncState(ctx context.Context, st model.SyncState) error {
	if st.Status != model.StatusRunning {
		return fmt.Errorf("create sync state: status %q, expected running", st.Status)
	}
	_, err := s.exec(ctx, s.db, `
		INSERT INTO sync_states
		(id, model_class, sync_type, sync_mode, status, started_at, completed_at,
		 total_processed, last_processed_id, error_message, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, NULL, ?, ?, NULL, ?, ?)
	`,
		st.ID,
		st.RecordType,
		string(st.Kind),
		string(st.Mode),
		string(st.Status),
		formatTime(st.StartedAt),
		int64(st.TotalProcessed),
		nullInt(st.LastProcessedID),
		formatTime(st.CreatedAt),
		formatTime(st.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("create sync state: %w", err)
	}
	return nil
}

// RecordBatch atomically records a chunk: one success entry per id and the
// run's new counters. Either everything is written or nothing is.
//
// total is the run's cumulative processed count; lastID the highest id seen.
func (s *Store) RecordBatch(ctx context.Context, st model.SyncState, ids []int64, total uint64, lastID *int64, now time.Time) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("record batch: begin: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	ts := formatTime(now)
	for _, id := range ids {
		_, err := s.exec(ctx, tx, `
			INSERT INTO sync_entries
			(sync_state_id, model_class, record_id, synced_at, sync_type, status, error_message, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, NULL, ?, ?)
		`, st.ID, st.RecordType, id, ts, string(st.Kind), string(model.EntrySuccess), ts, ts)
		if err != nil {
			return fmt.Errorf("record batch: insert entry %d: %w", id, err)
		}
	}

	res, err := s.exec(ctx, tx, `
		UPDATE sync_states
		SET total_processed = ?, last_processed_id = ?, updated_at = ?
		WHERE id = ? AND status = ?
	`, int64(total), nullInt(lastID), ts, st.ID, string(model.StatusRunning))
	if err != nil {
		return fmt.Errorf("record batch: update state: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("record batch: rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("record batch: sync state %s is not running", st.ID)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("record batch: commit: %w", err)
	}
	return nil
}

// FinishSyncState moves a running state to completed or failed.
// Returns false, without error, if the state was not running.
func (s *Store) FinishSyncState(ctx context.Context, id string, status model.Status, errMsg string, now time.Time) (bool, error) {
	if !status.Terminal() {
		return false, fmt.Errorf("finish sync state: %q is not terminal", status)
	}
	ts := formatTime(now)
	res, err := s.exec(ctx, s.db, `
		UPDATE sync_states
		SET status = ?, completed_at = ?, error_message = ?, updated_at = ?
		WHERE id = ? AND status = ?
	`, string(status), ts, nullString(errMsg), ts, id, string(model.StatusRunning))
	if err != nil {
		return false, fmt.Errorf("finish sync state: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("finish sync state: rows affected: %w", err)
	}
	return n == 1, nil
}

// DeleteSyncState removes a run and, by cascade, its entries.
func (s *Store) DeleteSyncState(ctx context.Context, id string) error {
	if _, err := s.exec(ctx, s.db, `DELETE FROM sync_states WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete sync state: %w", err)
	}
	return nil
}
