package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/roach88/sheetsync/internal/model"
)

const stateColumns = `id, model_class, sync_type, sync_mode, status, started_at, completed_at,
	total_processed, last_processed_id, error_message, created_at, updated_at`

// GetSyncState returns the run with the given id, or ErrNotFound.
func (s *Store) GetSyncState(ctx context.Context, id string) (model.SyncState, error) {
	row := s.queryRow(ctx, s.db, `SELECT `+stateColumns+` FROM sync_states WHERE id = ?`, id)
	st, err := scanSyncState(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.SyncState{}, fmt.Errorf("get sync state %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return model.SyncState{}, fmt.Errorf("get sync state %s: %w", id, err)
	}
	return st, nil
}

// LastSuccessful returns the most recently completed run of a record type,
// or nil if it never completed one.
func (s *Store) LastSuccessful(ctx context.Context, recordType string) (*model.SyncState, error) {
	row := s.queryRow(ctx, s.db, `
		SELECT `+stateColumns+`
		FROM sync_states
		WHERE model_class = ? AND status = ?
		ORDER BY completed_at DESC, id DESC
		LIMIT 1
	`, recordType, string(model.StatusCompleted))
	st, err := scanSyncState(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("last successful sync: %w", err)
	}
	return &st, nil
}

// ResumePoint returns where a new full sync should start: the last processed
// id of the most recent full run, if that run did not complete.
func (s *Store) ResumePoint(ctx context.Context, recordType string) (*int64, error) {
	var status string
	var last sql.NullInt64
	err := s.queryRow(ctx, s.db, `
		SELECT status, last_processed_id
		FROM sync_states
		WHERE model_class = ? AND sync_type = ?
		ORDER BY created_at DESC, id DESC
		LIMIT 1
	`, recordType, string(model.KindFull)).Scan(&status, &last)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("resume point: %w", err)
	}
	if model.Status(status) == model.StatusCompleted || !last.Valid {
		return nil, nil
	}
	id := last.Int64
	return &id, nil
}

// RecentSyncStates returns up to limit runs of a record type, newest first.
func (s *Store) RecentSyncStates(ctx context.Context, recordType string, limit int) ([]model.SyncState, error) {
	rows, err := s.query(ctx, s.db, `
		SELECT `+stateColumns+`
		FROM sync_states
		WHERE model_class = ?
		ORDER BY created_at DESC, id DESC
		LIMIT ?
	`, recordType, limit)
	if err != nil {
		return nil, fmt.Errorf("query sync states: %w", err)
	}
	defer rows.Close()

	states := []model.SyncState{}
	for rows.Next() {
		st, err := scanSyncState(rows)
		if err != nil {
			return nil, err
		}
		states = append(states, st)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sync states: %w", err)
	}
	return states, nil
}

// CountFailures counts failed runs of a record type created at or after since.
func (s *Store) CountFailures(ctx context.Context, recordType string, since time.Time) (int, error) {
	var n int
	err := s.queryRow(ctx, s.db, `
		SELECT COUNT(*)
		FROM sync_states
		WHERE model_class = ? AND status = ? AND created_at >= ?
	`, recordType, string(model.StatusFailed), formatTime(since)).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count failures: %w", err)
	}
	return n, nil
}

// RecordedIDs returns the ids a run recorded as synced, ascending.
func (s *Store) RecordedIDs(ctx context.Context, syncStateID string) ([]int64, error) {
	rows, err := s.query(ctx, s.db, `
		SELECT record_id
		FROM sync_entries
		WHERE sync_state_id = ? AND status = ?
		ORDER BY record_id ASC
	`, syncStateID, string(model.EntrySuccess))
	if err != nil {
		return nil, fmt.Errorf("query recorded ids: %w", err)
	}
	defer rows.Close()

	ids := []int64{}
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan recorded id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate recorded ids: %w", err)
	}
	return ids, nil
}

// Entries returns the entries of a run, ordered by id.
func (s *Store) Entries(ctx context.Context, syncStateID string) ([]model.SyncEntry, error) {
	rows, err := s.query(ctx, s.db, `
		SELECT id, sync_state_id, model_class, record_id, synced_at, sync_type, status, error_message
		FROM sync_entries
		WHERE sync_state_id = ?
		ORDER BY id ASC
	`, syncStateID)
	if err != nil {
		return nil, fmt.Errorf("query entries: %w", err)
	}
	defer rows.Close()

	entries := []model.SyncEntry{}
	for rows.Next() {
		var e model.SyncEntry
		var syncedAt, kind, status string
		var errMsg sql.NullString
		if err := rows.Scan(&e.ID, &e.SyncStateID, &e.RecordType, &e.RecordID, &syncedAt, &kind, &status, &errMsg); err != nil {
			return nil, fmt.Errorf("scan entry: %w", err)
		}
		if e.SyncedAt, err = parseTime(syncedAt); err != nil {
			return nil, err
		}
		e.Kind = model.Kind(kind)
		e.Status = model.EntryStatus(status)
		e.ErrorMessage = errMsg.String
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate entries: %w", err)
	}
	return entries, nil
}

// LastSyncedAt returns when a record was last synced successfully, or nil.
func (s *Store) LastSyncedAt(ctx context.Context, recordType string, recordID int64) (*time.Time, error) {
	var ts sql.NullString
	err := s.queryRow(ctx, s.db, `
		SELECT MAX(synced_at)
		FROM sync_entries
		WHERE model_class = ? AND record_id = ? AND status = ?
	`, recordType, recordID, string(model.EntrySuccess)).Scan(&ts)
	if err != nil {
		return nil, fmt.Errorf("last synced at: %w", err)
	}
	if !ts.Valid {
		return nil, nil
	}
	t, err := parseTime(ts.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanSyncState(row rowScanner) (model.SyncState, error) {
	var st model.SyncState
	var kind, mode, status, startedAt, createdAt, updatedAt string
	var completedAt, errMsg sql.NullString
	var total int64
	var last sql.NullInt64

	err := row.Scan(&st.ID, &st.RecordType, &kind, &mode, &status, &startedAt, &completedAt,
		&total, &last, &errMsg, &createdAt, &updatedAt)
	if err != nil {
		return model.SyncState{}, err
	}

	st.Kind = model.Kind(kind)
	st.Mode = model.Mode(mode)
	st.Status = model.Status(status)
	st.TotalProcessed = uint64(total)
	st.ErrorMessage = errMsg.String
	if last.Valid {
		id := last.Int64
		st.LastProcessedID = &id
	}
	if st.StartedAt, err = parseTime(startedAt); err != nil {
		return model.SyncState{}, err
	}
	if st.CreatedAt, err = parseTime(createdAt); err != nil {
		return model.SyncState{}, err
	}
	if st.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return model.SyncState{}, err
	}
	if completedAt.Valid {
		t, err := parseTime(completedAt.String)
		if err != nil {
			return model.SyncState{}, err
		}
		st.CompletedAt = &t
	}
	return st, nil
}
