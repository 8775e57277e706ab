package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/roach88/sheetsync/internal/clock"
	"github.com/roach88/sheetsync/internal/model"
	"github.com/roach88/sheetsync/internal/record"
	"github.com/roach88/sheetsync/internal/store"
)

// StateManager owns the durable record of sync runs.
//
// Every SyncState it hands out is the caller's working copy; the methods
// keep that copy and the stored row in step.
type StateManager struct {
	store  *store.Store
	clock  clock.Clock
	ids    IDGenerator
	logger *slog.Logger
}

// NewStateManager creates a state manager over s.
func NewStateManager(s *store.Store, opts ...Option) *StateManager {
	o := newOptions(opts)
	return &StateManager{store: s, clock: o.clock, ids: o.ids, logger: o.logger}
}

// InitializeSync creates a running SyncState. A full sync starts from the
// last processed id of the previous full run if that run did not complete.
func (m *StateManager) InitializeSync(ctx context.Context, d *record.Descriptor, kind model.Kind, mode model.Mode) (*model.SyncState, error) {
	now := m.clock.Now().UTC()
	st := &model.SyncState{
		ID:         m.ids.NewID(),
		RecordType: d.Name,
		Kind:       kind,
		Mode:       mode,
		Status:     model.StatusRunning,
		StartedAt:  now,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if kind == model.KindFull {
		resume, err := m.store.ResumePoint(ctx, d.Name)
		if err != nil {
			return nil, err
		}
		st.LastProcessedID = resume
	}
	if err := m.store.CreateSyncState(ctx, *st); err != nil {
		return nil, err
	}

	args := []any{"record_type", d.Name, "sync_state_id", st.ID, "kind", kind, "mode", mode}
	if st.LastProcessedID != nil {
		args = append(args, "resume_after", *st.LastProcessedID)
	}
	m.logger.Info("sync started", args...)
	return st, nil
}

// RecordBatchSync records a success entry for every id and advances the
// run's counters, atomically.
func (m *StateManager) RecordBatchSync(ctx context.Context, st *model.SyncState, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	now := m.clock.Now().UTC()
	total := st.TotalProcessed + uint64(len(ids))
	last := st.LastProcessedID
	if chunkMax := model.MaxID(ids); last == nil || *chunkMax > *last {
		last = chunkMax
	}
	if err := m.store.RecordBatch(ctx, *st, ids, total, last, now); err != nil {
		return err
	}
	st.TotalProcessed = total
	st.LastProcessedID = last
	st.UpdatedAt = now
	return nil
}

// CompleteSync marks the run completed with the processor's result.
func (m *StateManager) CompleteSync(ctx context.Context, st *model.SyncState, res model.Result) error {
	now := m.clock.Now().UTC()
	ok, err := m.store.FinishSyncState(ctx, st.ID, model.StatusCompleted, "", now)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("complete sync: state %s is not running", st.ID)
	}
	st.Status = model.StatusCompleted
	st.CompletedAt = &now
	st.UpdatedAt = now
	st.TotalProcessed = res.TotalProcessed
	if res.LastProcessedID != nil {
		st.LastProcessedID = res.LastProcessedID
	}
	m.logger.Info("sync completed",
		"record_type", st.RecordType,
		"sync_state_id", st.ID,
		"total_processed", res.TotalProcessed,
		"duration", now.Sub(st.StartedAt))
	return nil
}

// FailSync marks the run failed with msg.
func (m *StateManager) FailSync(ctx context.Context, st *model.SyncState, msg string) error {
	now := m.clock.Now().UTC()
	ok, err := m.store.FinishSyncState(ctx, st.ID, model.StatusFailed, msg, now)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("fail sync: state %s is not running", st.ID)
	}
	st.Status = model.StatusFailed
	st.CompletedAt = &now
	st.UpdatedAt = now
	st.ErrorMessage = msg
	m.logger.Error("sync failed",
		"record_type", st.RecordType,
		"sync_state_id", st.ID,
		"total_processed", st.TotalProcessed,
		"error", msg)
	return nil
}

// LastSuccessfulSync returns the most recently completed run, or nil.
func (m *StateManager) LastSuccessfulSync(ctx context.Context, recordType string) (*model.SyncState, error) {
	return m.store.LastSuccessful(ctx, recordType)
}

// LastSyncedAt returns when a record was last synced, or nil if never.
func (m *StateManager) LastSyncedAt(ctx context.Context, recordType string, recordID int64) (*time.Time, error) {
	return m.store.LastSyncedAt(ctx, recordType, recordID)
}

// ProcessedIDs returns the ids recorded for a run.
func (m *StateManager) ProcessedIDs(ctx context.Context, st *model.SyncState) ([]int64, error) {
	return m.store.RecordedIDs(ctx, st.ID)
}

// FailuresSince counts failed runs of a record type created after since.
func (m *StateManager) FailuresSince(ctx context.Context, recordType string, since time.Time) (int, error) {
	return m.store.CountFailures(ctx, recordType, since)
}
