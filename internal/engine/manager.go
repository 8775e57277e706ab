package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/roach88/sheetsync/internal/clock"
	"github.com/roach88/sheetsync/internal/model"
	"github.com/roach88/sheetsync/internal/notify"
	"github.com/roach88/sheetsync/internal/queue"
	"github.com/roach88/sheetsync/internal/record"
	"github.com/roach88/sheetsync/internal/rowmap"
	"github.com/roach88/sheetsync/internal/sink"
	"github.com/roach88/sheetsync/internal/store"
)

// Options are per-run settings.
type Options struct {
	// Mode overrides the record type's and the default sync mode.
	Mode model.Mode
	// Timeout bounds the run; 0 uses the default.
	Timeout time.Duration
	// Attempt is the retry attempt this run serves, 0 for a first run.
	Attempt int
	// DryRun is honoured by callers, which swap in an in-memory sheet.
	DryRun bool
}

// SyncManager is the entry point for full and partial syncs.
//
// Thread-safety: runs may be started from several goroutines, but nothing
// stops two full syncs of one record type from overlapping. Content
// reconciliation keeps their sheet writes idempotent.
type SyncManager struct {
	registry  *record.Registry
	store     *store.Store
	state     *StateManager
	processor *BatchProcessor
	errors    *ErrorHandler
	events    *notify.Dispatcher
	clock     clock.Clock
	defaults  Defaults
	logger    *slog.Logger
}

var _ queue.Runner = (*SyncManager)(nil)

// NewSyncManager wires the engine together. Retries are enqueued on q.
func NewSyncManager(reg *record.Registry, s *store.Store, client *sink.Client, q queue.Queue, opts ...Option) *SyncManager {
	o := newOptions(opts)
	state := NewStateManager(s, opts...)
	mapper := rowmap.NewMapper(NewSampler(s), o.logger)
	return &SyncManager{
		registry:  reg,
		store:     s,
		state:     state,
		processor: NewBatchProcessor(s, state, client, mapper, opts...),
		errors:    NewErrorHandler(state, q, opts...),
		events:    o.events,
		clock:     o.clock,
		defaults:  o.defaults,
		logger:    o.logger,
	}
}

// State returns the manager's StateManager.
func (m *SyncManager) State() *StateManager {
	return m.state
}

// FullSync syncs every eligible row of recordType.
//
// The returned error is the triggering error wrapped in a RunError once a
// SyncState exists, or a record.ValidationError if the type is unusable.
func (m *SyncManager) FullSync(ctx context.Context, recordType string, o Options) (*model.SyncState, error) {
	d, mode, err := m.resolve(recordType, o)
	if err != nil {
		return nil, err
	}
	return m.run(ctx, d, model.KindFull, mode, nil, o)
}

// PartialSync syncs exactly ids of recordType. The record type is validated
// before any state is created.
func (m *SyncManager) PartialSync(ctx context.Context, recordType string, ids []int64, o Options) (*model.SyncState, error) {
	d, mode, err := m.resolve(recordType, o)
	if err != nil {
		return nil, err
	}
	return m.run(ctx, d, model.KindPartial, mode, ids, o)
}

// RunRetry implements queue.Runner: a retry is a partial sync of the job's ids.
func (m *SyncManager) RunRetry(ctx context.Context, job model.RetryJob) error {
	_, err := m.PartialSync(ctx, job.RecordType, job.RecordIDs, Options{Attempt: job.Attempt})
	return err
}

// LastSuccessfulSync returns the most recently completed run, or nil.
func (m *SyncManager) LastSuccessfulSync(ctx context.Context, recordType string) (*model.SyncState, error) {
	return m.state.LastSuccessfulSync(ctx, recordType)
}

// Status summarizes a record type's recent runs.
type Status struct {
	RecordType       string
	LastSuccessful   *model.SyncState
	Recent           []model.SyncState
	FailuresLastHour int
	MaxRetries       int
}

// Status reports the last successful run and up to limit recent runs.
func (m *SyncManager) Status(ctx context.Context, recordType string, limit int) (*Status, error) {
	if _, err := m.registry.Resolve(recordType); err != nil {
		return nil, err
	}
	last, err := m.state.LastSuccessfulSync(ctx, recordType)
	if err != nil {
		return nil, err
	}
	recent, err := m.store.RecentSyncStates(ctx, recordType, limit)
	if err != nil {
		return nil, err
	}
	failures, err := m.state.FailuresSince(ctx, recordType, m.clock.Now().Add(-RetryWindow))
	if err != nil {
		return nil, err
	}
	return &Status{
		RecordType:       recordType,
		LastSuccessful:   last,
		Recent:           recent,
		FailuresLastHour: failures,
		MaxRetries:       m.defaults.MaxRetries,
	}, nil
}

// resolve validates the record type and picks the sync mode:
// explicit option, then the type's preference, then the default.
func (m *SyncManager) resolve(recordType string, o Options) (*record.Descriptor, model.Mode, error) {
	d, err := m.registry.Resolve(recordType)
	if err != nil {
		return nil, "", err
	}
	if o.Mode != "" && !o.Mode.Valid() {
		return nil, "", &record.ValidationError{
			RecordType: recordType,
			Reason:     fmt.Sprintf("unknown sync mode %q", o.Mode),
		}
	}
	switch {
	case o.Mode != "":
		return d, o.Mode, nil
	case d.Mode != "":
		return d, d.Mode, nil
	default:
		return d, m.defaults.Mode, nil
	}
}

func (m *SyncManager) run(ctx context.Context, d *record.Descriptor, kind model.Kind, mode model.Mode, ids []int64, o Options) (*model.SyncState, error) {
	st, err := m.state.InitializeSync(ctx, d, kind, mode)
	if err != nil {
		return nil, err
	}
	m.events.Publish(ctx, notify.Event{Type: notify.SyncStarted, State: *st, Attempt: o.Attempt})

	timeout := o.Timeout
	if timeout <= 0 {
		timeout = m.defaults.Timeout
	}
	runCtx, cancel := ctx, context.CancelFunc(func() {})
	if timeout > 0 {
		runCtx, cancel = context.WithTimeout(ctx, timeout)
	}
	defer cancel()

	var res model.Result
	if kind == model.KindFull {
		res, err = m.processor.Process(runCtx, d, st, mode)
	} else {
		res, err = m.processor.ProcessPartial(runCtx, d, ids, st)
	}
	if err != nil {
		return st, m.fail(ctx, d, st, ids, err, o)
	}

	if err := m.state.CompleteSync(ctx, st, res); err != nil {
		return st, err
	}
	m.events.Publish(ctx, notify.Event{Type: notify.SyncCompleted, State: *st, Attempt: o.Attempt})
	return st, nil
}

// fail does the failure bookkeeping and returns the wrapped run error.
// Bookkeeping outlives a cancelled or timed out run context.
func (m *SyncManager) fail(ctx context.Context, d *record.Descriptor, st *model.SyncState, requested []int64, runErr error, o Options) error {
	ctx = context.WithoutCancel(ctx)
	log := m.logger.With("record_type", d.Name, "sync_state_id", st.ID, "attempt", o.Attempt)

	pending, err := m.pendingIDs(ctx, d, st, requested)
	if err != nil {
		log.Error("could not determine unsynced records", "error", err)
	}
	if _, err := m.errors.HandleError(ctx, st, runErr, pending); err != nil {
		log.Error("error handling failed", "error", err)
	}
	if err := m.state.FailSync(ctx, st, runErr.Error()); err != nil {
		log.Error("could not mark sync failed", "error", err)
	}
	m.events.Publish(ctx, notify.Event{
		Type:    notify.SyncFailed,
		State:   *st,
		Attempt: o.Attempt,
		Pending: len(pending),
		Err:     runErr.Error(),
	})
	return newRunError(st, runErr)
}

// pendingIDs returns the ids a failed run did not confirm. For a partial
// run that is the requested ids minus those recorded; for a full run it is
// every eligible id after the run's last processed id.
func (m *SyncManager) pendingIDs(ctx context.Context, d *record.Descriptor, st *model.SyncState, requested []int64) ([]int64, error) {
	if st.Kind == model.KindFull {
		return m.store.EligibleIDs(ctx, store.SourceOf(d), st.LastProcessedID, EligibleCutoff(m.clock.Now()))
	}

	done, err := m.state.ProcessedIDs(ctx, st)
	if err != nil {
		return nil, err
	}
	skip := make(map[int64]bool, len(done))
	for _, id := range done {
		skip[id] = true
	}
	var pending []int64
	for _, id := range requested {
		if !skip[id] {
			pending = append(pending, id)
			skip[id] = true
		}
	}
	return pending, nil
}
