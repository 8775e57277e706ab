package engine

import (
	"context"
	"log/slog"
	"time"

	"github.com/roach88/sheetsync/internal/clock"
	"github.com/roach88/sheetsync/internal/model"
	"github.com/roach88/sheetsync/internal/notify"
	"github.com/roach88/sheetsync/internal/queue"
)

// Decision is what ErrorHandler did about a failed run.
type Decision struct {
	// Retry is true if a retry job was enqueued.
	Retry bool
	// Exhausted is true if the record type hit its retry limit.
	Exhausted bool
	// Attempt is the 1-based retry attempt, when retrying.
	Attempt int
	Delay   time.Duration
	JobID   string
	Pending []int64
}

// ErrorHandler decides whether a failed run is retried.
//
// The retry count is the number of failed runs of the record type in the
// last hour, not a counter carried by the run. Unrelated failures of the
// same type within the hour therefore share one budget.
type ErrorHandler struct {
	state      *StateManager
	queue      queue.Queue
	events     *notify.Dispatcher
	clock      clock.Clock
	ids        IDGenerator
	maxRetries int
	logger     *slog.Logger
}

// NewErrorHandler creates a handler that schedules retries on q.
func NewErrorHandler(state *StateManager, q queue.Queue, opts ...Option) *ErrorHandler {
	o := newOptions(opts)
	return &ErrorHandler{
		state:      state,
		queue:      q,
		events:     o.events,
		clock:      o.clock,
		ids:        o.ids,
		maxRetries: o.defaults.MaxRetries,
		logger:     o.logger,
	}
}

// BackoffDelay returns the delay before retry attempt n: 1, 2, 4, ... minutes.
func BackoffDelay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	return time.Duration(1<<(attempt-1)) * time.Minute
}

// RetryTags labels retry jobs of a record type.
func RetryTags(recordType string) []string {
	return []string{"sheet-sync", "retry", recordType}
}

// HandleError is called with a failed run before it is marked failed.
// pending holds the ids the run did not confirm.
//
// Below the retry limit it enqueues a partial sync of pending after the
// backoff delay; at the limit it reports the final failure.
func (h *ErrorHandler) HandleError(ctx context.Context, st *model.SyncState, runErr error, pending []int64) (Decision, error) {
	now := h.clock.Now().UTC()
	failures, err := h.state.FailuresSince(ctx, st.RecordType, now.Add(-RetryWindow))
	if err != nil {
		return Decision{}, err
	}
	log := h.logger.With("record_type", st.RecordType, "sync_state_id", st.ID)

	if failures >= h.maxRetries {
		log.Error("sync failed after maximum retries",
			"failures_last_hour", failures, "max_retries", h.maxRetries, "error", runErr)
		h.events.Publish(ctx, notify.Event{
			Type:    notify.RetriesExhausted,
			State:   *st,
			Attempt: failures + 1,
			Pending: len(pending),
			Err:     runErr.Error(),
		})
		return Decision{Exhausted: true, Pending: pending}, nil
	}

	attempt := failures + 1
	delay := BackoffDelay(attempt)
	d := Decision{Attempt: attempt, Delay: delay, Pending: pending}
	if len(pending) == 0 {
		log.Info("nothing left to retry", "attempt", attempt)
		return d, nil
	}

	job := model.RetryJob{
		ID:         h.ids.NewID(),
		RecordType: st.RecordType,
		RecordIDs:  pending,
		Attempt:    attempt,
		Tags:       RetryTags(st.RecordType),
		ReadyAt:    now.Add(delay),
		Status:     model.JobPending,
		CreatedAt:  now,
	}
	if err := h.queue.Enqueue(ctx, job); err != nil {
		return d, err
	}
	d.Retry = true
	d.JobID = job.ID

	log.Warn("retry scheduled",
		"attempt", attempt, "delay", delay, "job_id", job.ID, "failed_records", len(pending))
	h.events.Publish(ctx, notify.Event{
		Type:    notify.RetryScheduled,
		State:   *st,
		Attempt: attempt,
		Pending: len(pending),
		RetryIn: delay,
		Err:     runErr.Error(),
	})
	return d, nil
}
