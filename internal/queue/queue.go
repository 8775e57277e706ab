// Package queue holds delayed retry jobs and the worker that runs them.
//
// A job is a deferred partial sync: a record type, the ids a failed run left
// behind, and the attempt number. Producers enqueue a job with a ready time;
// the Worker claims due jobs and hands them to a Runner. The triggering run
// never waits for its retry.
package queue

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/roach88/sheetsync/internal/model"
)

// ErrUnknownJob is returned when acking a job that is not running.
var ErrUnknownJob = errors.New("unknown or unclaimed job")

// Queue is a delayed work queue of retry jobs.
type Queue interface {
	// Enqueue stores a job to run at job.ReadyAt.
	Enqueue(ctx context.Context, job model.RetryJob) error
	// Claim hands out up to limit jobs whose ready time is at or before now.
	Claim(ctx context.Context, now time.Time, limit int) ([]model.RetryJob, error)
	// Ack marks a claimed job done.
	Ack(ctx context.Context, id string) error
	// Nack marks a claimed job failed.
	Nack(ctx context.Context, id string, reason string) error
}

// Memory is an in-process Queue ordered by ready time.
//
// Thread-safety: all methods are safe for concurrent use. Enqueue signals
// through a buffered channel so a waiting worker wakes without polling.
type Memory struct {
	mu       sync.Mutex
	pending  []model.RetryJob // sorted by ReadyAt, then ID
	running  map[string]model.RetryJob
	finished []model.RetryJob
	signal   chan struct{} // buffered, size 1
}

// NewMemory creates an empty queue.
func NewMemory() *Memory {
	return &Memory{
		running: make(map[string]model.RetryJob),
		signal:  make(chan struct{}, 1),
	}
}

// Enqueue implements Queue.
func (m *Memory) Enqueue(ctx context.Context, job model.RetryJob) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	job.Status = model.JobPending
	i := sort.Search(len(m.pending), func(i int) bool {
		p := m.pending[i]
		if !p.ReadyAt.Equal(job.ReadyAt) {
			return p.ReadyAt.After(job.ReadyAt)
		}
		return p.ID > job.ID
	})
	m.pending = append(m.pending, model.RetryJob{})
	copy(m.pending[i+1:], m.pending[i:])
	m.pending[i] = job

	// Non-blocking: a buffer of 1 coalesces multiple signals.
	select {
	case m.signal <- struct{}{}:
	default:
	}
	return nil
}

// Claim implements Queue.
func (m *Memory) Claim(ctx context.Context, now time.Time, limit int) ([]model.RetryJob, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var claimed []model.RetryJob
	for len(m.pending) > 0 && len(claimed) < limit && !m.pending[0].ReadyAt.After(now) {
		job := m.pending[0]
		m.pending[0] = model.RetryJob{}
		m.pending = m.pending[1:]
		job.Status = model.JobRunning
		m.running[job.ID] = job
		claimed = append(claimed, job)
	}
	if len(m.pending) == 0 {
		m.pending = nil
	}
	return claimed, nil
}

// Ack implements Queue.
func (m *Memory) Ack(ctx context.Context, id string) error {
	return m.finish(id, model.JobDone, "")
}

// Nack implements Queue.
func (m *Memory) Nack(ctx context.Context, id string, reason string) error {
	return m.finish(id, model.JobFailed, reason)
}

func (m *Memory) finish(id string, status model.JobStatus, reason string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.running[id]
	if !ok {
		return ErrUnknownJob
	}
	delete(m.running, id)
	job.Status = status
	job.LastError = reason
	m.finished = append(m.finished, job)
	return nil
}

// Wait returns a channel that signals when a job may have been enqueued.
func (m *Memory) Wait() <-chan struct{} {
	return m.signal
}

// Pending returns a copy of the jobs not yet claimed, in ready order.
func (m *Memory) Pending() []model.RetryJob {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]model.RetryJob, len(m.pending))
	copy(out, m.pending)
	return out
}

// Finished returns a copy of the acked and nacked jobs.
func (m *Memory) Finished() []model.RetryJob {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]model.RetryJob, len(m.finished))
	copy(out, m.finished)
	return out
}

// Len returns the number of pending jobs.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.pending)
}
