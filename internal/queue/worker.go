package queue

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/roach88/sheetsync/internal/clock"
	"github.com/roach88/sheetsync/internal/model"
)

// Runner executes one retry job.
type Runner interface {
	RunRetry(ctx context.Context, job model.RetryJob) error
}

// Waiter is implemented by queues that can wake a worker on enqueue.
type Waiter interface {
	Wait() <-chan struct{}
}

// Worker polls a Queue and runs due jobs one at a time.
type Worker struct {
	queue  Queue
	runner Runner
	clock  clock.Clock
	poll   time.Duration
	batch  int
	logger *slog.Logger
}

// WorkerOption configures a Worker.
type WorkerOption func(*Worker)

// WithPollInterval sets how often the queue is polled for due jobs.
func WithPollInterval(d time.Duration) WorkerOption {
	return func(w *Worker) {
		if d > 0 {
			w.poll = d
		}
	}
}

// WithBatch sets how many jobs are claimed per poll.
func WithBatch(n int) WorkerOption {
	return func(w *Worker) {
		if n > 0 {
			w.batch = n
		}
	}
}

// WithClock sets the worker's clock.
func WithClock(c clock.Clock) WorkerOption {
	return func(w *Worker) {
		w.clock = clock.Or(c)
	}
}

// WithWorkerLogger sets the worker's logger.
func WithWorkerLogger(l *slog.Logger) WorkerOption {
	return func(w *Worker) {
		if l != nil {
			w.logger = l
		}
	}
}

// NewWorker creates a worker that runs jobs from q with r.
func NewWorker(q Queue, r Runner, opts ...WorkerOption) *Worker {
	w := &Worker{
		queue:  q,
		runner: r,
		clock:  clock.Real{},
		poll:   5 * time.Second,
		batch:  10,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// RunOnce claims the jobs due now and runs them. It returns how many jobs
// ran. A failing job is nacked and does not stop the others.
func (w *Worker) RunOnce(ctx context.Context) (int, error) {
	jobs, err := w.queue.Claim(ctx, w.clock.Now(), w.batch)
	if err != nil {
		return 0, err
	}
	for i, job := range jobs {
		if err := ctx.Err(); err != nil {
			w.release(jobs[i:], err)
			return i, err
		}
		log := w.logger.With("job_id", job.ID, "record_type", job.RecordType, "attempt", job.Attempt)
		log.Info("running retry", "records", len(job.RecordIDs))

		if err := w.runner.RunRetry(ctx, job); err != nil {
			log.Warn("retry failed", "error", err)
			if nerr := w.queue.Nack(ctx, job.ID, err.Error()); nerr != nil {
				log.Error("nack failed", "error", nerr)
			}
			continue
		}
		if err := w.queue.Ack(ctx, job.ID); err != nil {
			log.Error("ack failed", "error", err)
		}
	}
	return len(jobs), nil
}

// release nacks claimed jobs that were never run.
func (w *Worker) release(jobs []model.RetryJob, cause error) {
	for _, job := range jobs {
		if err := w.queue.Nack(context.Background(), job.ID, "not run: "+cause.Error()); err != nil {
			w.logger.Error("nack failed", "job_id", job.ID, "error", err)
		}
	}
}

// Run processes jobs until ctx is cancelled. It returns nil on cancellation.
func (w *Worker) Run(ctx context.Context) error {
	var wake <-chan struct{}
	if waiter, ok := w.queue.(Waiter); ok {
		wake = waiter.Wait()
	}

	for {
		if _, err := w.RunOnce(ctx); err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil
			}
			w.logger.Error("poll failed", "error", err)
		}

		sleepCtx, cancel := context.WithCancel(ctx)
		done := make(chan error, 1)
		go func() { done <- w.clock.Sleep(sleepCtx, w.poll) }()
		select {
		case <-ctx.Done():
			cancel()
			<-done
			return nil
		case <-wake:
			cancel()
			<-done
		case <-done:
			cancel()
		}
	}
}
