package queue

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/sheetsync/internal/model"
	"github.com/roach88/sheetsync/internal/testutil"
)

type recordingRunner struct {
	mu   sync.Mutex
	ran  []string
	fail map[string]error
}

func (r *recordingRunner) RunRetry(ctx context.Context, job model.RetryJob) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ran = append(r.ran, job.ID)
	return r.fail[job.ID]
}

func (r *recordingRunner) Ran() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.ran...)
}

func TestWorker_RunOnce(t *testing.T) {
	clock := testutil.NewFakeClock(epoch)
	q := NewMemory()
	ctx := context.Background()
	require.NoError(t, q.Enqueue(ctx, newJob("due", epoch.Add(-time.Second))))
	require.NoError(t, q.Enqueue(ctx, newJob("broken", epoch)))
	require.NoError(t, q.Enqueue(ctx, newJob("future", epoch.Add(time.Minute))))

	runner := &recordingRunner{fail: map[string]error{"broken": errors.New("sink down")}}
	w := NewWorker(q, runner, WithClock(clock))

	n, err := w.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, []string{"due", "broken"}, runner.Ran())

	finished := q.Finished()
	require.Len(t, finished, 2)
	assert.Equal(t, model.JobDone, finished[0].Status)
	assert.Equal(t, model.JobFailed, finished[1].Status)
	assert.Equal(t, "sink down", finished[1].LastError)

	clock.Advance(time.Minute)
	n, err = w.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestWorker_RunStopsOnCancel(t *testing.T) {
	q := NewMemory()
	runner := &recordingRunner{}
	w := NewWorker(q, runner, WithPollInterval(10*time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	require.NoError(t, q.Enqueue(context.Background(), newJob("a", time.Now().Add(-time.Second))))
	require.Eventually(t, func() bool { return len(runner.Ran()) == 1 }, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("worker did not stop")
	}
}

func TestWorker_CancelledReleasesClaimed(t *testing.T) {
	q := NewMemory()
	require.NoError(t, q.Enqueue(context.Background(), newJob("a", epoch)))
	w := NewWorker(q, &recordingRunner{}, WithClock(testutil.NewFakeClock(epoch)))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	n, err := w.RunOnce(ctx)

	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, n)
	finished := q.Finished()
	require.Len(t, finished, 1)
	assert.Equal(t, model.JobFailed, finished[0].Status)
}
