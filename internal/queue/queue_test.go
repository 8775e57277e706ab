package queue

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/sheetsync/internal/model"
)

var epoch = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

func newJob(id string, readyAt time.Time) model.RetryJob {
	return model.RetryJob{ID: id, RecordType: "orders", RecordIDs: []int64{1, 2}, Attempt: 1, ReadyAt: readyAt}
}

func TestMemory_ClaimRespectsReadyTime(t *testing.T) {
	q := NewMemory()
	ctx := context.Background()
	require.NoError(t, q.Enqueue(ctx, newJob("b", epoch.Add(2*time.Minute))))
	require.NoError(t, q.Enqueue(ctx, newJob("a", epoch.Add(time.Minute))))

	claimed, err := q.Claim(ctx, epoch, 10)
	require.NoError(t, err)
	assert.Empty(t, claimed)

	claimed, err = q.Claim(ctx, epoch.Add(time.Minute), 10)
	require.NoError(t, err)
	require.Len(t, claimed, 1)
	assert.Equal(t, "a", claimed[0].ID)
	assert.Equal(t, model.JobRunning, claimed[0].Status)
	assert.Equal(t, 1, q.Len())
}

func TestMemory_OrderAndLimit(t *testing.T) {
	q := NewMemory()
	ctx := context.Background()
	require.NoError(t, q.Enqueue(ctx, newJob("c", epoch)))
	require.NoError(t, q.Enqueue(ctx, newJob("a", epoch)))
	require.NoError(t, q.Enqueue(ctx, newJob("early", epoch.Add(-time.Second))))

	pending := q.Pending()
	require.Len(t, pending, 3)
	assert.Equal(t, []string{"early", "a", "c"}, []string{pending[0].ID, pending[1].ID, pending[2].ID})

	claimed, err := q.Claim(ctx, epoch, 2)
	require.NoError(t, err)
	require.Len(t, claimed, 2)
	assert.Equal(t, "early", claimed[0].ID)
	assert.Equal(t, "a", claimed[1].ID)
}

func TestMemory_AckNack(t *testing.T) {
	q := NewMemory()
	ctx := context.Background()
	require.NoError(t, q.Enqueue(ctx, newJob("ok", epoch)))
	require.NoError(t, q.Enqueue(ctx, newJob("bad", epoch)))
	_, err := q.Claim(ctx, epoch, 10)
	require.NoError(t, err)

	require.NoError(t, q.Ack(ctx, "ok"))
	require.NoError(t, q.Nack(ctx, "bad", "boom"))
	assert.ErrorIs(t, q.Ack(ctx, "ok"), ErrUnknownJob)

	finished := q.Finished()
	require.Len(t, finished, 2)
	assert.Equal(t, model.JobDone, finished[0].Status)
	assert.Equal(t, model.JobFailed, finished[1].Status)
	assert.Equal(t, "boom", finished[1].LastError)
}

func TestMemory_SignalsOnEnqueue(t *testing.T) {
	q := NewMemory()
	require.NoError(t, q.Enqueue(context.Background(), newJob("a", epoch)))

	select {
	case <-q.Wait():
	default:
		t.Fatal("expected a signal after enqueue")
	}
}

func TestMemory_ConcurrentEnqueue(t *testing.T) {
	q := NewMemory()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_ = q.Enqueue(context.Background(), newJob(string(rune('A'+i)), epoch.Add(time.Duration(i)*time.Second)))
		}(i)
	}
	wg.Wait()

	pending := q.Pending()
	require.Len(t, pending, 50)
	for i := 1; i < len(pending); i++ {
		assert.False(t, pending[i].ReadyAt.Before(pending[i-1].ReadyAt))
	}
}
