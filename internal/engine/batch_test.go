package engine

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/sheetsync/internal/model"
	"github.com/roach88/sheetsync/internal/notify"
	"github.com/roach88/sheetsync/internal/record"
	"github.com/roach88/sheetsync/internal/rowmap"
)

func TestFullSync_ChunksEveryEligibleRow(t *testing.T) {
	h := newHarness(t, 250)
	ctx := context.Background()

	st, err := h.manager.FullSync(ctx, "orders", Options{})
	require.NoError(t, err)

	assert.Equal(t, model.StatusCompleted, st.Status)
	assert.Equal(t, uint64(250), st.TotalProcessed)
	assert.Equal(t, int64p(250), st.LastProcessedID)
	assert.Len(t, h.entries(st), 250)
	assert.Equal(t, 3, h.backend.Count("append"))

	var chunks []int
	for _, e := range h.eventsOf(notify.ChunkProcessed) {
		chunks = append(chunks, e.Processed)
	}
	assert.Equal(t, []int{100, 100, 50}, chunks)
	assert.Len(t, h.eventsOf(notify.SyncStarted), 1)
	assert.Len(t, h.eventsOf(notify.SyncCompleted), 1)

	grid := h.grid()
	require.Len(t, grid, 251)
	assert.Equal(t, []any{"id", "email", "status", "total", "created_at", rowmap.HashColumn}, grid[0])
	assert.Equal(t, "1", grid[1][0])
	assert.Equal(t, "customer1@example.com", grid[1][1])
	assert.Equal(t, "250", grid[250][0])
	assert.NotEmpty(t, grid[250][5])

	stored, err := h.store.GetSyncState(ctx, st.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusCompleted, stored.Status)
	assert.Equal(t, uint64(250), stored.TotalProcessed)
}

func TestFullSync_ResyncRewritesRowsInPlace(t *testing.T) {
	h := newHarness(t, 250)
	ctx := context.Background()

	_, err := h.manager.FullSync(ctx, "orders", Options{})
	require.NoError(t, err)
	before := h.grid()

	h.clock.Advance(8 * 24 * time.Hour)
	st, err := h.manager.FullSync(ctx, "orders", Options{})
	require.NoError(t, err)

	assert.Equal(t, uint64(250), st.TotalProcessed)
	assert.Equal(t, 3, h.backend.Count("append"), "every row matched by hash, nothing appended")
	assert.Equal(t, before, h.grid())
}

func TestFullSync_SkipsRecentlySyncedRecords(t *testing.T) {
	h := newHarness(t, 3)
	ctx := context.Background()

	_, err := h.manager.PartialSync(ctx, "orders", []int64{1}, Options{})
	require.NoError(t, err)
	h.clock.Advance(3 * 24 * time.Hour)
	_, err = h.manager.PartialSync(ctx, "orders", []int64{2}, Options{})
	require.NoError(t, err)

	// Record 1 was synced eight days ago, record 2 five.
	h.clock.Advance(5 * 24 * time.Hour)
	st, err := h.manager.FullSync(ctx, "orders", Options{})
	require.NoError(t, err)

	ids, err := h.manager.State().ProcessedIDs(ctx, st)
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 3}, ids)
	assert.Equal(t, uint64(2), st.TotalProcessed)
}

func TestFullSync_NothingEligible(t *testing.T) {
	h := newHarness(t, 0)

	st, err := h.manager.FullSync(context.Background(), "orders", Options{})
	require.NoError(t, err)

	assert.Equal(t, model.StatusCompleted, st.Status)
	assert.Zero(t, st.TotalProcessed)
	assert.Nil(t, st.LastProcessedID)
	assert.Empty(t, h.grid(), "no sample row, no header")
	assert.Empty(t, h.eventsOf(notify.ChunkProcessed))
}

func TestFullSync_ResumesAfterFailedRun(t *testing.T) {
	h := newHarness(t, 250)
	ctx := context.Background()

	h.backend.failAppendsAfter(1)
	failed, err := h.manager.FullSync(ctx, "orders", Options{})
	require.Error(t, err)
	assert.Equal(t, model.StatusFailed, failed.Status)
	assert.Equal(t, uint64(100), failed.TotalProcessed)
	assert.Equal(t, int64p(100), failed.LastProcessedID)
	assert.Len(t, h.entries(failed), 100)

	h.backend.failAppendsAfter(-1)
	resumed, err := h.manager.FullSync(ctx, "orders", Options{})
	require.NoError(t, err)

	assert.Equal(t, uint64(150), resumed.TotalProcessed)
	assert.Equal(t, int64p(250), resumed.LastProcessedID)
	ids, err := h.manager.State().ProcessedIDs(ctx, resumed)
	require.NoError(t, err)
	assert.Equal(t, seq(101, 250), ids)
	assert.Len(t, h.grid(), 251)
}

func TestFullSync_ReplaceModeClearsSheet(t *testing.T) {
	h := newHarness(t, 2)
	h.backend.Seed(ordersTarget, [][]any{{"stale"}, {"row"}, {"data"}})

	st, err := h.manager.FullSync(context.Background(), "orders", Options{Mode: model.ModeReplace})
	require.NoError(t, err)

	assert.Equal(t, model.ModeReplace, st.Mode)
	assert.Equal(t, 1, h.backend.Count("clear"))
	grid := h.grid()
	require.Len(t, grid, 3)
	assert.Equal(t, "id", grid[0][0])
}

func TestFullSync_ModeFromRecordType(t *testing.T) {
	spec := ordersSpec()
	spec.SyncMode = model.ModeReplace
	h := newHarness(t, 1, spec)

	st, err := h.manager.FullSync(context.Background(), "orders", Options{})
	require.NoError(t, err)
	assert.Equal(t, model.ModeReplace, st.Mode)
	assert.Equal(t, 1, h.backend.Count("clear"))

	st, err = h.manager.FullSync(context.Background(), "orders", Options{Mode: model.ModeAppend})
	require.NoError(t, err)
	assert.Equal(t, model.ModeAppend, st.Mode, "an explicit mode wins")
	assert.Equal(t, 1, h.backend.Count("clear"))
}

func TestFullSync_PreferredBatchSize(t *testing.T) {
	spec := ordersSpec()
	spec.BatchSize = 2
	h := newHarness(t, 5, spec)

	_, err := h.manager.FullSync(context.Background(), "orders", Options{})
	require.NoError(t, err)
	assert.Len(t, h.eventsOf(notify.ChunkProcessed), 3)
	assert.Equal(t, 3, h.backend.Count("append"))
}

func TestFullSync_WithoutDedupAlignsToHeader(t *testing.T) {
	spec := ordersSpec()
	off := false
	spec.Dedup = &off
	spec.Headers = []string{"email", "id"}
	h := newHarness(t, 2, spec)

	_, err := h.manager.FullSync(context.Background(), "orders", Options{})
	require.NoError(t, err)

	assert.Equal(t, 2, h.backend.Count("read"), "header checks only, no snapshot reads")
	assert.Equal(t, [][]any{
		{"email", "id"},
		{"customer1@example.com", "1"},
		{"customer2@example.com", "2"},
	}, h.grid())
}

func TestPartialSync_WithoutDedupUsesColumnLetters(t *testing.T) {
	spec := ordersSpec()
	off := false
	spec.Dedup = &off
	spec.Columns = []string{"id", "status"}
	h := newHarness(t, 2, spec)

	_, err := h.manager.PartialSync(context.Background(), "orders", []int64{2}, Options{})
	require.NoError(t, err)

	assert.Equal(t, [][]any{
		{"A", "B"},
		{"2", "paid"},
	}, h.grid())
}

func TestFullSync_InfersIdentifyingFields(t *testing.T) {
	spec := ordersSpec()
	spec.UniqueFields = nil
	h := newHarness(t, 3, spec)
	ctx := context.Background()

	_, err := h.manager.FullSync(ctx, "orders", Options{})
	require.NoError(t, err)

	h.clock.Advance(8 * 24 * time.Hour)
	_, err = h.manager.FullSync(ctx, "orders", Options{})
	require.NoError(t, err)

	assert.Len(t, h.grid(), 4, "inferred identity is stable across runs")
	assert.Equal(t, 1, h.backend.Count("append"))
}

func TestFullSync_ExistingSheetGainsHashColumn(t *testing.T) {
	h := newHarness(t, 1)
	h.backend.Seed(ordersTarget, [][]any{
		{"id", "email"},
		{"legacy", "row"},
	})

	_, err := h.manager.FullSync(context.Background(), "orders", Options{})
	require.NoError(t, err)

	grid := h.grid()
	require.Len(t, grid, 3)
	assert.Equal(t, []any{"id", "email", rowmap.HashColumn}, grid[0])
	assert.Equal(t, []any{"legacy", "row"}, grid[1], "rows without a hash are never rewritten")
	assert.Equal(t, "1", grid[2][0])
}

// linkedOrders remembers the sheet row each order was written to.
type linkedOrders struct {
	*record.TableType

	mu   sync.Mutex
	rows map[int64]string
}

func (l *linkedOrders) SinkRowID(rec record.Record) string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.rows[rec.ID]
}

func (l *linkedOrders) SetSinkRowID(rec record.Record, rowID string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.rows[rec.ID] = rowID
}

func TestFullSync_LinksRecordsToRows(t *testing.T) {
	h := newHarness(t, 3)
	spec := ordersSpec()
	spec.Name = "linked_orders"
	spec.BatchSize = 2
	linked := &linkedOrders{TableType: record.NewTableType(spec), rows: map[int64]string{}}
	require.NoError(t, h.registry.Register(linked))
	ctx := context.Background()

	_, err := h.manager.FullSync(ctx, "linked_orders", Options{})
	require.NoError(t, err)

	assert.Equal(t, map[int64]string{
		1: "'Orders'!A2",
		2: "'Orders'!A3",
		3: "'Orders'!A4",
	}, linked.rows)

	h.clock.Advance(8 * 24 * time.Hour)
	linked.rows = map[int64]string{}
	_, err = h.manager.PartialSync(ctx, "linked_orders", []int64{3, 1}, Options{})
	require.NoError(t, err)
	assert.Equal(t, map[int64]string{1: "'Orders'!A2", 3: "'Orders'!A4"}, linked.rows)
}
