package engine

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/roach88/sheetsync/internal/model"
	"github.com/roach88/sheetsync/internal/notify"
	"github.com/roach88/sheetsync/internal/queue"
	"github.com/roach88/sheetsync/internal/record"
	"github.com/roach88/sheetsync/internal/sink"
	"github.com/roach88/sheetsync/internal/store"
	"github.com/roach88/sheetsync/internal/testutil"
)

var epoch = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

var ordersTarget = sink.Target{SpreadsheetID: "sheet-1", SheetName: "Orders"}

// ordersSpec is the record type used across engine tests.
func ordersSpec() record.TableSpec {
	return record.TableSpec{
		Name:          "orders",
		Table:         "orders",
		SheetID:       ordersTarget.SpreadsheetID,
		SheetName:     ordersTarget.SheetName,
		Columns:       []string{"id", "email", "status", "total", "created_at"},
		UniqueFields:  []string{"email"},
		CreationField: "created_at",
	}
}

// flakyBackend fails appends once a number of them have succeeded.
type flakyBackend struct {
	*sink.MemoryBackend

	mu        sync.Mutex
	okAppends int // -1 never fails
	appends   int
}

var errQuota = errors.New("quota exceeded")

func (f *flakyBackend) Append(ctx context.Context, t sink.Target, rows [][]any) error {
	f.mu.Lock()
	fail := f.okAppends >= 0 && f.appends >= f.okAppends
	f.appends++
	f.mu.Unlock()
	if fail {
		return errQuota
	}
	return f.MemoryBackend.Append(ctx, t, rows)
}

// failAppendsAfter makes appends fail after n successes; n < 0 heals.
func (f *flakyBackend) failAppendsAfter(n int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.okAppends = n
	f.appends = 0
}

type harness struct {
	t        *testing.T
	store    *store.Store
	backend  *flakyBackend
	client   *sink.Client
	queue    *queue.Memory
	clock    *testutil.FakeClock
	events   *notify.Dispatcher
	manager  *SyncManager
	registry *record.Registry

	mu       sync.Mutex
	received []notify.Event
}

// newHarness opens a temp store with n orders and wires a SyncManager
// against an in-memory sheet.
func newHarness(t *testing.T, n int, specs ...record.TableSpec) *harness {
	t.Helper()
	if len(specs) == 0 {
		specs = []record.TableSpec{ordersSpec()}
	}

	s, err := store.Open(store.DriverSQLite, filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	createOrders(t, s, n)

	types := make([]record.Syncable, len(specs))
	for i, spec := range specs {
		types[i] = record.NewTableType(spec)
	}
	reg, err := record.NewRegistry(types...)
	require.NoError(t, err)

	h := &harness{
		t:        t,
		store:    s,
		backend:  &flakyBackend{MemoryBackend: sink.NewMemoryBackend(), okAppends: -1},
		queue:    queue.NewMemory(),
		clock:    testutil.NewFakeClock(epoch),
		registry: reg,
	}
	h.client = sink.NewClient(sink.Static(h.backend), sink.NewWindow(100, time.Minute, h.clock))
	h.events = notify.NewDispatcher(notify.DefaultToggles())
	h.events.Subscribe(func(ctx context.Context, e notify.Event) {
		h.mu.Lock()
		defer h.mu.Unlock()
		h.received = append(h.received, e)
	})
	h.manager = NewSyncManager(reg, s, h.client, h.queue, h.options()...)
	return h
}

func (h *harness) options() []Option {
	return []Option{
		WithClock(h.clock),
		WithIDs(testutil.NewSequenceIDs("run")),
		WithDispatcher(h.events),
	}
}

func (h *harness) descriptor(name string) *record.Descriptor {
	h.t.Helper()
	d, err := h.registry.Resolve(name)
	require.NoError(h.t, err)
	return d
}

// eventsOf returns the received events of one type.
func (h *harness) eventsOf(typ notify.Type) []notify.Event {
	h.mu.Lock()
	defer h.mu.Unlock()
	var out []notify.Event
	for _, e := range h.received {
		if e.Type == typ {
			out = append(out, e)
		}
	}
	return out
}

func (h *harness) grid() [][]any {
	return h.backend.Grid(ordersTarget)
}

func (h *harness) entries(st *model.SyncState) []model.SyncEntry {
	h.t.Helper()
	entries, err := h.store.Entries(context.Background(), st.ID)
	require.NoError(h.t, err)
	return entries
}

func createOrders(t *testing.T, s *store.Store, n int) {
	t.Helper()
	_, err := s.DB().Exec(`
		CREATE TABLE orders (
			id INTEGER PRIMARY KEY,
			email TEXT NOT NULL UNIQUE,
			status TEXT,
			total REAL,
			created_at DATETIME
		)
	`)
	require.NoError(t, err)
	for i := 1; i <= n; i++ {
		insertOrder(t, s, int64(i))
	}
}

func insertOrder(t *testing.T, s *store.Store, id int64) {
	t.Helper()
	_, err := s.DB().Exec(
		`INSERT INTO orders (id, email, status, total, created_at) VALUES (?, ?, ?, ?, ?)`,
		id, fmt.Sprintf("customer%d@example.com", id), "paid", float64(id)+0.5, epoch.Add(time.Duration(id)*time.Minute),
	)
	require.NoError(t, err)
}

func int64p(v int64) *int64 { return &v }

func seq(from, to int64) []int64 {
	var out []int64
	for i := from; i <= to; i++ {
		out = append(out, i)
	}
	return out
}
