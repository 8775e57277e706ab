package sink

import (
	"context"
	"sort"
	"sync"
)

// Call records one backend call made against a MemoryBackend.
type Call struct {
	Op     string
	Target Target
	Rows   int
}

// MemoryBackend is an in-process grid store. It backs tests and dry runs.
//
// Thread-safety: MemoryBackend is safe for concurrent use.
type MemoryBackend struct {
	mu    sync.Mutex
	grids map[Target][][]any
	calls []Call
	fail  map[string]error
}

// NewMemoryBackend creates an empty backend.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{
		grids: make(map[Target][][]any),
		fail:  make(map[string]error),
	}
}

// FailOn makes every subsequent call of op ("read", "update", "append",
// "clear") return err. A nil err clears the failure.
func (m *MemoryBackend) FailOn(op string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err == nil {
		delete(m.fail, op)
		return
	}
	m.fail[op] = err
}

// Seed replaces the grid of t.
func (m *MemoryBackend) Seed(t Target, rows [][]any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.grids[t] = copyRows(rows)
}

// Grid returns a copy of the grid of t.
func (m *MemoryBackend) Grid(t Target) [][]any {
	m.mu.Lock()
	defer m.mu.Unlock()
	return copyRows(m.grids[t])
}

// Calls returns every call made so far.
func (m *MemoryBackend) Calls() []Call {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Call, len(m.calls))
	copy(out, m.calls)
	return out
}

// Count returns how many calls of op were made.
func (m *MemoryBackend) Count(op string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, c := range m.calls {
		if c.Op == op {
			n++
		}
	}
	return n
}

func (m *MemoryBackend) begin(op string, t Target, rows int) error {
	m.calls = append(m.calls, Call{Op: op, Target: t, Rows: rows})
	return m.fail[op]
}

// Read implements Backend.
func (m *MemoryBackend) Read(ctx context.Context, t Target, limit int) ([][]any, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.begin("read", t, limit); err != nil {
		return nil, err
	}
	grid := m.grids[t]
	if limit > 0 && limit < len(grid) {
		grid = grid[:limit]
	}
	return copyRows(grid), nil
}

// Update implements Backend.
func (m *MemoryBackend) Update(ctx context.Context, t Target, rows map[int][]any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.begin("update", t, len(rows)); err != nil {
		return err
	}
	indices := make([]int, 0, len(rows))
	for i := range rows {
		indices = append(indices, i)
	}
	sort.Ints(indices)

	grid := m.grids[t]
	for _, i := range indices {
		for len(grid) <= i {
			grid = append(grid, []any{})
		}
		grid[i] = copyRow(rows[i])
	}
	m.grids[t] = grid
	return nil
}

// Append implements Backend.
func (m *MemoryBackend) Append(ctx context.Context, t Target, rows [][]any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.begin("append", t, len(rows)); err != nil {
		return err
	}
	m.grids[t] = append(m.grids[t], copyRows(rows)...)
	return nil
}

// Clear implements Backend.
func (m *MemoryBackend) Clear(ctx context.Context, t Target) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.begin("clear", t, 0); err != nil {
		return err
	}
	delete(m.grids, t)
	return nil
}

func copyRow(row []any) []any {
	out := make([]any, len(row))
	copy(out, row)
	return out
}

func copyRows(rows [][]any) [][]any {
	if rows == nil {
		return nil
	}
	out := make([][]any, len(rows))
	for i, r := range rows {
		out[i] = copyRow(r)
	}
	return out
}
