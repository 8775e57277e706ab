package store

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/roach88/sheetsync/internal/model"
)

var epoch = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

// createTestStore creates a new temp-file store for testing.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(DriverSQLite, path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// createTestState inserts a running sync state.
func createTestState(t *testing.T, s *Store, id, recordType string, kind model.Kind, at time.Time) model.SyncState {
	t.Helper()
	st := model.SyncState{
		ID:         id,
		RecordType: recordType,
		Kind:       kind,
		Mode:       model.ModeAppend,
		Status:     model.StatusRunning,
		StartedAt:  at,
		CreatedAt:  at,
		UpdatedAt:  at,
	}
	if err := s.CreateSyncState(context.Background(), st); err != nil {
		t.Fatalf("CreateSyncState() failed: %v", err)
	}
	return st
}

// createOrdersTable creates and fills an orders source table with ids 1..n.
func createOrdersTable(t *testing.T, s *Store, n int) {
	t.Helper()
	if _, err := s.db.Exec(`CREATE TABLE customers (id INTEGER PRIMARY KEY, name TEXT)`); err != nil {
		t.Fatalf("create customers: %v", err)
	}
	for i := 0; i < 7; i++ {
		if _, err := s.db.Exec(`INSERT INTO customers (id, name) VALUES (?, ?)`, i, fmt.Sprintf("c%d", i)); err != nil {
			t.Fatalf("insert customer: %v", err)
		}
	}
	_, err := s.db.Exec(`
		CREATE TABLE orders (
			id INTEGER PRIMARY KEY,
			customer_id INTEGER REFERENCES customers(id),
			email TEXT NOT NULL UNIQUE,
			status TEXT,
			total REAL,
			created_at DATETIME
		)
	`)
	if err != nil {
		t.Fatalf("create orders: %v", err)
	}
	if _, err := s.db.Exec(`CREATE INDEX idx_orders_status ON orders(status)`); err != nil {
		t.Fatalf("create index: %v", err)
	}
	for i := 1; i <= n; i++ {
		_, err := s.db.Exec(
			`INSERT INTO orders (id, customer_id, email, status, total, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
			i, i%7, fmt.Sprintf("customer%d@example.com", i), "paid", float64(i)+0.5, epoch.Add(time.Duration(i)*time.Minute),
		)
		if err != nil {
			t.Fatalf("insert order %d: %v", i, err)
		}
	}
}

var ordersSource = Source{RecordType: "orders", Table: "orders", PrimaryKey: "id"}

func int64p(v int64) *int64 { return &v }
