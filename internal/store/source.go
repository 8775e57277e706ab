package store

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/roach88/sheetsync/internal/record"
)

// Source addresses a source table.
type Source struct {
	RecordType string
	Table      string
	PrimaryKey string
}

// SourceOf returns the source of a resolved record type.
func SourceOf(d *record.Descriptor) Source {
	return Source{RecordType: d.Name, Table: d.Table, PrimaryKey: d.PrimaryKey}
}

// quoteIdent quotes a possibly schema-qualified identifier.
func quoteIdent(name string) string {
	parts := strings.Split(name, ".")
	for i, p := range parts {
		parts[i] = `"` + strings.ReplaceAll(p, `"`, `""`) + `"`
	}
	return strings.Join(parts, ".")
}

// eligibleFilter selects rows after the resume point that no entry of the
// record type marks as synced at or after cutoff.
func (src Source) eligibleFilter(after *int64, cutoff time.Time) (string, []any) {
	pk := "t." + quoteIdent(src.PrimaryKey)
	recent := fmt.Sprintf(`NOT EXISTS (
			SELECT 1 FROM sync_entries e
			WHERE e.model_class = ? AND e.record_id = %s AND e.synced_at >= ?
		)`, pk)
	args := []any{src.RecordType, formatTime(cutoff)}
	if after == nil {
		return recent, args
	}
	return pk + " > ? AND " + recent, append([]any{*after}, args...)
}

// EligibleRecords returns up to limit rows with primary key greater than
// after and not synced since cutoff, in ascending key order.
func (s *Store) EligibleRecords(ctx context.Context, src Source, after *int64, cutoff time.Time, limit int) ([]record.Record, error) {
	filter, args := src.eligibleFilter(after, cutoff)
	query := fmt.Sprintf(`SELECT t.* FROM %s t WHERE %s ORDER BY t.%s ASC LIMIT ?`,
		quoteIdent(src.Table), filter, quoteIdent(src.PrimaryKey))
	rows, err := s.query(ctx, s.db, query, append(args, limit)...)
	if err != nil {
		return nil, fmt.Errorf("query eligible %s: %w", src.Table, err)
	}
	defer rows.Close()
	return scanRecords(rows, src.PrimaryKey)
}

// EligibleIDs returns every eligible primary key, ascending.
func (s *Store) EligibleIDs(ctx context.Context, src Source, after *int64, cutoff time.Time) ([]int64, error) {
	filter, args := src.eligibleFilter(after, cutoff)
	query := fmt.Sprintf(`SELECT t.%s FROM %s t WHERE %s ORDER BY t.%s ASC`,
		quoteIdent(src.PrimaryKey), quoteIdent(src.Table), filter, quoteIdent(src.PrimaryKey))
	rows, err := s.query(ctx, s.db, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query eligible ids %s: %w", src.Table, err)
	}
	defer rows.Close()

	ids := []int64{}
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate ids: %w", err)
	}
	return ids, nil
}

// RecordsByIDs returns the rows whose key is in ids, in the order of ids.
// Missing ids are skipped.
func (s *Store) RecordsByIDs(ctx context.Context, src Source, ids []int64) ([]record.Record, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	query := fmt.Sprintf(`SELECT t.* FROM %s t WHERE t.%s IN (%s)`,
		quoteIdent(src.Table), quoteIdent(src.PrimaryKey), placeholders)
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}

	rows, err := s.query(ctx, s.db, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query %s by ids: %w", src.Table, err)
	}
	defer rows.Close()
	recs, err := scanRecords(rows, src.PrimaryKey)
	if err != nil {
		return nil, err
	}

	position := make(map[int64]int, len(ids))
	for i, id := range ids {
		if _, seen := position[id]; !seen {
			position[id] = i
		}
	}
	sort.SliceStable(recs, func(i, j int) bool {
		return position[recs[i].ID] < position[recs[j].ID]
	})
	return recs, nil
}

// Sample returns the lowest-key row of the table, or nil if it is empty.
func (s *Store) Sample(ctx context.Context, src Source) (*record.Record, error) {
	query := fmt.Sprintf(`SELECT t.* FROM %s t ORDER BY t.%s ASC LIMIT 1`,
		quoteIdent(src.Table), quoteIdent(src.PrimaryKey))
	rows, err := s.query(ctx, s.db, query)
	if err != nil {
		return nil, fmt.Errorf("sample %s: %w", src.Table, err)
	}
	defer rows.Close()
	recs, err := scanRecords(rows, src.PrimaryKey)
	if err != nil || len(recs) == 0 {
		return nil, err
	}
	return &recs[0], nil
}

// scanRecords reads generic rows into records keyed by column name.
func scanRecords(rows *sql.Rows, pk string) ([]record.Record, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("columns: %w", err)
	}

	var recs []record.Record
	for rows.Next() {
		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}

		rec := record.Record{
			Fields:  make(map[string]any, len(cols)),
			Columns: append([]string(nil), cols...),
		}
		for i, col := range cols {
			rec.Fields[col] = normalize(values[i])
		}
		id, err := toInt64(rec.Fields[pk])
		if err != nil {
			return nil, fmt.Errorf("primary key %s: %w", pk, err)
		}
		rec.ID = id
		recs = append(recs, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}
	return recs, nil
}

// normalize maps driver-specific representations onto plain Go values.
// go-sqlite3 may return TEXT as []byte.
func normalize(v any) any {
	if b, ok := v.([]byte); ok {
		return string(b)
	}
	return v
}

func toInt64(v any) (int64, error) {
	switch n := v.(type) {
	case int64:
		return n, nil
	case int32:
		return int64(n), nil
	case int:
		return int64(n), nil
	case float64:
		if n != math.Trunc(n) {
			return 0, fmt.Errorf("non-integer key %v", n)
		}
		return int64(n), nil
	case string:
		id, err := strconv.ParseInt(n, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("non-integer key %q", n)
		}
		return id, nil
	case nil:
		return 0, fmt.Errorf("missing key column")
	default:
		return 0, fmt.Errorf("unsupported key type %T", v)
	}
}
