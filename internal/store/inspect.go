package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/roach88/sheetsync/internal/fuzzy"
)

// InspectColumns reports the keys, indexes and nullability of a table's
// columns, in table order.
func (s *Store) InspectColumns(ctx context.Context, table string) ([]fuzzy.Column, error) {
	if s.driver == DriverPostgres {
		return s.inspectPostgres(ctx, table)
	}
	return s.inspectSQLite(ctx, table)
}

// columnSet accumulates facts per column while keeping table order.
type columnSet struct {
	order []string
	cols  map[string]*fuzzy.Column
}

func newColumnSet() *columnSet {
	return &columnSet{cols: make(map[string]*fuzzy.Column)}
}

func (c *columnSet) add(name string) *fuzzy.Column {
	if col, ok := c.cols[name]; ok {
		return col
	}
	col := &fuzzy.Column{Name: name}
	c.cols[name] = col
	c.order = append(c.order, name)
	return col
}

// get returns the column if it was declared, nil otherwise.
func (c *columnSet) get(name string) *fuzzy.Column {
	return c.cols[name]
}

func (c *columnSet) list() []fuzzy.Column {
	out := make([]fuzzy.Column, len(c.order))
	for i, name := range c.order {
		out[i] = *c.cols[name]
	}
	return out
}

func (s *Store) inspectSQLite(ctx context.Context, table string) ([]fuzzy.Column, error) {
	set := newColumnSet()

	rows, err := s.db.QueryContext(ctx, `SELECT name, "notnull", pk FROM pragma_table_info(?)`, table)
	if err != nil {
		return nil, fmt.Errorf("table info %s: %w", table, err)
	}
	for rows.Next() {
		var name string
		var notNull, pk int
		if err := rows.Scan(&name, &notNull, &pk); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan table info: %w", err)
		}
		col := set.add(name)
		col.Primary = pk > 0
		col.Nullable = notNull == 0 && pk == 0
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate table info: %w", err)
	}
	if len(set.order) == 0 {
		return nil, fmt.Errorf("table %s not found", table)
	}

	type index struct {
		name   string
		unique bool
	}
	var indexes []index
	rows, err = s.db.QueryContext(ctx, `SELECT name, "unique" FROM pragma_index_list(?)`, table)
	if err != nil {
		return nil, fmt.Errorf("index list %s: %w", table, err)
	}
	for rows.Next() {
		var idx index
		if err := rows.Scan(&idx.name, &idx.unique); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan index list: %w", err)
		}
		indexes = append(indexes, idx)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate index list: %w", err)
	}

	for _, idx := range indexes {
		names, err := s.stringColumn(ctx, `SELECT name FROM pragma_index_info(?)`, idx.name)
		if err != nil {
			return nil, fmt.Errorf("index info %s: %w", idx.name, err)
		}
		for _, name := range names {
			if col := set.get(name); col != nil {
				col.Indexed = true
				col.Unique = col.Unique || idx.unique
			}
		}
	}

	fks, err := s.stringColumn(ctx, `SELECT "from" FROM pragma_foreign_key_list(?)`, table)
	if err != nil {
		return nil, fmt.Errorf("foreign keys %s: %w", table, err)
	}
	for _, name := range fks {
		if col := set.get(name); col != nil {
			col.Foreign = true
		}
	}
	return set.list(), nil
}

func (s *Store) inspectPostgres(ctx context.Context, table string) ([]fuzzy.Column, error) {
	set := newColumnSet()
	schema, name := "", table
	if i := strings.LastIndexByte(table, '.'); i >= 0 {
		schema, name = table[:i], table[i+1:]
	}

	rows, err := s.query(ctx, s.db, `
		SELECT column_name, is_nullable
		FROM information_schema.columns
		WHERE table_name = ? AND table_schema = COALESCE(NULLIF(?, ''), current_schema())
		ORDER BY ordinal_position
	`, name, schema)
	if err != nil {
		return nil, fmt.Errorf("columns %s: %w", table, err)
	}
	for rows.Next() {
		var col, nullable string
		if err := rows.Scan(&col, &nullable); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan columns: %w", err)
		}
		set.add(col).Nullable = nullable == "YES"
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate columns: %w", err)
	}
	if len(set.order) == 0 {
		return nil, fmt.Errorf("table %s not found", table)
	}

	rows, err = s.query(ctx, s.db, `
		SELECT a.attname, ix.indisprimary, ix.indisunique
		FROM pg_index ix
		JOIN pg_attribute a ON a.attrelid = ix.indrelid AND a.attnum = ANY(ix.indkey)
		WHERE ix.indrelid = to_regclass(?)
	`, table)
	if err != nil {
		return nil, fmt.Errorf("indexes %s: %w", table, err)
	}
	for rows.Next() {
		var colName string
		var primary, unique bool
		if err := rows.Scan(&colName, &primary, &unique); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan indexes: %w", err)
		}
		if col := set.get(colName); col != nil {
			col.Indexed = true
			col.Primary = col.Primary || primary
			col.Unique = col.Unique || unique
			if primary {
				col.Nullable = false
			}
		}
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate indexes: %w", err)
	}

	fks, err := s.stringColumn(ctx, s.rebind(`
		SELECT kcu.column_name
		FROM information_schema.table_constraints tc
		JOIN information_schema.key_column_usage kcu
		  ON tc.constraint_name = kcu.constraint_name AND tc.table_schema = kcu.table_schema
		WHERE tc.constraint_type = 'FOREIGN KEY' AND tc.table_name = ?
	`), name)
	if err != nil {
		return nil, fmt.Errorf("foreign keys %s: %w", table, err)
	}
	for _, colName := range fks {
		if col := set.get(colName); col != nil {
			col.Foreign = true
		}
	}
	return set.list(), nil
}

// stringColumn runs an already-bound query returning one text column.
func (s *Store) stringColumn(ctx context.Context, query string, args ...any) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}
