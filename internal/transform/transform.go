// Package transform converts source records into flat, ordered rows of
// display strings ready for the sheet.
//
// Formatting rules:
//   - time.Time → "2006-01-02 15:04:05" in the value's own location
//   - bool → "Yes" / "No"
//   - nil → ""
//   - slices, maps and structs → compact JSON
//   - strings → NFC normalized
package transform

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strconv"
	"time"

	"golang.org/x/text/unicode/norm"

	"github.com/roach88/sheetsync/internal/record"
)

// TimeLayout is the layout used for timestamp cells.
const TimeLayout = "2006-01-02 15:04:05"

// Cell is one formatted column value.
type Cell struct {
	Column string
	Value  string
}

// Row is an ordered mapping of column name to display string.
type Row []Cell

// Columns returns the column names in row order.
func (r Row) Columns() []string {
	cols := make([]string, len(r))
	for i, c := range r {
		cols[i] = c.Column
	}
	return cols
}

// Lookup returns the value of col and whether the row has it.
func (r Row) Lookup(col string) (string, bool) {
	for _, c := range r {
		if c.Column == col {
			return c.Value, true
		}
	}
	return "", false
}

// Values returns the cell values in row order.
func (r Row) Values() []any {
	out := make([]any, len(r))
	for i, c := range r {
		out[i] = c.Value
	}
	return out
}

// Record formats the row the record type produces for rec.
func Record(d *record.Descriptor, rec record.Record) Row {
	fields := d.Row(rec)
	row := make(Row, len(fields))
	for i, f := range fields {
		row[i] = Cell{Column: f.Name, Value: Value(f.Value)}
	}
	return row
}

// Batch formats every record, preserving order. Returns nil for no records.
func Batch(d *record.Descriptor, recs []record.Record) []Row {
	if len(recs) == 0 {
		return nil
	}
	rows := make([]Row, len(recs))
	for i, rec := range recs {
		rows[i] = Record(d, rec)
	}
	return rows
}

// Value formats a single raw value as sheet text.
func Value(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return norm.NFC.String(val)
	case []byte:
		return norm.NFC.String(string(val))
	case bool:
		if val {
			return "Yes"
		}
		return "No"
	case time.Time:
		return val.Format(TimeLayout)
	case *time.Time:
		if val == nil {
			return ""
		}
		return val.Format(TimeLayout)
	case int:
		return strconv.Itoa(val)
	case int32:
		return strconv.FormatInt(int64(val), 10)
	case int64:
		return strconv.FormatInt(val, 10)
	case uint64:
		return strconv.FormatUint(val, 10)
	case float32:
		return strconv.FormatFloat(float64(val), 'f', -1, 32)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case fmt.Stringer:
		return norm.NFC.String(val.String())
	}

	switch reflect.ValueOf(v).Kind() {
	case reflect.Slice, reflect.Array, reflect.Map, reflect.Struct:
		b, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprint(v)
		}
		return string(b)
	case reflect.Pointer:
		rv := reflect.ValueOf(v)
		if rv.IsNil() {
			return ""
		}
		return Value(rv.Elem().Interface())
	}
	return fmt.Sprint(v)
}
