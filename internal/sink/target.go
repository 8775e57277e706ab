package sink

import (
	"fmt"
	"strings"
)

// Target addresses one grid: a spreadsheet id and a sheet (tab) name.
type Target struct {
	SpreadsheetID string
	SheetName     string
}

func (t Target) String() string {
	return t.SpreadsheetID + "/" + t.SheetName
}

// quotedSheet returns the sheet name quoted for A1 notation.
func (t Target) quotedSheet() string {
	return "'" + strings.ReplaceAll(t.SheetName, "'", "''") + "'"
}

// A1 returns the A1 range covering the first limit rows, or the whole sheet
// when limit is 0.
func (t Target) A1(limit int) string {
	if limit <= 0 {
		return t.quotedSheet()
	}
	return fmt.Sprintf("%s!1:%d", t.quotedSheet(), limit)
}

// RowA1 returns the A1 anchor of the zero-based grid row index.
func (t Target) RowA1(index int) string {
	return fmt.Sprintf("%s!A%d", t.quotedSheet(), index+1)
}

// Snapshot is the in-memory view of one grid: the header row and the data
// rows below it.
type Snapshot struct {
	Header []string
	Rows   [][]any
}

// Empty reports whether the grid has no header row.
func (s Snapshot) Empty() bool {
	return len(s.Header) == 0
}

// ColumnLetter returns the spreadsheet column name of the zero-based index
// (0 → A, 25 → Z, 26 → AA).
func ColumnLetter(index int) string {
	var b []byte
	for n := index + 1; n > 0; n = (n - 1) / 26 {
		b = append([]byte{byte('A' + (n-1)%26)}, b...)
	}
	return string(b)
}

// ColumnLetters returns the first n column names.
func ColumnLetters(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = ColumnLetter(i)
	}
	return out
}

// cellString renders a cell read back from a backend.
func cellString(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	default:
		return fmt.Sprint(val)
	}
}

func stringsToCells(ss []string) []any {
	out := make([]any, len(ss))
	for i, s := range ss {
		out[i] = s
	}
	return out
}
