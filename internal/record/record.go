package record

import (
	"github.com/roach88/sheetsync/internal/model"
)

// Record is one row read from the relational source.
// Columns preserves the source column order.
type Record struct {
	ID      int64
	Fields  map[string]any
	Columns []string
}

// Get returns the raw value of a source column, or nil when absent.
func (r Record) Get(name string) any {
	if r.Fields == nil {
		return nil
	}
	return r.Fields[name]
}

// Field is one named raw value in a transformed row, before formatting.
type Field struct {
	Name  string
	Value any
}

// Names returns the field names in row order.
func Names(fields []Field) []string {
	names := make([]string, len(fields))
	for i, f := range fields {
		names[i] = f.Name
	}
	return names
}

// Syncable is the capability contract of a synchronizable record type.
//
// Required members: Name, Table, PrimaryKey, SinkIdentifier, SheetName, ToRow.
// Optional members return their absent marker when the type has no preference:
// 0 for PreferredBatchSize, "" for PreferredSyncMode and CreationField, nil for
// UniqueIdentifyingFields and DeclaredHeaders.
type Syncable interface {
	Name() string
	Table() string
	PrimaryKey() string

	SinkIdentifier() string
	SheetName() string
	ToRow(rec Record) []Field

	PreferredBatchSize() int
	PreferredSyncMode() model.Mode
	UniqueIdentifyingFields() []string
	DeclaredHeaders() []string

	// CreationField names the creation timestamp column; "" means the type
	// has no timestamps.
	CreationField() string

	// Dedup enables content-hash reconciliation against the sheet.
	Dedup() bool
}

// RowLinker is implemented by types that keep a back-reference to the sheet
// row a record was written to.
type RowLinker interface {
	SinkRowID(rec Record) string
	SetSinkRowID(rec Record, rowID string)
}

// Base supplies the absent marker for every optional Syncable member.
// Embed it and implement the required members.
type Base struct{}

func (Base) PrimaryKey() string                { return "id" }
func (Base) PreferredBatchSize() int           { return 0 }
func (Base) PreferredSyncMode() model.Mode     { return "" }
func (Base) UniqueIdentifyingFields() []string { return nil }
func (Base) DeclaredHeaders() []string         { return nil }
func (Base) CreationField() string             { return "" }
func (Base) Dedup() bool                       { return true }
