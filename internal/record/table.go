package record

import "github.com/roach88/sheetsync/internal/model"

// TableSpec declares a record type backed by a single source table.
type TableSpec struct {
	Name          string
	Table         string
	PrimaryKey    string
	SheetID       string
	SheetName     string
	Columns       []string // row columns in order; empty means every source column
	Headers       []string
	UniqueFields  []string
	BatchSize     int
	SyncMode      model.Mode
	CreationField string
	Dedup         *bool // nil means enabled
}

// TableType is a Syncable driven entirely by a TableSpec.
type TableType struct {
	spec TableSpec
}

// NewTableType wraps spec as a Syncable.
func NewTableType(spec TableSpec) *TableType {
	if spec.PrimaryKey == "" {
		spec.PrimaryKey = "id"
	}
	return &TableType{spec: spec}
}

func (t *TableType) Name() string                      { return t.spec.Name }
func (t *TableType) Table() string                     { return t.spec.Table }
func (t *TableType) PrimaryKey() string                { return t.spec.PrimaryKey }
func (t *TableType) SinkIdentifier() string            { return t.spec.SheetID }
func (t *TableType) SheetName() string                 { return t.spec.SheetName }
func (t *TableType) PreferredBatchSize() int           { return t.spec.BatchSize }
func (t *TableType) PreferredSyncMode() model.Mode     { return t.spec.SyncMode }
func (t *TableType) UniqueIdentifyingFields() []string { return t.spec.UniqueFields }
func (t *TableType) DeclaredHeaders() []string         { return t.spec.Headers }
func (t *TableType) CreationField() string             { return t.spec.CreationField }

func (t *TableType) Dedup() bool {
	if t.spec.Dedup == nil {
		return true
	}
	return *t.spec.Dedup
}

// ToRow projects the configured columns, falling back to source order.
func (t *TableType) ToRow(rec Record) []Field {
	cols := t.spec.Columns
	if len(cols) == 0 {
		cols = rec.Columns
	}
	fields := make([]Field, len(cols))
	for i, col := range cols {
		fields[i] = Field{Name: col, Value: rec.Get(col)}
	}
	return fields
}
