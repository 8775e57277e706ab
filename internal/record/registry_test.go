package record

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/sheetsync/internal/model"
)

// orderType is a hand-written Syncable relying on Base for optional members.
type orderType struct {
	Base
	sheet string
}

func (o orderType) Name() string           { return "Order" }
func (o orderType) Table() string          { return "orders" }
func (o orderType) SinkIdentifier() string { return "sheet-123" }
func (o orderType) SheetName() string      { return o.sheet }
func (o orderType) ToRow(rec Record) []Field {
	return []Field{{Name: "id", Value: rec.ID}, {Name: "email", Value: rec.Get("email")}}
}

type linkedType struct {
	orderType
	links map[int64]string
}

func (l *linkedType) SinkRowID(rec Record) string { return l.links[rec.ID] }
func (l *linkedType) SetSinkRowID(rec Record, id string) {
	l.links[rec.ID] = id
}

func TestResolve_AppliesAbsentMarkers(t *testing.T) {
	reg, err := NewRegistry(orderType{sheet: "Orders"})
	require.NoError(t, err)

	d, err := reg.Resolve("Order")
	require.NoError(t, err)

	assert.Equal(t, "orders", d.Table)
	assert.Equal(t, "id", d.PrimaryKey)
	assert.Equal(t, "sheet-123", d.SpreadsheetID)
	assert.Equal(t, 0, d.BatchSize)
	assert.Equal(t, model.Mode(""), d.Mode)
	assert.Nil(t, d.UniqueFields)
	assert.Nil(t, d.Headers)
	assert.False(t, d.HasTimestamps())
	assert.True(t, d.Dedup)
	assert.Nil(t, d.Linker)
}

func TestResolve_CachesDescriptor(t *testing.T) {
	reg, err := NewRegistry(orderType{sheet: "Orders"})
	require.NoError(t, err)

	first, err := reg.Resolve("Order")
	require.NoError(t, err)
	second, err := reg.Resolve("Order")
	require.NoError(t, err)

	assert.Same(t, first, second)
}

func TestResolve_UnknownType(t *testing.T) {
	reg, err := NewRegistry()
	require.NoError(t, err)

	_, err = reg.Resolve("Invoice")
	require.Error(t, err)
	assert.True(t, IsValidationError(err))
	assert.Contains(t, err.Error(), "unknown record type")
}

func TestResolve_MissingSheetName(t *testing.T) {
	reg, err := NewRegistry(orderType{sheet: "  "})
	require.NoError(t, err)

	_, err = reg.Resolve("Order")
	require.Error(t, err)

	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "Order", ve.RecordType)
	assert.Equal(t, "missing sheet name", ve.Reason)
}

func TestResolve_InvalidPreferredMode(t *testing.T) {
	reg, err := NewRegistry(NewTableType(TableSpec{
		Name: "Order", Table: "orders", SheetID: "s", SheetName: "Orders", SyncMode: "upsert",
	}))
	require.NoError(t, err)

	_, err = reg.Resolve("Order")
	require.Error(t, err)
	assert.True(t, IsValidationError(err))
}

func TestResolve_DetectsRowLinker(t *testing.T) {
	lt := &linkedType{orderType: orderType{sheet: "Orders"}, links: map[int64]string{}}
	reg, err := NewRegistry(lt)
	require.NoError(t, err)

	d, err := reg.Resolve("Order")
	require.NoError(t, err)
	require.NotNil(t, d.Linker)

	d.Linker.SetSinkRowID(Record{ID: 7}, "Orders!A3")
	assert.Equal(t, "Orders!A3", lt.SinkRowID(Record{ID: 7}))
}

func TestRegister_DuplicateName(t *testing.T) {
	_, err := NewRegistry(orderType{sheet: "A"}, orderType{sheet: "B"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "registered twice")
}

func TestTableType_ToRowUsesConfiguredColumns(t *testing.T) {
	tt := NewTableType(TableSpec{Name: "Order", Table: "orders", Columns: []string{"email", "id"}})
	rec := Record{
		ID:      3,
		Fields:  map[string]any{"id": int64(3), "email": "a@example.com", "total": 9.5},
		Columns: []string{"id", "email", "total"},
	}

	row := tt.ToRow(rec)
	assert.Equal(t, []string{"email", "id"}, Names(row))
	assert.Equal(t, "a@example.com", row[0].Value)
	assert.Equal(t, "id", tt.PrimaryKey())
	assert.True(t, tt.Dedup())
}

func TestTableType_ToRowFallsBackToSourceOrder(t *testing.T) {
	off := false
	tt := NewTableType(TableSpec{Name: "Order", Table: "orders", Dedup: &off})
	rec := Record{
		ID:      1,
		Fields:  map[string]any{"id": int64(1), "total": 2.5},
		Columns: []string{"id", "total"},
	}

	assert.Equal(t, []string{"id", "total"}, Names(tt.ToRow(rec)))
	assert.False(t, tt.Dedup())
}
