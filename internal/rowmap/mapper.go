package rowmap

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/roach88/sheetsync/internal/fuzzy"
	"github.com/roach88/sheetsync/internal/record"
	"github.com/roach88/sheetsync/internal/sink"
	"github.com/roach88/sheetsync/internal/transform"
)

// Sampler supplies what field inference needs for a record type.
type Sampler interface {
	// Sample returns a stable representative record, or nil if there is none.
	Sample(ctx context.Context, d *record.Descriptor) (*record.Record, error)
	// Schema returns per-column schema scores.
	Schema(ctx context.Context, d *record.Descriptor) (fuzzy.SchemaInfo, error)
}

// Mapping is the reconciliation of one batch against a snapshot.
type Mapping struct {
	// Header is the header row the sheet must have.
	Header []string
	// HeaderChanged is true if Header differs from the snapshot's header.
	HeaderChanged bool
	// Updates holds rows to overwrite, keyed by zero-based grid index
	// (the header is row 0).
	Updates map[int][]any
	// NewRows holds rows to append, in input order.
	NewRows [][]any
	// Placements holds where each input record landed, in input order.
	Placements []Placement
}

// Placement locates one record in a Mapping. Index is a grid index for an
// update, or a position in NewRows otherwise.
type Placement struct {
	Update bool
	Index  int
}

// Mapper computes row identity hashes and reconciles batches.
//
// Thread-safety: Mapper is safe for concurrent use.
type Mapper struct {
	sampler Sampler
	memo    *fuzzy.Memo
	logger  *slog.Logger
}

// NewMapper creates a mapper. sampler may be nil when every record type
// declares unique fields.
func NewMapper(sampler Sampler, logger *slog.Logger) *Mapper {
	if logger == nil {
		logger = slog.Default()
	}
	return &Mapper{
		sampler: sampler,
		memo:    fuzzy.NewMemo(),
		logger:  logger,
	}
}

// IdentifyingFields returns the declared unique fields, or the inferred ones.
// Inference runs once per record type.
func (m *Mapper) IdentifyingFields(ctx context.Context, d *record.Descriptor) ([]string, error) {
	if len(d.UniqueFields) > 0 {
		return d.UniqueFields, nil
	}
	if m.sampler == nil {
		return nil, fmt.Errorf("record type %s: no unique fields and no sampler", d.Name)
	}

	var sampleErr error
	fields := m.memo.Fields(d.Name, func() []string {
		sample, err := m.sampler.Sample(ctx, d)
		if err != nil {
			sampleErr = err
			return nil
		}
		schema, err := m.sampler.Schema(ctx, d)
		if err != nil {
			m.logger.Warn("schema inspection failed, scoring without it",
				"record_type", d.Name, "error", err)
			schema = fuzzy.SchemaInfo{}
		}
		var row []record.Field
		if sample != nil {
			row = d.Row(*sample)
		}
		inferred := fuzzy.Analyze(row, schema, d.CreationField)
		m.logger.Info("inferred identifying fields",
			"record_type", d.Name, "fields", inferred, "schema_columns", schema.Columns())
		return inferred
	})
	if sampleErr != nil {
		m.memo.Forget(d.Name)
		return nil, fmt.Errorf("sample %s: %w", d.Name, sampleErr)
	}
	return fields, nil
}

// GenerateRecordHash returns the identity hash of rec.
func (m *Mapper) GenerateRecordHash(ctx context.Context, d *record.Descriptor, rec record.Record) (string, error) {
	fields, err := m.IdentifyingFields(ctx, d)
	if err != nil {
		return "", err
	}
	return HashTuple(identifierTuple(d, rec, fields))
}

// identifierTuple is [pk] + the values of fields. Values come from the
// type's row, falling back to the raw record for unexported columns.
func identifierTuple(d *record.Descriptor, rec record.Record, fields []string) []any {
	row := d.Row(rec)
	tuple := make([]any, 0, len(fields)+1)
	tuple = append(tuple, rec.ID)
	for _, name := range fields {
		tuple = append(tuple, fieldValue(row, rec, name))
	}
	return tuple
}

func fieldValue(row []record.Field, rec record.Record, name string) any {
	for _, f := range row {
		if f.Name == name {
			return f.Value
		}
	}
	return rec.Get(name)
}

// MapRecordsToSheet classifies each record as an update of an existing row
// (matched by hash) or a new row.
//
// Rows without a hash, including rows written before the hash column
// existed, are never matched and never rewritten.
func (m *Mapper) MapRecordsToSheet(ctx context.Context, d *record.Descriptor, records []record.Record, snap sink.Snapshot) (*Mapping, error) {
	out := &Mapping{Updates: make(map[int][]any), Placements: make([]Placement, 0, len(records))}
	if len(records) == 0 {
		out.Header = snap.Header
		return out, nil
	}

	rows := transform.Batch(d, records)
	hashes := make([]string, len(records))
	for i, rec := range records {
		h, err := m.GenerateRecordHash(ctx, d, rec)
		if err != nil {
			return nil, err
		}
		hashes[i] = h
	}

	existing := make(map[string]int)
	hashIdx := -1
	if snap.Empty() {
		out.Header = freshHeader(d, rows[0])
		out.HeaderChanged = true
	} else {
		out.Header = append([]string(nil), snap.Header...)
		hashIdx = indexOf(out.Header, HashColumn)
		if hashIdx < 0 {
			out.Header = append(out.Header, HashColumn)
			out.HeaderChanged = true
		} else {
			for i, r := range snap.Rows {
				if hashIdx >= len(r) {
					continue
				}
				h := cellText(r[hashIdx])
				if _, dup := existing[h]; h != "" && !dup {
					existing[h] = i + 1
				}
			}
		}
	}

	// Records sharing a hash within the batch collapse into one row.
	pending := make(map[string]int)
	for i, row := range rows {
		values := align(out.Header, row, hashes[i])
		if gridIdx, ok := existing[hashes[i]]; ok {
			out.Updates[gridIdx] = values
			out.Placements = append(out.Placements, Placement{Update: true, Index: gridIdx})
			continue
		}
		if at, ok := pending[hashes[i]]; ok {
			out.NewRows[at] = values
			out.Placements = append(out.Placements, Placement{Index: at})
			continue
		}
		pending[hashes[i]] = len(out.NewRows)
		out.Placements = append(out.Placements, Placement{Index: len(out.NewRows)})
		out.NewRows = append(out.NewRows, values)
	}

	m.logger.Debug("mapped records to sheet",
		"record_type", d.Name, "updates", len(out.Updates), "new_rows", len(out.NewRows))
	return out, nil
}

// freshHeader is the declared header, or the row's columns, plus the hash column.
func freshHeader(d *record.Descriptor, sample transform.Row) []string {
	var header []string
	if len(d.Headers) > 0 {
		header = append(header, d.Headers...)
	} else {
		header = sample.Columns()
	}
	if indexOf(header, HashColumn) < 0 {
		header = append(header, HashColumn)
	}
	return header
}

// align orders row values by header; absent columns are nil.
func align(header []string, row transform.Row, hash string) []any {
	values := make([]any, len(header))
	for i, col := range header {
		if col == HashColumn {
			values[i] = hash
			continue
		}
		if v, ok := row.Lookup(col); ok {
			values[i] = v
		}
	}
	return values
}

func indexOf(list []string, s string) int {
	for i, v := range list {
		if v == s {
			return i
		}
	}
	return -1
}

func cellText(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	default:
		return fmt.Sprint(val)
	}
}
