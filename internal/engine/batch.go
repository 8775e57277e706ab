package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/roach88/sheetsync/internal/clock"
	"github.com/roach88/sheetsync/internal/model"
	"github.com/roach88/sheetsync/internal/notify"
	"github.com/roach88/sheetsync/internal/record"
	"github.com/roach88/sheetsync/internal/rowmap"
	"github.com/roach88/sheetsync/internal/sink"
	"github.com/roach88/sheetsync/internal/store"
	"github.com/roach88/sheetsync/internal/transform"
)

// BatchProcessor runs one sync: it pages through source rows and writes
// them to the sheet chunk by chunk.
//
// Chunks are processed strictly in order. A chunk's entries are recorded
// only after its sheet writes succeed, so a failed run never claims rows it
// did not write.
type BatchProcessor struct {
	store    *store.Store
	state    *StateManager
	sink     *sink.Client
	mapper   *rowmap.Mapper
	events   *notify.Dispatcher
	clock    clock.Clock
	defaults Defaults
	logger   *slog.Logger
}

// NewBatchProcessor creates a processor.
func NewBatchProcessor(s *store.Store, state *StateManager, client *sink.Client, mapper *rowmap.Mapper, opts ...Option) *BatchProcessor {
	o := newOptions(opts)
	return &BatchProcessor{
		store:    s,
		state:    state,
		sink:     client,
		mapper:   mapper,
		events:   o.events,
		clock:    o.clock,
		defaults: o.defaults,
		logger:   o.logger,
	}
}

// BatchSize resolves the chunk size for d.
func (p *BatchProcessor) BatchSize(d *record.Descriptor) int {
	if d.BatchSize > 0 {
		return d.BatchSize
	}
	return p.defaults.BatchSize
}

// EligibleCutoff is the recency boundary for a run starting at now: records
// synced at or after it are skipped.
func EligibleCutoff(now time.Time) time.Time {
	return now.Add(-RecencyWindow)
}

func targetOf(d *record.Descriptor) sink.Target {
	return sink.Target{SpreadsheetID: d.SpreadsheetID, SheetName: d.SheetName}
}

// Process runs a full sync of d into the state st.
//
// It pages through rows after st.LastProcessedID that were not synced in
// the last seven days, in ascending key order. The recency cutoff is fixed
// when the run starts.
func (p *BatchProcessor) Process(ctx context.Context, d *record.Descriptor, st *model.SyncState, mode model.Mode) (model.Result, error) {
	size := p.BatchSize(d)
	target := targetOf(d)
	src := store.SourceOf(d)
	cutoff := EligibleCutoff(p.clock.Now())
	log := p.logger.With("record_type", d.Name, "sync_state_id", st.ID)

	if mode == model.ModeReplace {
		if err := p.sink.ClearSheet(ctx, target); err != nil {
			return model.Result{}, err
		}
		log.Info("sheet cleared", "target", target.String())
	}
	if err := p.ensureHeaders(ctx, d, target); err != nil {
		return model.Result{}, err
	}

	var res model.Result
	after := st.LastProcessedID
	for {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		recs, err := p.store.EligibleRecords(ctx, src, after, cutoff, size)
		if err != nil {
			return res, err
		}
		if len(recs) == 0 {
			break
		}
		if err := p.writeChunk(ctx, d, target, recs, model.KindFull); err != nil {
			return res, err
		}
		ids := recordIDs(recs)
		if err := p.state.RecordBatchSync(ctx, st, ids); err != nil {
			return res, err
		}
		res.TotalProcessed += uint64(len(recs))
		res.LastProcessedID = model.MaxID(ids)
		after = res.LastProcessedID

		p.chunkDone(ctx, log, st, len(recs))
		if len(recs) < size {
			break
		}
	}
	return res, nil
}

// ProcessPartial syncs exactly the given ids, chunked in input order.
// Ids with no source row are skipped; a chunk with none is skipped whole.
func (p *BatchProcessor) ProcessPartial(ctx context.Context, d *record.Descriptor, ids []int64, st *model.SyncState) (model.Result, error) {
	size := p.BatchSize(d)
	target := targetOf(d)
	src := store.SourceOf(d)
	log := p.logger.With("record_type", d.Name, "sync_state_id", st.ID)

	var res model.Result
	for start := 0; start < len(ids); start += size {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		chunk := ids[start:min(start+size, len(ids))]
		recs, err := p.store.RecordsByIDs(ctx, src, chunk)
		if err != nil {
			return res, err
		}
		if len(recs) == 0 {
			log.Debug("chunk has no source rows, skipping", "requested", len(chunk))
			continue
		}
		if err := p.writeChunk(ctx, d, target, recs, model.KindPartial); err != nil {
			return res, err
		}
		found := recordIDs(recs)
		if err := p.state.RecordBatchSync(ctx, st, found); err != nil {
			return res, err
		}
		res.TotalProcessed += uint64(len(recs))
		if m := model.MaxID(found); res.LastProcessedID == nil || *m > *res.LastProcessedID {
			res.LastProcessedID = m
		}
		p.chunkDone(ctx, log, st, len(recs))
	}
	return res, nil
}

func (p *BatchProcessor) chunkDone(ctx context.Context, log *slog.Logger, st *model.SyncState, n int) {
	log.Info("processed chunk", "records", n, "total_processed", st.TotalProcessed)
	p.events.Publish(ctx, notify.Event{Type: notify.ChunkProcessed, State: *st, Processed: n})
}

// ensureHeaders writes a header row to an empty sheet: the declared headers
// or the columns of the type's sample row, plus the hash column when the
// type reconciles by content. A sheet that already has a header is left
// alone; the mapper extends it if needed.
func (p *BatchProcessor) ensureHeaders(ctx context.Context, d *record.Descriptor, target sink.Target) error {
	current, err := p.sink.GetHeaders(ctx, target)
	if err != nil {
		return err
	}
	if len(current) > 0 {
		return nil
	}

	headers := append([]string(nil), d.Headers...)
	if len(headers) == 0 {
		sample, err := p.store.Sample(ctx, store.SourceOf(d))
		if err != nil {
			return err
		}
		if sample == nil {
			return nil
		}
		headers = transform.Record(d, *sample).Columns()
	}
	if d.Dedup {
		headers = append(headers, rowmap.HashColumn)
	}
	return p.sink.SetHeaders(ctx, target, headers)
}

// writeChunk pushes one chunk to the sheet.
//
// With content reconciliation on, existing rows are matched by hash and
// rewritten in place and the rest appended. Without it, a full sync appends
// rows aligned to the sheet header and a partial sync appends raw rows.
func (p *BatchProcessor) writeChunk(ctx context.Context, d *record.Descriptor, target sink.Target, recs []record.Record, kind model.Kind) error {
	if !d.Dedup {
		rows := transform.Batch(d, recs)
		if kind == model.KindFull {
			return p.sink.AppendWithHeaders(ctx, target, rows)
		}
		values := make([][]any, len(rows))
		for i, row := range rows {
			values[i] = row.Values()
		}
		return p.sink.WriteBatch(ctx, target, values, d.Headers)
	}

	snap, err := p.sink.ReadSheet(ctx, target)
	if err != nil {
		return err
	}
	mapping, err := p.mapper.MapRecordsToSheet(ctx, d, recs, snap)
	if err != nil {
		return fmt.Errorf("map %s records: %w", d.Name, err)
	}
	if mapping.HeaderChanged {
		if err := p.sink.SetHeaders(ctx, target, mapping.Header); err != nil {
			return err
		}
	}
	if err := p.sink.WriteRows(ctx, target, mapping.Updates); err != nil {
		return err
	}
	if err := p.sink.AppendRows(ctx, target, mapping.NewRows); err != nil {
		return err
	}
	if d.Linker != nil {
		linkRows(d, target, recs, mapping, len(snap.Rows))
	}
	return nil
}

// linkRows hands each record the A1 anchor of the row it was written to.
// Appended rows land after the existing data rows and the header.
func linkRows(d *record.Descriptor, target sink.Target, recs []record.Record, mapping *rowmap.Mapping, existing int) {
	for i, rec := range recs {
		pl := mapping.Placements[i]
		idx := pl.Index
		if !pl.Update {
			idx = 1 + existing + pl.Index
		}
		d.Linker.SetSinkRowID(rec, target.RowA1(idx))
	}
}

func recordIDs(recs []record.Record) []int64 {
	ids := make([]int64, len(recs))
	for i, r := range recs {
		ids[i] = r.ID
	}
	return ids
}
