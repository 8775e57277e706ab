package engine

import (
	"context"

	"github.com/roach88/sheetsync/internal/fuzzy"
	"github.com/roach88/sheetsync/internal/record"
	"github.com/roach88/sheetsync/internal/rowmap"
	"github.com/roach88/sheetsync/internal/store"
)

// storeSampler feeds field inference from the source database: the
// lowest-key row as the sample, and the table's column metadata.
type storeSampler struct {
	store *store.Store
}

var _ rowmap.Sampler = storeSampler{}

// NewSampler returns a rowmap.Sampler backed by s.
func NewSampler(s *store.Store) rowmap.Sampler {
	return storeSampler{store: s}
}

func (s storeSampler) Sample(ctx context.Context, d *record.Descriptor) (*record.Record, error) {
	return s.store.Sample(ctx, store.SourceOf(d))
}

func (s storeSampler) Schema(ctx context.Context, d *record.Descriptor) (fuzzy.SchemaInfo, error) {
	cols, err := s.store.InspectColumns(ctx, d.Table)
	if err != nil {
		return nil, err
	}
	return fuzzy.ScoreSchema(cols), nil
}
