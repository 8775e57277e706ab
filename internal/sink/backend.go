package sink

import "context"

// Backend is the raw grid API behind a Client. Each method is exactly one
// remote call. Row indices are zero-based grid rows, the header being row 0.
type Backend interface {
	// Read returns the first limit rows, or every row when limit is 0.
	Read(ctx context.Context, t Target, limit int) ([][]any, error)
	// Update overwrites the given rows in place.
	Update(ctx context.Context, t Target, rows map[int][]any) error
	// Append adds rows after the last non-empty row.
	Append(ctx context.Context, t Target, rows [][]any) error
	// Clear removes every row.
	Clear(ctx context.Context, t Target) error
}

// Connector establishes an authenticated Backend. A Client calls it once,
// on first use, and again only if it failed.
type Connector func(ctx context.Context) (Backend, error)

// Static returns a Connector that always yields b.
func Static(b Backend) Connector {
	return func(context.Context) (Backend, error) { return b, nil }
}
