package sink

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/roach88/sheetsync/internal/transform"
)

// Observer is notified after every remote call. Used for metrics.
type Observer interface {
	ObserveSinkCall(op string, elapsed time.Duration, err error)
}

// Client exposes the sheet operations the sync engine needs.
//
// Thread-safety: Client is safe for concurrent use; remote calls are
// serialized by its Window.
type Client struct {
	connect  Connector
	window   *Window
	logger   *slog.Logger
	observer Observer

	mu      sync.Mutex
	backend Backend
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithLogger sets the client's logger.
func WithLogger(l *slog.Logger) ClientOption {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithObserver registers a call observer.
func WithObserver(o Observer) ClientOption {
	return func(c *Client) {
		c.observer = o
	}
}

// NewClient creates a client. A nil window disables rate limiting.
func NewClient(connect Connector, window *Window, opts ...ClientOption) *Client {
	if window == nil {
		window = NewWindow(0, 0, nil)
	}
	c := &Client{
		connect: connect,
		window:  window,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// conn returns the backend, connecting on first use.
func (c *Client) conn(ctx context.Context) (Backend, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.backend != nil {
		return c.backend, nil
	}
	b, err := c.connect(ctx)
	if err != nil {
		return nil, err
	}
	c.backend = b
	return b, nil
}

// call runs one rate-limited remote call and wraps any failure.
func (c *Client) call(ctx context.Context, op string, t Target, fn func(Backend) error) error {
	start := time.Now()
	b, err := c.conn(ctx)
	if err == nil {
		err = c.window.Do(ctx, func() error { return fn(b) })
	}
	if c.observer != nil {
		c.observer.ObserveSinkCall(op, time.Since(start), err)
	}
	if err != nil {
		c.logger.Warn("sink call failed", "op", op, "target", t.String(), "error", err)
		return &Error{Op: op, Target: t, Err: err}
	}
	c.logger.Debug("sink call", "op", op, "target", t.String())
	return nil
}

// GetHeaders returns the header row, or nil if the sheet has no rows.
func (c *Client) GetHeaders(ctx context.Context, t Target) ([]string, error) {
	var rows [][]any
	err := c.call(ctx, "get_headers", t, func(b Backend) error {
		var err error
		rows, err = b.Read(ctx, t, 1)
		return err
	})
	if err != nil || len(rows) == 0 {
		return nil, err
	}
	return headerStrings(rows[0]), nil
}

// SetHeaders overwrites the first row.
func (c *Client) SetHeaders(ctx context.Context, t Target, headers []string) error {
	return c.call(ctx, "set_headers", t, func(b Backend) error {
		return b.Update(ctx, t, map[int][]any{0: stringsToCells(headers)})
	})
}

// AppendWithHeaders appends column-keyed rows, aligning each to the sheet's
// header. An empty sheet first gets the first row's columns as its header.
// Columns the header lacks are dropped; header columns a row lacks are blank.
func (c *Client) AppendWithHeaders(ctx context.Context, t Target, rows []transform.Row) error {
	if len(rows) == 0 {
		return nil
	}
	header, err := c.GetHeaders(ctx, t)
	if err != nil {
		return err
	}
	if len(header) == 0 {
		header = rows[0].Columns()
		if err := c.SetHeaders(ctx, t, header); err != nil {
			return err
		}
	}

	values := make([][]any, len(rows))
	for i, row := range rows {
		aligned := make([]any, len(header))
		for j, col := range header {
			if v, ok := row.Lookup(col); ok {
				aligned[j] = v
			} else {
				aligned[j] = ""
			}
		}
		values[i] = aligned
	}
	return c.AppendRows(ctx, t, values)
}

// WriteBatch appends ordered rows. An empty sheet first gets a header row:
// headers if given, else column letters (A, B, C, ...) as wide as the widest row.
func (c *Client) WriteBatch(ctx context.Context, t Target, rows [][]any, headers []string) error {
	if len(rows) == 0 {
		return nil
	}
	existing, err := c.GetHeaders(ctx, t)
	if err != nil {
		return err
	}
	if len(existing) == 0 {
		if len(headers) == 0 {
			width := 0
			for _, r := range rows {
				width = max(width, len(r))
			}
			headers = ColumnLetters(width)
		}
		if err := c.SetHeaders(ctx, t, headers); err != nil {
			return err
		}
	}
	return c.AppendRows(ctx, t, rows)
}

// WriteRows overwrites rows in place, keyed by zero-based grid index.
func (c *Client) WriteRows(ctx context.Context, t Target, rows map[int][]any) error {
	if len(rows) == 0 {
		return nil
	}
	return c.call(ctx, "write_rows", t, func(b Backend) error {
		return b.Update(ctx, t, rows)
	})
}

// AppendRows appends ordered rows after the last row.
func (c *Client) AppendRows(ctx context.Context, t Target, rows [][]any) error {
	if len(rows) == 0 {
		return nil
	}
	return c.call(ctx, "append_rows", t, func(b Backend) error {
		return b.Append(ctx, t, rows)
	})
}

// ClearSheet removes every row.
func (c *Client) ClearSheet(ctx context.Context, t Target) error {
	return c.call(ctx, "clear_sheet", t, func(b Backend) error {
		return b.Clear(ctx, t)
	})
}

// ReadSheet returns the whole grid as a Snapshot.
func (c *Client) ReadSheet(ctx context.Context, t Target) (Snapshot, error) {
	var rows [][]any
	err := c.call(ctx, "read_sheet", t, func(b Backend) error {
		var err error
		rows, err = b.Read(ctx, t, 0)
		return err
	})
	if err != nil {
		return Snapshot{}, err
	}
	if len(rows) == 0 {
		return Snapshot{}, nil
	}
	return Snapshot{Header: headerStrings(rows[0]), Rows: rows[1:]}, nil
}

// headerStrings converts a header row, trimming trailing blank cells.
func headerStrings(row []any) []string {
	out := make([]string, len(row))
	for i, v := range row {
		out[i] = cellString(v)
	}
	for len(out) > 0 && out[len(out)-1] == "" {
		out = out[:len(out)-1]
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
