package sink

import (
	"context"
	"fmt"
	"os"
	"sort"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
)

// valueInput is how written cells are interpreted. RAW keeps the
// formatted text exactly as produced.
const valueInput = "RAW"

// GoogleBackend talks to the Google Sheets v4 values API.
type GoogleBackend struct {
	values *sheets.SpreadsheetsValuesService
}

// NewGoogleBackend wraps an existing Sheets service.
func NewGoogleBackend(svc *sheets.Service) *GoogleBackend {
	return &GoogleBackend{values: svc.Spreadsheets.Values}
}

// GoogleConnector returns a Connector that builds a Sheets service from ts.
// Additional client options (endpoint, HTTP client) are passed through.
func GoogleConnector(ts oauth2.TokenSource, opts ...option.ClientOption) Connector {
	return func(ctx context.Context) (Backend, error) {
		all := append([]option.ClientOption{option.WithTokenSource(ts)}, opts...)
		svc, err := sheets.NewService(ctx, all...)
		if err != nil {
			return nil, fmt.Errorf("create sheets service: %w", err)
		}
		return NewGoogleBackend(svc), nil
	}
}

// TokenSource returns credentials for the Sheets API: from the service
// account or authorized-user JSON at path, or the application default
// credentials when path is empty.
func TokenSource(ctx context.Context, path string) (oauth2.TokenSource, error) {
	if path == "" {
		ts, err := google.DefaultTokenSource(ctx, sheets.SpreadsheetsScope)
		if err != nil {
			return nil, fmt.Errorf("default credentials: %w", err)
		}
		return ts, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read credentials: %w", err)
	}
	creds, err := google.CredentialsFromJSON(ctx, data, sheets.SpreadsheetsScope)
	if err != nil {
		return nil, fmt.Errorf("parse credentials %s: %w", path, err)
	}
	return creds.TokenSource, nil
}

// Read implements Backend.
func (g *GoogleBackend) Read(ctx context.Context, t Target, limit int) ([][]any, error) {
	resp, err := g.values.Get(t.SpreadsheetID, t.A1(limit)).Context(ctx).Do()
	if err != nil {
		return nil, err
	}
	return resp.Values, nil
}

// Update implements Backend with a single batch update.
func (g *GoogleBackend) Update(ctx context.Context, t Target, rows map[int][]any) error {
	req := &sheets.BatchUpdateValuesRequest{
		ValueInputOption: valueInput,
		Data:             updateRanges(t, rows),
	}
	_, err := g.values.BatchUpdate(t.SpreadsheetID, req).Context(ctx).Do()
	return err
}

// Append implements Backend.
func (g *GoogleBackend) Append(ctx context.Context, t Target, rows [][]any) error {
	_, err := g.values.Append(t.SpreadsheetID, t.A1(0), &sheets.ValueRange{Values: rows}).
		ValueInputOption(valueInput).
		InsertDataOption("INSERT_ROWS").
		Context(ctx).
		Do()
	return err
}

// Clear implements Backend.
func (g *GoogleBackend) Clear(ctx context.Context, t Target) error {
	_, err := g.values.Clear(t.SpreadsheetID, t.A1(0), &sheets.ClearValuesRequest{}).Context(ctx).Do()
	return err
}

// updateRanges builds one value range per row, ordered by row index.
func updateRanges(t Target, rows map[int][]any) []*sheets.ValueRange {
	indices := make([]int, 0, len(rows))
	for i := range rows {
		indices = append(indices, i)
	}
	sort.Ints(indices)

	data := make([]*sheets.ValueRange, 0, len(indices))
	for _, i := range indices {
		data = append(data, &sheets.ValueRange{
			Range:  t.RowA1(i),
			Values: [][]any{rows[i]},
		})
	}
	return data
}
