// Package sink is the rate-limited I/O boundary to the spreadsheet.
//
// A Client wraps a Backend (the Google Sheets API in production, an
// in-process grid in tests and dry runs) and pushes every remote call through
// a sliding Window: at most N calls per T seconds. When the window is full the
// call blocks until the oldest call expires; calls are never dropped,
// reordered or failed by the limiter.
//
// The backend is connected lazily on first use. Every failure is returned as
// a *Error wrapping the cause. The client never retries; retry happens at the
// run level.
package sink
