// Package notify publishes sync lifecycle events.
//
// Every event reaches every subscriber. Outbound channels (log, webhook) only
// see the event types enabled in Toggles, so a noisy event such as
// chunk_processed can feed metrics without paging anyone.
package notify

import (
	"fmt"
	"time"

	"github.com/roach88/sheetsync/internal/model"
)

// Type names a lifecycle event.
type Type string

const (
	SyncStarted      Type = "sync.started"
	ChunkProcessed   Type = "sync.chunk_processed"
	SyncCompleted    Type = "sync.completed"
	SyncFailed       Type = "sync.failed"
	RetryScheduled   Type = "sync.retry"
	RetriesExhausted Type = "sync.retry_exhausted"
)

// Event is one lifecycle notification for a sync run.
type Event struct {
	Type  Type
	State model.SyncState

	Processed int           // records in the chunk (ChunkProcessed)
	Attempt   int           // retry attempt number, 1-based
	Pending   int           // records left for the retry
	RetryIn   time.Duration // delay before the retry runs
	Err       string
}

// Toggles enables event types on outbound channels.
type Toggles struct {
	Started        bool `yaml:"started"`
	ChunkProcessed bool `yaml:"chunk_processed"`
	SyncCompleted  bool `yaml:"sync_completed"`
	Retry          bool `yaml:"retry"`
	RetryExhausted bool `yaml:"retry_exhausted"`
	Error          bool `yaml:"error"`
}

// DefaultToggles reports failures and retries only.
func DefaultToggles() Toggles {
	return Toggles{Retry: true, RetryExhausted: true, Error: true}
}

// Allows reports whether events of type t go to outbound channels.
func (tg Toggles) Allows(t Type) bool {
	switch t {
	case SyncStarted:
		return tg.Started
	case ChunkProcessed:
		return tg.ChunkProcessed
	case SyncCompleted:
		return tg.SyncCompleted
	case SyncFailed:
		return tg.Error
	case RetryScheduled:
		return tg.Retry
	case RetriesExhausted:
		return tg.RetryExhausted
	default:
		return false
	}
}

// Message renders a one-line summary of e.
func Message(e Event) string {
	rt := e.State.RecordType
	switch e.Type {
	case SyncStarted:
		return fmt.Sprintf("Sheet sync started: %s (%s, %s)", rt, e.State.Kind, e.State.Mode)
	case ChunkProcessed:
		return fmt.Sprintf("Sheet sync progress: %s processed %d records (%d total)", rt, e.Processed, e.State.TotalProcessed)
	case SyncCompleted:
		return fmt.Sprintf("Sheet sync completed: %s (%d records)", rt, e.State.TotalProcessed)
	case SyncFailed:
		return fmt.Sprintf("Sheet sync failed: %s: %s", rt, e.Err)
	case RetryScheduled:
		return fmt.Sprintf("Sheet sync retry: %s attempt #%d", rt, e.Attempt)
	case RetriesExhausted:
		return fmt.Sprintf("Sheet sync retries exhausted: %s: %s", rt, e.Err)
	default:
		return fmt.Sprintf("Sheet sync %s: %s", e.Type, rt)
	}
}

func minutes(d time.Duration) string {
	m := int(d / time.Minute)
	if m == 1 {
		return "1 minute"
	}
	return fmt.Sprintf("%d minutes", m)
}
