package model

import "time"

// Kind distinguishes full runs from explicit id-set runs.
type Kind string

const (
	KindFull    Kind = "full"
	KindPartial Kind = "partial"
)

// Mode controls whether the sink is cleared before a run writes.
type Mode string

const (
	ModeAppend  Mode = "append"
	ModeReplace Mode = "replace"
)

// Modes lists the accepted sync modes in declaration order.
// The first entry is the schema default.
var Modes = []Mode{ModeAppend, ModeReplace}

// Valid reports whether m is a known sync mode.
func (m Mode) Valid() bool {
	for _, known := range Modes {
		if m == known {
			return true
		}
	}
	return false
}

// Status is the lifecycle state of a SyncState.
type Status string

const (
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Terminal reports whether no further transition is allowed.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// EntryStatus is the outcome recorded for a single synchronized record.
type EntryStatus string

const (
	EntrySuccess EntryStatus = "success"
	EntryFailed  EntryStatus = "failed"
)

// SyncState is the durable record of one sync run.
type SyncState struct {
	ID              string     `json:"id"` // UUIDv7
	RecordType      string     `json:"record_type"`
	Kind            Kind       `json:"sync_type"`
	Mode            Mode       `json:"sync_mode"`
	Status          Status     `json:"status"`
	StartedAt       time.Time  `json:"started_at"`
	CompletedAt     *time.Time `json:"completed_at,omitempty"`
	TotalProcessed  uint64     `json:"total_processed"`
	LastProcessedID *int64     `json:"last_processed_id,omitempty"`
	ErrorMessage    string     `json:"error_message,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// SyncEntry records that one record was pushed to the sink by a run.
type SyncEntry struct {
	ID           int64       `json:"id"` // Auto-increment (store FK)
	SyncStateID  string      `json:"sync_state_id"`
	RecordType   string      `json:"record_type"`
	RecordID     int64       `json:"record_id"`
	SyncedAt     time.Time   `json:"synced_at"`
	Kind         Kind        `json:"sync_type"`
	Status       EntryStatus `json:"status"`
	ErrorMessage string      `json:"error_message,omitempty"`
}

// Result is what the batch processor reports for a run.
type Result struct {
	TotalProcessed  uint64
	LastProcessedID *int64
}

// JobStatus tracks a queued retry through its life.
type JobStatus string

const (
	JobPending JobStatus = "pending"
	JobRunning JobStatus = "running"
	JobDone    JobStatus = "done"
	JobFailed  JobStatus = "failed"
)

// RetryJob is a deferred partial sync for the ids a failed run left behind.
type RetryJob struct {
	ID         string    `json:"id"` // UUIDv7
	RecordType string    `json:"record_type"`
	RecordIDs  []int64   `json:"record_ids"`
	Attempt    int       `json:"attempt"`
	Tags       []string  `json:"tags,omitempty"`
	ReadyAt    time.Time `json:"ready_at"`
	Status     JobStatus `json:"status"`
	LastError  string    `json:"last_error,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// MaxID returns the largest id in ids, or nil for an empty slice.
func MaxID(ids []int64) *int64 {
	if len(ids) == 0 {
		return nil
	}
	m := ids[0]
	for _, id := range ids[1:] {
		if id > m {
			m = id
		}
	}
	return &m
}
