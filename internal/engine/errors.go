package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/roach88/sheetsync/internal/model"
	"github.com/roach88/sheetsync/internal/sink"
)

// RunErrorCode categorizes run failures.
type RunErrorCode string

const (
	// ErrCodeSink indicates a remote sheet call failed.
	ErrCodeSink RunErrorCode = "SINK_FAILURE"

	// ErrCodeTimeout indicates the run exceeded its timeout.
	ErrCodeTimeout RunErrorCode = "TIMEOUT"

	// ErrCodeCanceled indicates the caller cancelled the run.
	ErrCodeCanceled RunErrorCode = "CANCELED"

	// ErrCodeRun covers every other failure: source queries, state writes,
	// row mapping.
	ErrCodeRun RunErrorCode = "RUN_FAILURE"
)

// RunError is returned by SyncManager when a run fails after its SyncState
// was created. It wraps the triggering error.
type RunError struct {
	Code        RunErrorCode
	RecordType  string
	SyncStateID string
	Err         error
}

// Error implements the error interface.
func (e *RunError) Error() string {
	return fmt.Sprintf("%s: %v (record_type=%s, sync_state=%s)", e.Code, e.Err, e.RecordType, e.SyncStateID)
}

// Unwrap returns the triggering error.
func (e *RunError) Unwrap() error {
	return e.Err
}

// newRunError classifies err for the run st.
func newRunError(st *model.SyncState, err error) *RunError {
	code := ErrCodeRun
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		code = ErrCodeTimeout
	case errors.Is(err, context.Canceled):
		code = ErrCodeCanceled
	case sink.IsSinkError(err):
		code = ErrCodeSink
	}
	return &RunError{Code: code, RecordType: st.RecordType, SyncStateID: st.ID, Err: err}
}

// IsRunError returns true if err is or wraps a RunError.
func IsRunError(err error) bool {
	var re *RunError
	return errors.As(err, &re)
}

// IsTimeout returns true if the run failed because it ran out of time.
// Uses errors.As to handle wrapped errors.
func IsTimeout(err error) bool {
	var re *RunError
	if errors.As(err, &re) {
		return re.Code == ErrCodeTimeout
	}
	return false
}

// RunErrorCodeOf returns the code of a wrapped RunError, or "" if none.
func RunErrorCodeOf(err error) RunErrorCode {
	var re *RunError
	if errors.As(err, &re) {
		return re.Code
	}
	return ""
}
