package record

import (
	"errors"
	"fmt"
)

// ValidationError reports an unknown record type or one that does not
// satisfy the Syncable contract. No SyncState is created when it is returned.
type ValidationError struct {
	RecordType string
	Reason     string
}

func (e *ValidationError) Error() string {
	if e.RecordType == "" {
		return fmt.Sprintf("VALIDATION: %s", e.Reason)
	}
	return fmt.Sprintf("VALIDATION: %s (record_type=%s)", e.Reason, e.RecordType)
}

// IsValidationError returns true if err is or wraps a ValidationError.
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
