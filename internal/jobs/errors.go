package jobs

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNotFound is returned when a job id is unknown to the store.
	ErrNotFound = errors.New("job not found")

	// ErrInvalidID is returned when a job id is not a well-formed UUIDv4.
	ErrInvalidID = errors.New("job id must be a UUIDv4")
)

// InvalidTransitionError reports an attempted illegal state change.
// This indicates a pipeline bug and is logged as an invariant violation
// at the call site, never silently swallowed.
type InvalidTransitionError struct {
	JobID  string
	From   Stage
	To     Stage
	Reason string
}

func (e *InvalidTransitionError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("invalid transition for job %s: %s -> %s (%s)", e.JobID, e.From, e.To, e.Reason)
	}
	return fmt.Sprintf("invalid transition for job %s: %s -> %s", e.JobID, e.From, e.To)
}

// ValidationError carries every problem found in a submission so the caller
// can fix them all at once. It is always produced before any pipeline or
// storage work happens.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return strings.Join(e.Problems, "; ")
}

// IsValidation reports whether err is a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
